package dbasync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/dbasync/internal/payload"
)

func TestResultSetCreateMaterializesRow(t *testing.T) {
	schema := newTestSchema(t)

	row, err := schema.ResultSet("authors").Create(map[string]any{
		"name":    "Ursula K. Le Guin",
		"country": "US",
	}).Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Ursula K. Le Guin", row["name"])
	require.NotNil(t, row["id"])
}

func TestResultSetFindByIDReturnsCreatedRow(t *testing.T) {
	schema := newTestSchema(t)
	ctx := context.Background()

	created, err := schema.ResultSet("authors").Create(map[string]any{"name": "Alice", "country": "FI"}).Await(ctx)
	require.NoError(t, err)

	found, err := schema.ResultSet("authors").FindByID(created["id"]).Await(ctx)
	require.NoError(t, err)
	require.Equal(t, "Alice", found["name"])
}

func TestResultSetSearchFiltersAndOrders(t *testing.T) {
	schema := newTestSchema(t)
	ctx := context.Background()

	for _, name := range []string{"Ada", "Bea", "Cid"} {
		_, err := schema.ResultSet("authors").Create(map[string]any{"name": name, "country": "FI"}).Await(ctx)
		require.NoError(t, err)
	}
	_, err := schema.ResultSet("authors").Create(map[string]any{"name": "Zed", "country": "SE"}).Await(ctx)
	require.NoError(t, err)

	rows, err := schema.ResultSet("authors").
		Search(Eq(map[string]any{"country": "FI"}), Attrs{}).
		OrderBy("name ASC").
		All().Await(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "Ada", rows[0]["name"])
}

func TestResultSetCountMatchesFilter(t *testing.T) {
	schema := newTestSchema(t)
	ctx := context.Background()

	for i := 1; i <= 9; i++ {
		country := "SE"
		if i%2 == 0 {
			country = "FI"
		}

		_, err := schema.ResultSet("authors").Create(map[string]any{
			"name":    "author",
			"country": country,
		}).Await(ctx)
		require.NoError(t, err)
	}

	count, err := schema.ResultSet("authors").Search(Eq(map[string]any{"country": "FI"}), Attrs{}).Count().Await(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 4, count)
}

func TestResultSetUpdateWithEmptyMapShortCircuits(t *testing.T) {
	schema := newTestSchema(t)

	affected, err := schema.ResultSet("authors").Update(map[string]any{}).Await(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 0, affected)
}

func TestResultSetUpdateAndDeleteAffectMatchingRows(t *testing.T) {
	schema := newTestSchema(t)
	ctx := context.Background()

	created, err := schema.ResultSet("authors").Create(map[string]any{"name": "Ada", "country": "FI"}).Await(ctx)
	require.NoError(t, err)
	id := created["id"]

	affected, err := schema.ResultSet("authors").Search(Eq(map[string]any{"id": id}), Attrs{}).Update(map[string]any{"country": "SE"}).Await(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)

	affected, err = schema.ResultSet("authors").Search(Eq(map[string]any{"id": id}), Attrs{}).Delete().Await(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)
}

func TestResultSetSliceValidatesRange(t *testing.T) {
	schema := newTestSchema(t)

	_, err := schema.ResultSet("authors").Slice(5, 2).All().Await(context.Background())
	require.Error(t, err)

	_, err = schema.ResultSet("authors").Slice(-1, 2).All().Await(context.Background())
	require.Error(t, err)
}

func TestResultSetSliceBoundaries(t *testing.T) {
	schema := newTestSchema(t)
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		_, err := schema.ResultSet("authors").Create(map[string]any{"name": "a", "country": "FI"}).Await(ctx)
		require.NoError(t, err)
	}

	rows, err := schema.ResultSet("authors").Slice(0, 0).All().Await(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows, err = schema.ResultSet("authors").Slice(7, 15).All().Await(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestResultSetFetchPageReportsTotals(t *testing.T) {
	schema := newTestSchema(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := schema.ResultSet("authors").Create(map[string]any{"name": "a", "country": "FI"}).Await(ctx)
		require.NoError(t, err)
	}

	page, err := schema.ResultSet("authors").Rows(10).Page(3).FetchPage(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, page.LastPage)
	require.Equal(t, 5, page.EntriesOnThisPage)
	require.EqualValues(t, 25, page.CountTotal)
}

func TestResultSetFetchPageRequiresPageCall(t *testing.T) {
	schema := newTestSchema(t)

	_, err := schema.ResultSet("authors").FetchPage(context.Background())
	require.Error(t, err)
}

func TestResultSetPopulateAndPopulateBulk(t *testing.T) {
	schema := newTestSchema(t)
	ctx := context.Background()

	rows, err := schema.ResultSet("authors").Populate([]map[string]any{
		{"name": "Ada", "country": "FI"},
		{"name": "Bea", "country": "FI"},
	}).Await(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	n, err := schema.ResultSet("authors").PopulateBulk([]map[string]any{
		{"name": "Cid", "country": "FI"},
	}).Await(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestResultSetSearchWithPrefetchAttachesHasManyRelation(t *testing.T) {
	schema := newTestSchema(t)
	ctx := context.Background()

	author, err := schema.ResultSet("authors").Create(map[string]any{"name": "Ada", "country": "FI"}).Await(ctx)
	require.NoError(t, err)

	_, err = schema.ResultSet("books").Create(map[string]any{
		"author_id":      author["id"],
		"title":          "Letters",
		"published_year": 1843,
	}).Await(ctx)
	require.NoError(t, err)

	rows, err := schema.ResultSet("authors").
		Search(Cond{}, Attrs{Prefetch: payload.NewPrefetchFromString("books")}).
		All().Await(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	books, ok := rows[0]["books"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, books, 1)
	require.Equal(t, "Letters", books[0]["title"])
}
