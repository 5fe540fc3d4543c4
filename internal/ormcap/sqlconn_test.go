package ormcap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/dbasync/internal/config"
	"github.com/tonimelisma/dbasync/internal/payload"
)

func newTestConn(t *testing.T) Conn {
	t.Helper()

	engine := NewEngine()

	conn, err := engine.Connect(context.Background(), "sqlite", "file:"+t.Name()+"?mode=memory&cache=shared", nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	err = conn.Deploy(context.Background(), payload.Deploy{Dir: "testdata/migrations"})
	require.NoError(t, err)

	conn.SetRelations([]config.Relation{
		{Parent: "authors", Name: "books", Child: "books", ForeignKey: "author_id", Many: true},
	})

	return conn
}

func TestCreateMaterializesInsertedRow(t *testing.T) {
	conn := newTestConn(t)

	result, err := conn.Exec(context.Background(), payload.NewCreate("authors", map[string]any{
		"name":    "Ursula K. Le Guin",
		"country": "US",
	}))
	require.NoError(t, err)

	row := result.(map[string]any)
	require.Equal(t, "Ursula K. Le Guin", row["name"])
	require.NotNil(t, row["id"])
}

func TestSearchAppliesConditionsAndLimit(t *testing.T) {
	conn := newTestConn(t)
	ctx := context.Background()

	for _, name := range []string{"Ada", "Bea", "Cid"} {
		_, err := conn.Exec(ctx, payload.NewCreate("authors", map[string]any{"name": name, "country": "FI"}))
		require.NoError(t, err)
	}

	result, err := conn.Exec(ctx, payload.NewSearch("authors", payload.Cond{Eq: map[string]any{"country": "FI"}}, payload.Attrs{OrderBy: "name ASC", Limit: 2}))
	require.NoError(t, err)

	rows := result.([]map[string]any)
	require.Len(t, rows, 2)
	require.Equal(t, "Ada", rows[0]["name"])
}

func TestCountWithoutColumnCountsAllRows(t *testing.T) {
	conn := newTestConn(t)
	ctx := context.Background()

	_, err := conn.Exec(ctx, payload.NewCreate("authors", map[string]any{"name": "Ada", "country": "FI"}))
	require.NoError(t, err)

	result, err := conn.Exec(ctx, payload.NewCount("authors", payload.Cond{}, payload.Attrs{}, "", ""))
	require.NoError(t, err)
	require.Equal(t, int64(1), result)
}

func TestUpdateAndDeleteAffectMatchingRows(t *testing.T) {
	conn := newTestConn(t)
	ctx := context.Background()

	created, err := conn.Exec(ctx, payload.NewCreate("authors", map[string]any{"name": "Ada", "country": "FI"}))
	require.NoError(t, err)
	id := created.(map[string]any)["id"]

	affected, err := conn.Exec(ctx, payload.NewUpdate("authors", payload.Cond{Eq: map[string]any{"id": id}}, map[string]any{"country": "SE"}))
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	affected, err = conn.Exec(ctx, payload.NewDelete("authors", payload.Cond{Eq: map[string]any{"id": id}}))
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)
}

func TestSearchWithPrefetchAttachesHasManyRelation(t *testing.T) {
	conn := newTestConn(t)
	ctx := context.Background()

	author, err := conn.Exec(ctx, payload.NewCreate("authors", map[string]any{"name": "Ada", "country": "FI"}))
	require.NoError(t, err)
	authorID := author.(map[string]any)["id"]

	_, err = conn.Exec(ctx, payload.NewCreate("books", map[string]any{"author_id": authorID, "title": "Letters", "published_year": 1843}))
	require.NoError(t, err)

	result, err := conn.Exec(ctx, payload.NewSearch("authors", payload.Cond{}, payload.Attrs{Prefetch: payload.NewPrefetchFromString("books")}))
	require.NoError(t, err)

	rows := result.([]map[string]any)
	require.Len(t, rows, 1)

	books := rows[0]["books"].([]map[string]any)
	require.Len(t, books, 1)
	require.Equal(t, "Letters", books[0]["title"])
}

func TestTxnDoResolvesPlaceholderAcrossSteps(t *testing.T) {
	conn := newTestConn(t)
	ctx := context.Background()

	_, err := conn.Exec(ctx, payload.TxnDo{Steps: []payload.TxnDoStep{
		{
			Action: payload.TxnStepCreate,
			Name:   "author",
			Source: "authors",
			Data:   map[string]any{"name": "Grace Hopper", "country": "US"},
		},
		{
			Action: payload.TxnStepCreate,
			Source: "books",
			Data: map[string]any{
				"author_id":      "$author.id",
				"title":          "The First Compiler",
				"published_year": 1952,
			},
		},
	}})
	require.NoError(t, err)

	result, err := conn.Exec(ctx, payload.NewSearch("books", payload.Cond{}, payload.Attrs{}))
	require.NoError(t, err)
	rows := result.([]map[string]any)
	require.Len(t, rows, 1)
	require.Equal(t, "The First Compiler", rows[0]["title"])
}

func TestPingReturnsPong(t *testing.T) {
	conn := newTestConn(t)

	result, err := conn.Exec(context.Background(), payload.Ping{})
	require.NoError(t, err)
	require.Equal(t, "pong", result)
}

func TestSourcesListsDeployedTables(t *testing.T) {
	conn := newTestConn(t)

	sources, err := conn.Sources(context.Background())
	require.NoError(t, err)
	require.Contains(t, sources, "authors")
	require.Contains(t, sources, "books")
}

func TestColumnsReportsPrimaryKey(t *testing.T) {
	conn := newTestConn(t)

	cols, err := conn.Columns(context.Background(), "authors")
	require.NoError(t, err)

	var sawID bool
	for _, c := range cols {
		if c.Name == "id" {
			sawID = true
			require.True(t, c.PrimaryKey)
		}
	}

	require.True(t, sawID)
}
