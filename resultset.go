package dbasync

import (
	"context"
	"fmt"

	"github.com/tonimelisma/dbasync/internal/dispatch"
	"github.com/tonimelisma/dbasync/internal/future"
	"github.com/tonimelisma/dbasync/internal/payload"
)

// defaultPageSize is the row count per page when Page is called without a
// prior Rows refinement setting one explicitly.
const defaultPageSize = 10

// ResultSet is an immutable query specification. Every refinement method
// returns a new ResultSet; the receiver is never mutated. A ResultSet is
// only ever produced by Schema.ResultSet or by refining an existing one.
type ResultSet struct {
	dispatcher *dispatch.Dispatcher
	source     string
	cond       payload.Cond
	attrs      payload.Attrs
	err        error
	pager      *pagerState
}

type pagerState struct {
	page     int
	pageSize int
}

func (rs *ResultSet) clone() *ResultSet {
	c := *rs

	return &c
}

// Search merges cond and attrs into the current query specification. Two
// non-empty conditions combine under a logical AND; a raw condition always
// replaces whatever preceded it. Refining the condition drops any earlier
// paging state, since rows/offset/limit only made sense for the prior query.
func (rs *ResultSet) Search(cond payload.Cond, attrs payload.Attrs) *ResultSet {
	c := rs.clone()
	c.cond = mergeCond(rs.cond, cond)
	c.attrs = mergeAttrs(rs.attrs, attrs)
	c.pager = nil
	c.err = nil

	return c
}

func mergeCond(old, next payload.Cond) payload.Cond {
	if old.IsZero() {
		return next
	}

	if next.Raw != "" || next.IsZero() {
		if next.IsZero() {
			return old
		}

		return next
	}

	return payload.Cond{And: []payload.Cond{old, next}}
}

func mergeAttrs(old, next payload.Attrs) payload.Attrs {
	return payload.Attrs{
		Rows:       next.Rows,
		Offset:     next.Offset,
		Limit:      next.Limit,
		OrderBy:    firstNonEmpty(next.OrderBy, old.OrderBy),
		Prefetch:   choosePrefetch(next.Prefetch, old.Prefetch),
		Collapse:   next.Collapse || old.Collapse,
		Alias:      firstNonEmpty(next.Alias, old.Alias),
		IsSubquery: next.IsSubquery || old.IsSubquery,
		Cache:      next.Cache || old.Cache,
		ResultCls:  firstNonEmpty(next.ResultCls, old.ResultCls),
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}

	return b
}

func choosePrefetch(a, b payload.Prefetch) payload.Prefetch {
	if !a.IsEmpty() {
		return a
	}

	return b
}

// ResultClass returns the result-class override, or the source name when
// none was set.
func (rs *ResultSet) ResultClass() string {
	if rs.attrs.ResultCls != "" {
		return rs.attrs.ResultCls
	}

	return rs.source
}

// SetResultClass returns a clone with the result-class override set.
func (rs *ResultSet) SetResultClass(name string) *ResultSet {
	c := rs.clone()
	c.attrs.ResultCls = name

	return c
}

// Rows sets the row cap (also used as the page size by Page).
func (rs *ResultSet) Rows(n int) *ResultSet {
	c := rs.clone()
	c.attrs.Rows = n

	return c
}

// OrderBy sets the ORDER BY clause.
func (rs *ResultSet) OrderBy(spec string) *ResultSet {
	c := rs.clone()
	c.attrs.OrderBy = spec

	return c
}

// Page selects page n (1-indexed), using the page size set by a prior Rows
// call or defaultPageSize otherwise.
func (rs *ResultSet) Page(n int) *ResultSet {
	c := rs.clone()

	pageSize := defaultPageSize
	if rs.attrs.Rows > 0 {
		pageSize = rs.attrs.Rows
	}

	c.attrs.Rows = pageSize
	c.attrs.Offset = (n - 1) * pageSize
	c.pager = &pagerState{page: n, pageSize: pageSize}

	return c
}

// Slice selects rows [first, last] inclusive. An invalid range (first < 0
// or first > last) is recorded on the clone and surfaces as an error from
// the first terminal operation called on it, without ever reaching a
// worker.
func (rs *ResultSet) Slice(first, last int) *ResultSet {
	c := rs.clone()

	if first < 0 || first > last {
		c.err = fmt.Errorf("dbasync: invalid slice(%d, %d)", first, last)

		return c
	}

	c.attrs.Offset = first
	c.attrs.Limit = last - first + 1
	c.pager = nil

	return c
}

// All returns every row matching the current condition and attributes.
func (rs *ResultSet) All() *future.Future[[]map[string]any] {
	if rs.err != nil {
		return future.Failed[[]map[string]any](rs.err)
	}

	raw := rs.dispatcher.Dispatch(payload.NewSearch(rs.source, rs.cond, rs.attrs))

	return mapFuture(raw, castRecords)
}

// Find returns a single row matching query, or nil if none match.
func (rs *ResultSet) Find(query payload.Cond) *future.Future[map[string]any] {
	if rs.err != nil {
		return future.Failed[map[string]any](rs.err)
	}

	raw := rs.dispatcher.Dispatch(payload.NewFind(rs.source, query, rs.attrs))

	return mapFuture(raw, castRecord)
}

// FindByID is a convenience wrapper over Find for the common id-equality
// case.
func (rs *ResultSet) FindByID(id any) *future.Future[map[string]any] {
	return rs.Find(payload.Cond{Eq: map[string]any{"id": id}})
}

// Count returns the row count matching the current condition.
func (rs *ResultSet) Count() *future.Future[int64] {
	return rs.aggregate("", "")
}

// Sum returns SUM(column) over the matching rows.
func (rs *ResultSet) Sum(column string) *future.Future[float64] {
	return rs.aggregateFloat("sum", column)
}

// Max returns MAX(column) over the matching rows.
func (rs *ResultSet) Max(column string) *future.Future[float64] {
	return rs.aggregateFloat("max", column)
}

// Min returns MIN(column) over the matching rows.
func (rs *ResultSet) Min(column string) *future.Future[float64] {
	return rs.aggregateFloat("min", column)
}

// Avg returns AVG(column) over the matching rows.
func (rs *ResultSet) Avg(column string) *future.Future[float64] {
	return rs.aggregateFloat("avg", column)
}

// CountTotal is identical to Count, but runs against the unsliced base
// query: rows/offset/limit from a prior Page/Slice/Rows are dropped so the
// result reflects the full match set rather than one page of it.
func (rs *ResultSet) CountTotal() *future.Future[int64] {
	if rs.err != nil {
		return future.Failed[int64](rs.err)
	}

	baseAttrs := payload.Attrs{
		OrderBy:   rs.attrs.OrderBy,
		Prefetch:  rs.attrs.Prefetch,
		Cache:     rs.attrs.Cache,
		ResultCls: rs.attrs.ResultCls,
	}

	raw := rs.dispatcher.Dispatch(payload.NewCount(rs.source, rs.cond, baseAttrs, "", ""))

	return mapFuture(raw, toInt64)
}

func (rs *ResultSet) aggregate(fn, column string) *future.Future[int64] {
	if rs.err != nil {
		return future.Failed[int64](rs.err)
	}

	raw := rs.dispatcher.Dispatch(payload.NewCount(rs.source, rs.cond, rs.attrs, fn, column))

	return mapFuture(raw, toInt64)
}

func (rs *ResultSet) aggregateFloat(fn, column string) *future.Future[float64] {
	if rs.err != nil {
		return future.Failed[float64](rs.err)
	}

	raw := rs.dispatcher.Dispatch(payload.NewCount(rs.source, rs.cond, rs.attrs, fn, column))

	return mapFuture(raw, toFloat64)
}

// Create inserts one row and returns it with every column materialized.
func (rs *ResultSet) Create(data map[string]any) *future.Future[map[string]any] {
	raw := rs.dispatcher.Dispatch(payload.NewCreate(rs.source, data))

	return mapFuture(raw, castRecord)
}

// Update applies updates to every row matching the current condition. An
// empty updates map short-circuits to 0 without dispatching to a worker.
func (rs *ResultSet) Update(updates map[string]any) *future.Future[int64] {
	if len(updates) == 0 {
		return future.Resolved[int64](0)
	}

	raw := rs.dispatcher.Dispatch(payload.NewUpdate(rs.source, rs.cond, updates))

	return mapFuture(raw, toInt64)
}

// Delete removes every row matching the current condition.
func (rs *ResultSet) Delete() *future.Future[int64] {
	raw := rs.dispatcher.Dispatch(payload.NewDelete(rs.source, rs.cond))

	return mapFuture(raw, toInt64)
}

// Populate bulk-inserts rows and returns each materialized record.
func (rs *ResultSet) Populate(rows []map[string]any) *future.Future[[]map[string]any] {
	raw := rs.dispatcher.Dispatch(payload.NewPopulate(rs.source, rows))

	return mapFuture(raw, castRecords)
}

// PopulateBulk bulk-inserts rows without echoing them back.
func (rs *ResultSet) PopulateBulk(rows []map[string]any) *future.Future[int] {
	raw := rs.dispatcher.Dispatch(payload.NewPopulateBulk(rs.source, rows))

	return mapFuture(raw, toInt)
}

// Page bundles a page of records with pagination metadata.
type Page struct {
	Records           []map[string]any
	PageNumber        int
	PageSize          int
	LastPage          int
	EntriesOnThisPage int
	CountTotal        int64
}

// FetchPage awaits both the page's records and the unsliced total count,
// then assembles Page. It requires a preceding Page(n) call.
func (rs *ResultSet) FetchPage(ctx context.Context) (*Page, error) {
	if rs.pager == nil {
		return nil, fmt.Errorf("dbasync: FetchPage called without a preceding Page(n)")
	}

	recordsFut := rs.All()
	totalFut := rs.CountTotal()

	records, err := recordsFut.Await(ctx)
	if err != nil {
		return nil, err
	}

	total, err := totalFut.Await(ctx)
	if err != nil {
		return nil, err
	}

	pageSize := rs.pager.pageSize
	lastPage := int((total + int64(pageSize) - 1) / int64(pageSize))

	return &Page{
		Records:           records,
		PageNumber:        rs.pager.page,
		PageSize:          pageSize,
		LastPage:          lastPage,
		EntriesOnThisPage: len(records),
		CountTotal:        total,
	}, nil
}

// mapFuture adapts a *future.Future[any] into a *future.Future[T], running
// convert in a background goroutine so the caller never blocks awaiting the
// untyped future before it can await the typed one.
func mapFuture[T any](f *future.Future[any], convert func(any) (T, error)) *future.Future[T] {
	out, complete := future.New[T]()

	go func() {
		v, err := f.Await(context.Background())
		if err != nil {
			var zero T

			complete(zero, err)

			return
		}

		converted, convertErr := convert(v)
		complete(converted, convertErr)
	}()

	return out
}

func castRecords(v any) ([]map[string]any, error) {
	if v == nil {
		return nil, nil
	}

	records, ok := v.([]map[string]any)
	if !ok {
		return nil, fmt.Errorf("dbasync: expected []map[string]any, got %T", v)
	}

	return records, nil
}

func castRecord(v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}

	record, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("dbasync: expected map[string]any, got %T", v)
	}

	return record, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("dbasync: expected a number, got %T", v)
	}
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("dbasync: expected a number, got %T", v)
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("dbasync: expected a number, got %T", v)
	}
}
