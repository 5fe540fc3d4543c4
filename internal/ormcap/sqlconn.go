package ormcap

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql" // registers as "mysql"
	_ "github.com/lib/pq"              // registers as "postgres"
	_ "modernc.org/sqlite"             // pure Go, registers as "sqlite"

	"github.com/tonimelisma/dbasync/internal/config"
	"github.com/tonimelisma/dbasync/internal/payload"
)

// sqlEngine is the shipped Engine implementation, talking to any
// database/sql driver through sqlx. The default driver exercised by this
// module's tests is modernc.org/sqlite (pure Go, no cgo); github.com/lib/pq
// and github.com/go-sql-driver/mysql are wired as alternate drivers behind
// the same interface (see migrations.go's introspection helpers).
type sqlEngine struct{}

// NewEngine returns the sqlx/squirrel/goose-backed Engine.
func NewEngine() Engine { return sqlEngine{} }

func (sqlEngine) Connect(ctx context.Context, driver, dsn string, onConnectDo []string) (Conn, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("ormcap: opening %s: %w", driver, err)
	}

	// Exactly one open connection: a worker's Conn is never shared across
	// goroutines, so a pool would only mask bugs, not help concurrency.
	db.SetMaxOpenConns(1)

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ormcap: connecting %s: %w", driver, pingErr)
	}

	for _, stmt := range onConnectDo {
		if _, execErr := db.ExecContext(ctx, stmt); execErr != nil {
			_ = db.Close()

			return nil, fmt.Errorf("ormcap: on_connect_do %q: %w", stmt, execErr)
		}
	}

	return &sqlConn{
		db:      db,
		driver:  driver,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholderFor(driver)),
	}, nil
}

// execer is satisfied by both *sqlx.DB and *sqlx.Tx, letting exec helpers
// run against either the connection's base handle or an open transaction
// without duplicating code.
type execer interface {
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type sqlConn struct {
	db      *sqlx.DB
	driver  string
	builder sq.StatementBuilderType

	// tx is the transaction opened by a standalone TxnBegin call, held
	// across subsequent calls until TxnCommit/TxnRollback. Round-robin
	// routing does not guarantee TxnBegin/TxnDo/TxnCommit land on the same
	// worker, so callers needing that must pin their own dispatch.
	tx *sqlx.Tx

	relations map[string]map[string]config.Relation
}

// SetRelations installs the prefetch relation registry. Called once
// during worker bootstrap, before any payload is executed.
func (c *sqlConn) SetRelations(rels []config.Relation) {
	c.relations = make(map[string]map[string]config.Relation, len(rels))

	for _, r := range rels {
		byName, ok := c.relations[r.Parent]
		if !ok {
			byName = make(map[string]config.Relation)
			c.relations[r.Parent] = byName
		}

		byName[r.Name] = r
	}
}

func (c *sqlConn) Close() error {
	if c.tx != nil {
		_ = c.tx.Rollback()
		c.tx = nil
	}

	return c.db.Close()
}

func (c *sqlConn) Exec(ctx context.Context, op payload.Op) (any, error) {
	switch v := op.(type) {
	case payload.Count:
		return c.execCount(ctx, v)
	case payload.Search:
		return c.execSearch(ctx, v)
	case payload.Find:
		return c.execFind(ctx, v)
	case payload.Create:
		return c.execCreate(ctx, c.db, v)
	case payload.Update:
		return c.execUpdate(ctx, v)
	case payload.Delete:
		return c.execDelete(ctx, v)
	case payload.Populate:
		return c.execPopulate(ctx, v)
	case payload.PopulateBulk:
		return c.execPopulateBulk(ctx, v)
	case payload.TxnBatch:
		return c.execTxnBatch(ctx, v)
	case payload.TxnDo:
		return c.execTxnDo(ctx, v)
	case payload.TxnBegin:
		return c.execTxnBegin(ctx)
	case payload.TxnCommit:
		return c.execTxnCommit()
	case payload.TxnRollback:
		return c.execTxnRollback()
	case payload.Ping:
		return "pong", nil
	case payload.HealthCheck:
		return c.execHealthCheck(ctx)
	case payload.Deploy:
		if err := c.Deploy(ctx, v); err != nil {
			return nil, err
		}

		return true, nil
	default:
		return nil, fmt.Errorf("ormcap: unknown operation: %T", op)
	}
}

func (c *sqlConn) execHealthCheck(ctx context.Context) (any, error) {
	if err := c.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ormcap: health check: %w", err)
	}

	return true, nil
}

func (c *sqlConn) execCount(ctx context.Context, v payload.Count) (any, error) {
	sel, err := buildCount(c.builder, v.Source, v.Cond, v.Attrs, v.Fn, v.Column)
	if err != nil {
		return nil, err
	}

	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ormcap: building count query: %w", err)
	}

	var value sql.NullFloat64
	if err := c.db.QueryRowxContext(ctx, query, args...).Scan(&value); err != nil {
		return nil, fmt.Errorf("ormcap: executing count query: %w", err)
	}

	if !value.Valid {
		return nil, nil
	}

	if v.Fn == "" || v.Fn == "count" {
		return int64(value.Float64), nil
	}

	return value.Float64, nil
}

func (c *sqlConn) execSearch(ctx context.Context, v payload.Search) (any, error) {
	sel := buildSelect(c.builder, v.Source, v.Cond, v.Attrs)

	records, err := c.queryRecords(ctx, sel)
	if err != nil {
		return nil, err
	}

	if !v.Attrs.Prefetch.IsEmpty() {
		if err := c.attachPrefetch(ctx, v.Source, records, v.Attrs.Prefetch); err != nil {
			return nil, err
		}
	}

	return records, nil
}

func (c *sqlConn) execFind(ctx context.Context, v payload.Find) (any, error) {
	sel := buildSelect(c.builder, v.Source, v.Query, v.Attrs)
	sel = sel.Limit(1)

	records, err := c.queryRecords(ctx, sel)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, nil
	}

	if !v.Attrs.Prefetch.IsEmpty() {
		if err := c.attachPrefetch(ctx, v.Source, records[:1], v.Attrs.Prefetch); err != nil {
			return nil, err
		}
	}

	return records[0], nil
}

func (c *sqlConn) queryRecords(ctx context.Context, sel sq.SelectBuilder) ([]map[string]any, error) {
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ormcap: building query: %w", err)
	}

	rows, err := c.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ormcap: executing query: %w", err)
	}
	defer rows.Close()

	records := make([]map[string]any, 0)

	for rows.Next() {
		row := make(map[string]any)
		if scanErr := rows.MapScan(row); scanErr != nil {
			return nil, fmt.Errorf("ormcap: scanning row: %w", scanErr)
		}

		records = append(records, row)
	}

	return records, rows.Err()
}

func (c *sqlConn) execCreate(ctx context.Context, x execer, v payload.Create) (any, error) {
	ins := c.builder.Insert(v.Source)

	cols := make([]string, 0, len(v.Data))
	vals := make([]any, 0, len(v.Data))

	for col, val := range v.Data {
		cols = append(cols, col)
		vals = append(vals, val)
	}

	ins = ins.Columns(cols...).Values(vals...)

	query, args, err := ins.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ormcap: building insert: %w", err)
	}

	result, err := x.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ormcap: executing insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("ormcap: reading inserted id: %w", err)
	}

	// Re-select the row so every column is materialized, including
	// defaults and the auto-increment id assigned by the database.
	sel := c.builder.Select("*").From(v.Source).Where(sq.Eq{"id": id}).Limit(1)

	selQuery, selArgs, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ormcap: building post-insert select: %w", err)
	}

	row := make(map[string]any)
	if err := x.QueryRowxContext(ctx, selQuery, selArgs...).MapScan(row); err != nil {
		return nil, fmt.Errorf("ormcap: materializing inserted row: %w", err)
	}

	return row, nil
}

func (c *sqlConn) execUpdate(ctx context.Context, v payload.Update) (any, error) {
	if len(v.Updates) == 0 {
		return int64(0), nil
	}

	upd := c.builder.Update(v.Source)
	for col, val := range v.Updates {
		upd = upd.Set(col, val)
	}

	if p, ok := buildPredicate(v.Cond); ok {
		upd = upd.Where(p)
	}

	query, args, err := upd.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ormcap: building update: %w", err)
	}

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ormcap: executing update: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("ormcap: reading affected rows: %w", err)
	}

	return affected, nil
}

func (c *sqlConn) execDelete(ctx context.Context, v payload.Delete) (any, error) {
	del := c.builder.Delete(v.Source)

	if p, ok := buildPredicate(v.Cond); ok {
		del = del.Where(p)
	}

	query, args, err := del.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ormcap: building delete: %w", err)
	}

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ormcap: executing delete: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("ormcap: reading affected rows: %w", err)
	}

	return affected, nil
}

func (c *sqlConn) execPopulate(ctx context.Context, v payload.Populate) (any, error) {
	records := make([]map[string]any, 0, len(v.Data))

	for _, row := range v.Data {
		created, err := c.execCreate(ctx, c.db, payload.NewCreate(v.Source, row))
		if err != nil {
			return nil, err
		}

		records = append(records, created.(map[string]any))
	}

	return records, nil
}

func (c *sqlConn) execPopulateBulk(ctx context.Context, v payload.PopulateBulk) (any, error) {
	for _, row := range v.Data {
		if _, err := c.execCreate(ctx, c.db, payload.NewCreate(v.Source, row)); err != nil {
			return nil, err
		}
	}

	return 1, nil
}
