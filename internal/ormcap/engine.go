// Package ormcap provides a concrete implementation of the synchronous
// database capability a worker needs: opening a connection, running one
// operation against it, and describing its schema. A worker holds exactly
// one Conn for its goroutine's lifetime; Conn.Exec is the single entry
// point the worker's dispatch loop calls into.
//
// The shipped implementation executes against database/sql through
// jmoiron/sqlx for row scanning, builds parameterized SQL with
// Masterminds/squirrel, and drives schema deploy through pressly/goose/v3.
package ormcap

import (
	"context"

	"github.com/tonimelisma/dbasync/internal/config"
	"github.com/tonimelisma/dbasync/internal/payload"
)

// ColumnInfo describes one column of a source (table).
type ColumnInfo struct {
	Name       string
	Type       string
	PrimaryKey bool
	Nullable   bool
}

// Engine opens connections.
type Engine interface {
	Connect(ctx context.Context, driver, dsn string, onConnectDo []string) (Conn, error)
}

// Conn is a live, single-owner database connection plus its operation
// catalog. A worker calls Exec once per payload; Conn implementations
// must not be shared across worker goroutines — each connection takes at
// most one call at a time.
type Conn interface {
	// Columns returns column metadata for source, used both by schema
	// introspection and by the dispatcher's eager metadata capture at
	// construction time.
	Columns(ctx context.Context, source string) ([]ColumnInfo, error)

	// Sources lists every known source (table) name.
	Sources(ctx context.Context) ([]string, error)

	// Exec runs one payload.Op and returns its plain-data result, or an
	// error.
	Exec(ctx context.Context, op payload.Op) (any, error)

	// Deploy delegates schema DDL to goose-managed migrations.
	Deploy(ctx context.Context, d payload.Deploy) error

	// SetRelations installs the prefetch relation registry. Called once
	// during worker bootstrap, before any payload is executed.
	SetRelations(relations []config.Relation)

	// Close releases the underlying database handle.
	Close() error
}
