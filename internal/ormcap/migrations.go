package ormcap

import (
	"context"
	"fmt"
	"os"

	"github.com/pressly/goose/v3"

	"github.com/tonimelisma/dbasync/internal/payload"
)

// Deploy runs goose migrations from d.Dir against the connection's own
// database handle, so the migration table is created and advanced on the
// exact connection the worker already owns.
func (c *sqlConn) Deploy(ctx context.Context, d payload.Deploy) error {
	dir := d.Dir
	if dir == "" {
		return fmt.Errorf("ormcap: deploy requires a migrations directory")
	}

	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("ormcap: migrations directory %q: %w", dir, err)
	}

	if err := goose.SetDialect(gooseDialect(c.driver)); err != nil {
		return fmt.Errorf("ormcap: setting goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, c.db.DB, dir); err != nil {
		return fmt.Errorf("ormcap: running migrations: %w", err)
	}

	return nil
}

func gooseDialect(driver string) string {
	switch driver {
	case "postgres":
		return "postgres"
	case "mysql":
		return "mysql"
	default:
		return "sqlite3"
	}
}

// Sources lists every known table name, using a driver-specific query.
func (c *sqlConn) Sources(ctx context.Context) ([]string, error) {
	query := sourcesQuery(c.driver)

	var names []string
	if err := c.db.SelectContext(ctx, &names, query); err != nil {
		return nil, fmt.Errorf("ormcap: listing sources: %w", err)
	}

	return names, nil
}

func sourcesQuery(driver string) string {
	switch driver {
	case "postgres":
		return `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' ORDER BY table_name`
	case "mysql":
		return `SELECT table_name FROM information_schema.tables WHERE table_schema = database() ORDER BY table_name`
	default:
		return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name != 'goose_db_version' ORDER BY name`
	}
}

// Columns returns column metadata for source, used both by the schema
// façade's introspection and by the dispatcher's startup column cache.
func (c *sqlConn) Columns(ctx context.Context, source string) ([]ColumnInfo, error) {
	if c.driver == "postgres" || c.driver == "mysql" {
		return c.columnsFromInformationSchema(ctx, source)
	}

	return c.columnsFromPragma(ctx, source)
}

func (c *sqlConn) columnsFromPragma(ctx context.Context, source string) ([]ColumnInfo, error) {
	type pragmaRow struct {
		CID       int     `db:"cid"`
		Name      string  `db:"name"`
		Type      string  `db:"type"`
		NotNull   int     `db:"notnull"`
		DfltValue *string `db:"dflt_value"`
		PK        int     `db:"pk"`
	}

	var rows []pragmaRow
	// PRAGMA does not accept bind parameters; callers must validate source
	// against Sources() before calling Columns.
	if err := c.db.SelectContext(ctx, &rows, fmt.Sprintf("PRAGMA table_info(%q)", source)); err != nil {
		return nil, fmt.Errorf("ormcap: introspecting %s: %w", source, err)
	}

	cols := make([]ColumnInfo, 0, len(rows))
	for _, r := range rows {
		cols = append(cols, ColumnInfo{
			Name:       r.Name,
			Type:       r.Type,
			PrimaryKey: r.PK > 0,
			Nullable:   r.NotNull == 0,
		})
	}

	return cols, nil
}

func (c *sqlConn) columnsFromInformationSchema(ctx context.Context, source string) ([]ColumnInfo, error) {
	type isRow struct {
		Name     string `db:"column_name"`
		Type     string `db:"data_type"`
		Nullable string `db:"is_nullable"`
	}

	query := `SELECT column_name, data_type, is_nullable FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position`
	if c.driver == "postgres" {
		query = `SELECT column_name, data_type, is_nullable FROM information_schema.columns WHERE table_name = $1 ORDER BY ordinal_position`
	}

	var rows []isRow
	if err := c.db.SelectContext(ctx, &rows, query, source); err != nil {
		return nil, fmt.Errorf("ormcap: introspecting %s: %w", source, err)
	}

	primaryKeys, err := c.primaryKeys(ctx, source)
	if err != nil {
		return nil, err
	}

	cols := make([]ColumnInfo, 0, len(rows))
	for _, r := range rows {
		cols = append(cols, ColumnInfo{
			Name:       r.Name,
			Type:       r.Type,
			PrimaryKey: primaryKeys[r.Name],
			Nullable:   r.Nullable == "YES",
		})
	}

	return cols, nil
}

func (c *sqlConn) primaryKeys(ctx context.Context, source string) (map[string]bool, error) {
	query := `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
		WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_name = ?`
	if c.driver == "postgres" {
		query = `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
		WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_name = $1`
	}

	var names []string
	if err := c.db.SelectContext(ctx, &names, query, source); err != nil {
		return nil, fmt.Errorf("ormcap: reading primary key of %s: %w", source, err)
	}

	pk := make(map[string]bool, len(names))
	for _, n := range names {
		pk[n] = true
	}

	return pk, nil
}
