package ormcap

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"

	"github.com/tonimelisma/dbasync/internal/payload"
)

// execTxnBatch runs an ordered batch of writes inside one transaction and
// rolls back on the first failure.
func (c *sqlConn) execTxnBatch(ctx context.Context, v payload.TxnBatch) (any, error) {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ormcap: beginning txn_batch: %w", err)
	}

	for i, step := range v.Steps {
		if err := c.runBatchStep(ctx, tx, step); err != nil {
			_ = tx.Rollback()

			return nil, fmt.Errorf("ormcap: txn_batch step %d (%s): %w", i, step.Kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ormcap: committing txn_batch: %w", err)
	}

	return payload.TxnBatchResult{Count: len(v.Steps), Success: true}, nil
}

func (c *sqlConn) runBatchStep(ctx context.Context, tx *sqlx.Tx, step payload.TxnBatchStep) error {
	switch step.Kind {
	case payload.TxnStepCreate:
		_, err := c.execCreate(ctx, tx, payload.NewCreate(step.Source, step.Data))

		return err
	case payload.TxnStepUpdate:
		_, err := tx.ExecContext(ctx, "UPDATE "+step.Source+" SET "+setClause(step.Data)+" WHERE id = ?", append(setValues(step.Data), step.ID)...)

		return err
	case payload.TxnStepDelete:
		_, err := tx.ExecContext(ctx, "DELETE FROM "+step.Source+" WHERE id = ?", step.ID)

		return err
	case payload.TxnStepFind:
		discard := make(map[string]any)
		row := tx.QueryRowxContext(ctx, "SELECT * FROM "+step.Source+" WHERE id = ?", step.ID)

		return row.MapScan(discard)
	case payload.TxnStepRaw:
		_, err := tx.ExecContext(ctx, step.SQL, step.Bind...)

		return err
	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

// placeholderPattern matches "$name.field" register references inside a
// txn_do step's bound values.
var placeholderPattern = regexp.MustCompile(`^\$([A-Za-z0-9_]+)\.(\w+)$`)

// execTxnDo runs a named, ordered sequence of steps inside one transaction,
// substituting "$name.field" references against a per-call register
// populated by each step's own result as it runs.
func (c *sqlConn) execTxnDo(ctx context.Context, v payload.TxnDo) (any, error) {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ormcap: beginning txn_do: %w", err)
	}

	register := make(map[string]map[string]any)
	results := make([]any, len(v.Steps))

	for i, step := range v.Steps {
		result, err := c.runDoStep(ctx, tx, step, register)
		if err != nil {
			_ = tx.Rollback()

			return nil, fmt.Errorf("ormcap: txn_do step %d (%s): %w", i, step.Action, err)
		}

		if step.Name != "" {
			register[step.Name] = result
		}

		results[i] = result
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ormcap: committing txn_do: %w", err)
	}

	return payload.TxnDoResult{Results: results, Success: true}, nil
}

func (c *sqlConn) runDoStep(ctx context.Context, tx *sqlx.Tx, step payload.TxnDoStep, register map[string]map[string]any) (map[string]any, error) {
	data := resolvePlaceholders(step.Data, register)

	switch step.Action {
	case payload.TxnStepCreate:
		row, err := c.execCreate(ctx, tx, payload.NewCreate(step.Source, data))
		if err != nil {
			return nil, err
		}

		return row.(map[string]any), nil
	case payload.TxnStepUpdate:
		id := resolvePlaceholder(step.ID, register)

		_, err := tx.ExecContext(ctx, "UPDATE "+step.Source+" SET "+setClause(data)+" WHERE id = ?", append(setValues(data), id)...)

		return nil, err
	case payload.TxnStepDelete:
		id := resolvePlaceholder(step.ID, register)
		_, err := tx.ExecContext(ctx, "DELETE FROM "+step.Source+" WHERE id = ?", id)

		return nil, err
	case payload.TxnStepFind:
		id := resolvePlaceholder(step.ID, register)
		row := make(map[string]any)
		err := tx.QueryRowxContext(ctx, "SELECT * FROM "+step.Source+" WHERE id = ?", id).MapScan(row)

		return row, err
	case payload.TxnStepRaw:
		bind := make([]any, len(step.Bind))
		for i, b := range step.Bind {
			bind[i] = resolvePlaceholder(b, register)
		}

		_, err := tx.ExecContext(ctx, step.SQL, bind...)

		return nil, err
	default:
		return nil, fmt.Errorf("unknown step action %q", step.Action)
	}
}

func resolvePlaceholders(data map[string]any, register map[string]map[string]any) map[string]any {
	resolved := make(map[string]any, len(data))
	for k, v := range data {
		resolved[k] = resolvePlaceholder(v, register)
	}

	return resolved
}

func resolvePlaceholder(v any, register map[string]map[string]any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}

	m := placeholderPattern.FindStringSubmatch(s)
	if m == nil {
		return v
	}

	row, ok := register[m[1]]
	if !ok {
		return v
	}

	return row[m[2]]
}

func setClause(data map[string]any) string {
	clause := ""
	first := true

	for col := range data {
		if !first {
			clause += ", "
		}

		clause += col + " = ?"
		first = false
	}

	return clause
}

func setValues(data map[string]any) []any {
	vals := make([]any, 0, len(data))
	for _, v := range data {
		vals = append(vals, v)
	}

	return vals
}

func (c *sqlConn) execTxnBegin(ctx context.Context) (any, error) {
	if c.tx != nil {
		return nil, fmt.Errorf("ormcap: txn_begin called with a transaction already open")
	}

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ormcap: beginning transaction: %w", err)
	}

	c.tx = tx

	return payload.TxnControlResult{Success: true}, nil
}

func (c *sqlConn) execTxnCommit() (any, error) {
	if c.tx == nil {
		return nil, fmt.Errorf("ormcap: txn_commit called with no transaction open")
	}

	err := c.tx.Commit()
	c.tx = nil

	if err != nil {
		return nil, fmt.Errorf("ormcap: committing transaction: %w", err)
	}

	return payload.TxnControlResult{Success: true}, nil
}

func (c *sqlConn) execTxnRollback() (any, error) {
	if c.tx == nil {
		return nil, fmt.Errorf("ormcap: txn_rollback called with no transaction open")
	}

	err := c.tx.Rollback()
	c.tx = nil

	if err != nil {
		return nil, fmt.Errorf("ormcap: rolling back transaction: %w", err)
	}

	return payload.TxnControlResult{Success: true}, nil
}
