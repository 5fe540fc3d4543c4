package dbasync

import (
	"context"
	"fmt"
	"sync"

	"github.com/tonimelisma/dbasync/internal/config"
	"github.com/tonimelisma/dbasync/internal/dispatch"
	"github.com/tonimelisma/dbasync/internal/future"
	"github.com/tonimelisma/dbasync/internal/ormcap"
	"github.com/tonimelisma/dbasync/internal/payload"
)

// Schema is the façade constructed once per logical database. It owns the
// Dispatcher, vends ResultSets by source name, and exposes introspection
// backed by the dispatcher's cached metadata.
type Schema struct {
	cfg        *Config
	dispatcher *dispatch.Dispatcher

	closeOnce sync.Once
	closeErr  error
}

// Open validates cfg, builds the SQL-backed ORM capability, and eagerly
// bootstraps the worker pool behind it.
func Open(ctx context.Context, cfg *Config) (*Schema, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config must not be nil", ErrConfig)
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	d, err := dispatch.New(ctx, cfg, ormcap.NewEngine())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBootstrap, err)
	}

	return &Schema{cfg: cfg, dispatcher: d}, nil
}

// ResultSet vends a new, unrefined ResultSet for source.
func (s *Schema) ResultSet(source string) *ResultSet {
	return &ResultSet{dispatcher: s.dispatcher, source: source}
}

// Sources returns the cached list of known tables, captured once at
// bootstrap.
func (s *Schema) Sources() []string { return s.dispatcher.Sources() }

// Class returns the result-class name for source: the configured
// SchemaClass, or source itself when SchemaClass is empty. There is no
// per-source override.
func (s *Schema) Class(source string) string {
	if s.cfg.SchemaClass != "" {
		return s.cfg.SchemaClass
	}

	return source
}

// Columns returns cached column metadata for source.
func (s *Schema) Columns(source string) ([]ormcap.ColumnInfo, bool) {
	return s.dispatcher.Columns(source)
}

// Stats returns a snapshot of the dispatcher's counters.
func (s *Schema) Stats() dispatch.Stats { return s.dispatcher.Stats() }

// HealthCheck pings every worker and returns every failure joined into one
// error, or nil when all workers respond.
func (s *Schema) HealthCheck(ctx context.Context) error {
	return s.dispatcher.HealthCheck(ctx)
}

// Ping issues the liveness probe to one worker, round-robin, and resolves
// to "pong".
func (s *Schema) Ping() *future.Future[string] {
	raw := s.dispatcher.Dispatch(payload.Ping{})

	return mapFuture(raw, func(v any) (string, error) {
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("dbasync: expected string, got %T", v)
		}

		return s, nil
	})
}

// Deploy runs goose migrations from dir against one worker's connection.
func (s *Schema) Deploy(dir string, args map[string]any) *future.Future[bool] {
	raw := s.dispatcher.Dispatch(payload.Deploy{Dir: dir, Args: args})

	return mapFuture(raw, toBool)
}

// TxnBatch runs an ordered batch of writes inside one transaction, pinned
// to whichever worker handles the call, and resolves to the number of
// steps applied.
func (s *Schema) TxnBatch(steps []payload.TxnBatchStep) *future.Future[payload.TxnBatchResult] {
	raw := s.dispatcher.Dispatch(payload.TxnBatch{Steps: steps})

	return mapFuture(raw, toTxnBatchResult)
}

// TxnDo runs a named, ordered sequence of steps inside one transaction,
// with register-based placeholder substitution between steps, and
// resolves to one result per step in step order.
func (s *Schema) TxnDo(steps []payload.TxnDoStep) *future.Future[payload.TxnDoResult] {
	raw := s.dispatcher.Dispatch(payload.TxnDo{Steps: steps})

	return mapFuture(raw, toTxnDoResult)
}

// TxnBegin, TxnCommit, and TxnRollback issue the three standalone
// transaction-control calls. Round-robin routing does not guarantee they
// land on the same worker — see DESIGN.md.
func (s *Schema) TxnBegin() *future.Future[payload.TxnControlResult] {
	return mapFuture(s.dispatcher.Dispatch(payload.TxnBegin{}), toTxnControlResult)
}

func (s *Schema) TxnCommit() *future.Future[payload.TxnControlResult] {
	return mapFuture(s.dispatcher.Dispatch(payload.TxnCommit{}), toTxnControlResult)
}

func (s *Schema) TxnRollback() *future.Future[payload.TxnControlResult] {
	return mapFuture(s.dispatcher.Dispatch(payload.TxnRollback{}), toTxnControlResult)
}

// Disconnect tears down every worker. It is idempotent: calling it more
// than once returns the same result every time without touching the
// dispatcher again.
func (s *Schema) Disconnect() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.dispatcher.Close()
	})

	return s.closeErr
}

func toTxnBatchResult(v any) (payload.TxnBatchResult, error) {
	r, ok := v.(payload.TxnBatchResult)
	if !ok {
		return payload.TxnBatchResult{}, fmt.Errorf("dbasync: expected payload.TxnBatchResult, got %T", v)
	}

	return r, nil
}

func toTxnDoResult(v any) (payload.TxnDoResult, error) {
	r, ok := v.(payload.TxnDoResult)
	if !ok {
		return payload.TxnDoResult{}, fmt.Errorf("dbasync: expected payload.TxnDoResult, got %T", v)
	}

	return r, nil
}

func toTxnControlResult(v any) (payload.TxnControlResult, error) {
	r, ok := v.(payload.TxnControlResult)
	if !ok {
		return payload.TxnControlResult{}, fmt.Errorf("dbasync: expected payload.TxnControlResult, got %T", v)
	}

	return r, nil
}

func toBool(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("dbasync: expected bool, got %T", v)
	}

	return b, nil
}
