// Package worker implements the goroutine that owns one database
// connection for its lifetime and executes payloads dispatched to it
// serially: one goroutine, one Conn, one job at a time, so the dispatcher
// can address workers individually for round-robin routing.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tonimelisma/dbasync/internal/config"
	"github.com/tonimelisma/dbasync/internal/ormcap"
	"github.com/tonimelisma/dbasync/internal/payload"
	"github.com/tonimelisma/dbasync/internal/trace"
)

// Job is one unit of dispatched work: an operation plus the completion
// callback the caller's Future is waiting on.
type Job struct {
	Op       payload.Op
	Complete func(any, error)
}

// Worker owns exactly one Conn and runs jobs pulled from its own channel,
// one at a time: its connection is never touched by two calls at once.
type Worker struct {
	id     int
	engine ormcap.Engine
	cfg    *config.Config
	logger *slog.Logger

	jobs chan Job

	conn ormcap.Conn
	// generation counts connection (re)births. It increments every time a
	// panic forces the worker to discard and reopen its connection.
	generation int
}

// New builds a Worker. It does not connect — call Bootstrap before Run.
func New(id int, engine ormcap.Engine, cfg *config.Config, logger *slog.Logger, queueDepth int) *Worker {
	if queueDepth < 1 {
		queueDepth = 1
	}

	return &Worker{
		id:     id,
		engine: engine,
		cfg:    cfg,
		logger: logger,
		jobs:   make(chan Job, queueDepth),
	}
}

// Jobs returns the channel the dispatcher enqueues onto for this worker.
func (w *Worker) Jobs() chan<- Job { return w.jobs }

// Conn exposes the worker's connection for the dispatcher's one-time
// metadata capture at startup. It must not be used to run payloads —
// those must go through Jobs so max-concurrency-1 holds.
func (w *Worker) Conn() ormcap.Conn { return w.conn }

// Bootstrap opens the worker's connection, applies on_connect_do
// statements, and installs the prefetch relation registry. It must
// succeed before Run is started.
func (w *Worker) Bootstrap(ctx context.Context) error {
	conn, err := w.engine.Connect(ctx, w.cfg.ConnectInfo.Driver, w.cfg.ConnectInfo.DSN, w.cfg.OnConnectDo)
	if err != nil {
		return fmt.Errorf("worker %d: bootstrap: %w", w.id, err)
	}

	conn.SetRelations(w.cfg.Relations)

	w.conn = conn
	w.generation++

	trace.Stage(w.logger, "dial", "worker", w.id, "generation", w.generation)

	return nil
}

// Run processes jobs until ctx is canceled or the job channel is closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-w.jobs:
			if !ok {
				return
			}

			w.safeExecute(ctx, job)
		}
	}
}

// Close releases the worker's connection.
func (w *Worker) Close() error {
	if w.conn == nil {
		return nil
	}

	return w.conn.Close()
}

// safeExecute wraps execute with panic recovery: a panic inside one
// operation must not take down the worker goroutine or leave its caller
// waiting forever. Because this worker holds a live connection across
// calls, recovery also discards and reopens the connection so a later
// job never inherits a transaction left half-open by the panic.
func (w *Worker) safeExecute(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("worker: panic executing operation",
				slog.Int("worker", w.id),
				slog.String("op", payload.Tag(job.Op)),
				slog.Any("panic", r),
			)

			if w.conn != nil {
				_ = w.conn.Close()
			}

			if err := w.Bootstrap(ctx); err != nil {
				w.logger.Error("worker: failed to reconnect after panic",
					slog.Int("worker", w.id),
					slog.String("error", err.Error()),
				)
			}

			job.Complete(nil, fmt.Errorf("worker %d: panic: %v", w.id, r))
		}
	}()

	w.execute(ctx, job)
}

func (w *Worker) execute(ctx context.Context, job Job) {
	trace.Stage(w.logger, "route", "worker", w.id, "op", payload.Tag(job.Op))

	if w.cfg.QueryTimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeoutDuration(w.cfg.QueryTimeoutSecs))

		defer cancel()
	}

	trace.Stage(w.logger, "exec", "worker", w.id, "op", payload.Tag(job.Op))

	result, err := w.conn.Exec(ctx, job.Op)

	trace.Stage(w.logger, "deflate", "worker", w.id, "op", payload.Tag(job.Op))

	if err != nil {
		w.logger.Error("worker: operation failed",
			slog.Int("worker", w.id),
			slog.String("op", payload.Tag(job.Op)),
			slog.String("error", err.Error()),
		)
	}

	job.Complete(result, err)

	trace.Stage(w.logger, "complete", "worker", w.id, "op", payload.Tag(job.Op))
}

func timeoutDuration(secs int) time.Duration {
	return time.Duration(secs) * time.Second
}
