package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/dbasync/internal/config"
	"github.com/tonimelisma/dbasync/internal/ormcap"
	"github.com/tonimelisma/dbasync/internal/payload"
)

type fakeConn struct {
	connectCount int
	execFn       func(payload.Op) (any, error)
	closed       bool
}

func (c *fakeConn) Columns(context.Context, string) ([]ormcap.ColumnInfo, error) { return nil, nil }
func (c *fakeConn) Sources(context.Context) ([]string, error)                    { return nil, nil }
func (c *fakeConn) Exec(_ context.Context, op payload.Op) (any, error)           { return c.execFn(op) }
func (c *fakeConn) Deploy(context.Context, payload.Deploy) error                 { return nil }
func (c *fakeConn) SetRelations([]config.Relation)                              {}
func (c *fakeConn) Close() error                                                 { c.closed = true; return nil }

type fakeEngine struct {
	conn *fakeConn
}

func (e *fakeEngine) Connect(context.Context, string, string, []string) (ormcap.Conn, error) {
	e.conn.connectCount++

	return e.conn, nil
}

func newTestWorker(t *testing.T, execFn func(payload.Op) (any, error)) (*Worker, *fakeEngine) {
	t.Helper()

	engine := &fakeEngine{conn: &fakeConn{execFn: execFn}}
	cfg := config.DefaultConfig()
	cfg.QueryTimeoutSecs = 5

	w := New(1, engine, cfg, testLogger(), 4)
	require.NoError(t, w.Bootstrap(context.Background()))

	return w, engine
}

func TestWorkerExecutesJobAndCompletesFuture(t *testing.T) {
	w, _ := newTestWorker(t, func(payload.Op) (any, error) { return "pong", nil })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx)

	done := make(chan struct{})

	var result any

	var resultErr error

	w.Jobs() <- Job{
		Op: payload.Ping{},
		Complete: func(v any, err error) {
			result, resultErr = v, err
			close(done)
		},
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for job completion")
	}

	require.NoError(t, resultErr)
	require.Equal(t, "pong", result)
}

func TestWorkerRecoversFromPanicAndReconnects(t *testing.T) {
	w, engine := newTestWorker(t, func(payload.Op) (any, error) {
		panic("boom")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx)

	done := make(chan struct{})

	var resultErr error

	w.Jobs() <- Job{
		Op: payload.Ping{},
		Complete: func(_ any, err error) {
			resultErr = err
			close(done)
		},
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for job completion")
	}

	require.Error(t, resultErr)
	require.Equal(t, 2, engine.conn.connectCount)
	require.Equal(t, 2, w.generation)
}

func TestWorkerReportsUnderlyingError(t *testing.T) {
	boom := errors.New("boom")
	w, _ := newTestWorker(t, func(payload.Op) (any, error) { return nil, boom })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx)

	done := make(chan struct{})

	var resultErr error

	w.Jobs() <- Job{
		Op: payload.Ping{},
		Complete: func(_ any, err error) {
			resultErr = err
			close(done)
		},
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for job completion")
	}

	require.ErrorIs(t, resultErr, boom)
}
