// Package dispatch implements the Dispatcher: the component that owns a
// fixed pool of worker goroutines, routes payloads to them round-robin,
// and returns a future per call. Each worker owns exactly one connection,
// so at most one payload is ever in flight per connection at a time.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tonimelisma/dbasync/internal/config"
	"github.com/tonimelisma/dbasync/internal/future"
	"github.com/tonimelisma/dbasync/internal/ormcap"
	"github.com/tonimelisma/dbasync/internal/payload"
	"github.com/tonimelisma/dbasync/internal/worker"
)

// healthCheckTimeout bounds each individual worker's health probe so one
// stuck connection cannot hang the whole fleet's health sweep.
const healthCheckTimeout = 5 * time.Second

// Stats reports Dispatcher-wide counters.
type Stats struct {
	Dispatched  int64
	Succeeded   int64
	Failed      int64
	CacheHits   int64
	CacheMisses int64
}

// workerSlot pairs a worker with the health state the dispatcher tracks
// for it. healthy starts true and is mutated only by HealthCheck.
type workerSlot struct {
	w       *worker.Worker
	healthy atomic.Bool
}

// Dispatcher owns a fixed pool of workers and routes every Dispatch call
// to exactly one of them.
type Dispatcher struct {
	cfg     *config.Config
	logger  *slog.Logger
	slots   []*workerSlot
	metrics *metricsObserver
	cache   *resultCache

	next atomic.Uint64

	dispatched  atomic.Int64
	succeeded   atomic.Int64
	failed      atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64

	// sources/columns are captured once from the first worker's
	// connection at bootstrap, before any worker starts its run loop.
	// Sources/Columns calls after that are plain map reads with no I/O.
	sources []string
	columns map[string][]ormcap.ColumnInfo

	stopHealthTimer func()
}

// New builds and bootstraps a Dispatcher: it opens workerCount
// connections via engine up front, failing fast if any one of them
// cannot connect.
func New(ctx context.Context, cfg *config.Config, engine ormcap.Engine) (*Dispatcher, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	count := cfg.WorkerCount
	if count < 1 {
		count = config.DefaultWorkerCount
	}

	d := &Dispatcher{
		cfg:     cfg,
		logger:  logger,
		slots:   make([]*workerSlot, count),
		metrics: newMetricsObserver(cfg.MetricsEnabled),
		cache:   newResultCache(cfg.CacheTTLSecs),
	}

	for i := 0; i < count; i++ {
		w := worker.New(i, engine, cfg, logger, count)
		if err := w.Bootstrap(ctx); err != nil {
			d.closeBootstrapped(i)

			return nil, fmt.Errorf("dispatch: bootstrapping worker %d: %w", i, err)
		}

		slot := &workerSlot{w: w}
		slot.healthy.Store(true)
		d.slots[i] = slot
	}

	if err := d.captureMetadata(ctx); err != nil {
		d.closeBootstrapped(count)

		return nil, fmt.Errorf("dispatch: capturing schema metadata: %w", err)
	}

	for _, slot := range d.slots {
		go slot.w.Run(ctx)
	}

	d.metrics.setWorkersActive(len(d.slots))

	if cfg.HealthCheckSecs > 0 {
		d.startHealthTimer(cfg.HealthCheckSecs)
	}

	logger.Info("dispatcher started", slog.Int("workers", count))

	return d, nil
}

// startHealthTimer installs the periodic sweep described for dispatcher
// construction: every intervalSecs it runs a health check and discards
// the result, since a tick's only externally visible effect is the
// healthy-flag/gauge update HealthCheck already performs as a side
// effect.
func (d *Dispatcher) startHealthTimer(intervalSecs int) {
	ticker := time.NewTicker(time.Duration(intervalSecs) * time.Second)
	stop := make(chan struct{})

	go func() {
		for {
			select {
			case <-stop:
				ticker.Stop()

				return
			case <-ticker.C:
				_ = d.HealthCheck(context.Background())
			}
		}
	}()

	d.stopHealthTimer = func() {
		close(stop)
	}
}

// captureMetadata runs the one-time, pre-Run() introspection round trip
// against the first worker's connection.
func (d *Dispatcher) captureMetadata(ctx context.Context) error {
	conn := d.slots[0].w.Conn()

	sources, err := conn.Sources(ctx)
	if err != nil {
		return fmt.Errorf("listing sources: %w", err)
	}

	d.sources = sources
	d.columns = make(map[string][]ormcap.ColumnInfo, len(sources))

	for _, source := range sources {
		cols, err := conn.Columns(ctx, source)
		if err != nil {
			return fmt.Errorf("describing %s: %w", source, err)
		}

		d.columns[source] = cols
	}

	return nil
}

// Sources returns the cached list of known tables.
func (d *Dispatcher) Sources() []string { return d.sources }

// Columns returns the cached column metadata for source.
func (d *Dispatcher) Columns(source string) ([]ormcap.ColumnInfo, bool) {
	cols, ok := d.columns[source]

	return cols, ok
}

func (d *Dispatcher) closeBootstrapped(upTo int) {
	for i := 0; i < upTo; i++ {
		if d.slots[i] != nil {
			_ = d.slots[i].w.Close()
		}
	}
}

// Dispatch routes op to a worker chosen round-robin and returns a Future
// for its result immediately, without waiting for the worker to run it.
// A cacheable read (search/find with attrs.cache set) is served from the
// in-memory result cache when present, without ever reaching a worker.
func (d *Dispatcher) Dispatch(op payload.Op) *future.Future[any] {
	f, complete := future.New[any]()

	if key, cacheable := cacheKeyFor(op); cacheable {
		if v, ok := d.cache.get(key); ok {
			d.cacheHits.Add(1)
			d.metrics.cacheEvent(true)
			complete(v, nil)

			return f
		}

		d.cacheMisses.Add(1)
		d.metrics.cacheEvent(false)
	}

	idx := int(d.next.Add(1)-1) % len(d.slots)
	slot := d.slots[idx]

	d.dispatched.Add(1)
	start := time.Now()

	slot.w.Jobs() <- worker.Job{
		Op: op,
		Complete: func(v any, err error) {
			d.metrics.observe(payload.Tag(op), err, time.Since(start))

			if err != nil {
				d.failed.Add(1)
			} else {
				d.succeeded.Add(1)

				if key, cacheable := cacheKeyFor(op); cacheable {
					d.cache.set(key, v)
				}
			}

			complete(v, err)
		},
	}

	return f
}

// cacheKeyFor reports whether op is eligible for result caching (a
// search or find call with attrs.cache set) and, if so, a key that
// collapses to the same string for equivalent cond/attrs values.
func cacheKeyFor(op payload.Op) (string, bool) {
	switch v := op.(type) {
	case payload.Search:
		if !v.Attrs.Cache {
			return "", false
		}

		return fmt.Sprintf("search:%s:%#v:%#v", v.Source, v.Cond, v.Attrs), true
	case payload.Find:
		if !v.Attrs.Cache {
			return "", false
		}

		return fmt.Sprintf("find:%s:%#v:%#v", v.Source, v.Query, v.Attrs), true
	default:
		return "", false
	}
}

// Stats returns a snapshot of the dispatcher's counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Dispatched:  d.dispatched.Load(),
		Succeeded:   d.succeeded.Load(),
		Failed:      d.failed.Load(),
		CacheHits:   d.cacheHits.Load(),
		CacheMisses: d.cacheMisses.Load(),
	}
}

// WorkersActive returns the number of workers whose last health probe
// succeeded (all of them, until the first HealthCheck sweep runs).
func (d *Dispatcher) WorkersActive() int {
	n := 0

	for _, slot := range d.slots {
		if slot.healthy.Load() {
			n++
		}
	}

	return n
}

// HealthCheck pings every worker concurrently, bounding each probe to
// healthCheckTimeout, and sets each slot's healthy flag from its own
// outcome independently — one worker's failure never cancels or taints
// another's probe. After every slot has reported, it publishes the
// healthy-worker gauge. It returns the joined error of any failed
// probes for callers that want a pass/fail result; the periodic timer
// installed by New discards this return value, matching the
// "never fails the caller" contract for the background sweep.
func (d *Dispatcher) HealthCheck(ctx context.Context) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		probeErr []error
	)

	for i, slot := range d.slots {
		i, slot := i, slot

		wg.Add(1)

		go func() {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			defer cancel()

			fut, complete := future.New[any]()
			slot.w.Jobs() <- worker.Job{Op: payload.HealthCheck{}, Complete: complete}

			_, err := fut.Await(probeCtx)
			slot.healthy.Store(err == nil)

			if err != nil {
				mu.Lock()
				probeErr = append(probeErr, fmt.Errorf("worker %d: %w", i, err))
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	d.metrics.setWorkersActive(d.WorkersActive())

	return errors.Join(probeErr...)
}

// Close stops every worker's connection and, if installed, the periodic
// health-check timer. Callers must ensure no further Dispatch calls are
// made once Close has been invoked.
func (d *Dispatcher) Close() error {
	if d.stopHealthTimer != nil {
		d.stopHealthTimer()
	}

	var firstErr error

	for _, slot := range d.slots {
		if err := slot.w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
