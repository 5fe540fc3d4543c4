package dispatch

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricsObserver records per-operation dispatch outcomes to Prometheus
// when enabled, grounded in the pack's standard promauto registration
// pattern (see DESIGN.md). When disabled, observe is a no-op so the hot
// dispatch path never pays for metrics it doesn't emit.
type metricsObserver struct {
	enabled bool
}

var (
	registerOnce     sync.Once
	queriesCounter   *prometheus.CounterVec
	errorsCounter    *prometheus.CounterVec
	cacheHitsCounter prometheus.Counter
	cacheMissCounter prometheus.Counter
	queryDuration    *prometheus.HistogramVec
	workersActive    prometheus.Gauge
)

// Metrics are registered at most once per process regardless of how many
// Dispatchers are constructed, since Prometheus panics on duplicate
// registration against the default registry.
func registerMetrics() {
	registerOnce.Do(func() {
		queriesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "db_async",
			Name:      "queries_total",
			Help:      "Total number of operations dispatched to workers, by operation tag.",
		}, []string{"op"})

		errorsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "db_async",
			Name:      "errors_total",
			Help:      "Total number of operations that completed with an error, by operation tag.",
		}, []string{"op"})

		cacheHitsCounter = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "db_async",
			Name:      "cache_hits_total",
			Help:      "Total number of Dispatch calls served from the result cache.",
		})

		cacheMissCounter = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "db_async",
			Name:      "cache_misses_total",
			Help:      "Total number of cacheable Dispatch calls not found in the result cache.",
		})

		queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "db_async",
			Name:      "query_duration_seconds",
			Help:      "Time from dispatch to completion for one operation, by operation tag.",
		}, []string{"op"})

		workersActive = promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "db_async",
			Name:      "workers_active",
			Help:      "Number of workers whose most recent health probe succeeded.",
		})
	})
}

func newMetricsObserver(enabled bool) *metricsObserver {
	if !enabled {
		return &metricsObserver{enabled: false}
	}

	registerMetrics()

	return &metricsObserver{enabled: true}
}

func (m *metricsObserver) observe(op string, err error, duration time.Duration) {
	if m == nil || !m.enabled {
		return
	}

	queriesCounter.WithLabelValues(op).Inc()
	queryDuration.WithLabelValues(op).Observe(duration.Seconds())

	if err != nil {
		errorsCounter.WithLabelValues(op).Inc()
	}
}

func (m *metricsObserver) cacheEvent(hit bool) {
	if m == nil || !m.enabled {
		return
	}

	if hit {
		cacheHitsCounter.Inc()
	} else {
		cacheMissCounter.Inc()
	}
}

func (m *metricsObserver) setWorkersActive(n int) {
	if m == nil || !m.enabled {
		return
	}

	workersActive.Set(float64(n))
}
