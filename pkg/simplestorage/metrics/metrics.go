// Package metrics exposes Prometheus collectors for the storage service,
// the cleanup scheduler and the metadata cache.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "simple_storage"

// Metrics holds the collectors registered by New. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	cleanupRunsTotal    prometheus.Counter
	cleanupPurgedTotal  prometheus.Counter
	cleanupFailedTotal  prometheus.Counter
	cleanupSkippedTotal prometheus.Counter
	cleanupDuration     prometheus.Histogram

	cacheRequestsTotal *prometheus.CounterVec
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of file lifecycle operations",
			},
			[]string{"operation", "result"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of file lifecycle operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		cleanupRunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_runs_total",
			Help:      "Total number of expiry cleanup runs",
		}),
		cleanupPurgedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_purged_total",
			Help:      "Total number of expired temporaries purged",
		}),
		cleanupFailedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_failed_total",
			Help:      "Total number of expired temporaries that failed to purge",
		}),
		cleanupSkippedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_skipped_total",
			Help:      "Total number of cleanup ticks skipped because a run was in progress",
		}),
		cleanupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cleanup_duration_seconds",
			Help:      "Duration of expiry cleanup runs in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		cacheRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Metadata cache lookups by record kind and result",
			},
			[]string{"kind", "result"},
		),
	}
}

// ObserveOperation records one coordinator operation.
func (m *Metrics) ObserveOperation(operation, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, result).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveCleanup records one completed cleanup run.
func (m *Metrics) ObserveCleanup(purged, failed int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.cleanupRunsTotal.Inc()
	m.cleanupPurgedTotal.Add(float64(purged))
	m.cleanupFailedTotal.Add(float64(failed))
	m.cleanupDuration.Observe(elapsed.Seconds())
}

// ObserveCleanupSkipped records a tick that found a run in progress.
func (m *Metrics) ObserveCleanupSkipped() {
	if m == nil {
		return
	}
	m.cleanupSkippedTotal.Inc()
}

// ObserveCache records a metadata cache lookup.
func (m *Metrics) ObserveCache(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheRequestsTotal.WithLabelValues(kind, result).Inc()
}
