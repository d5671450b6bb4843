// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the market core.
type Metrics struct {
	// Scheduler metrics
	JobsEnqueued  *prometheus.CounterVec
	JobsCompleted *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobsRetried   *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
	QueueDepth    *prometheus.GaugeVec

	// Pricing metrics
	PriceUpdates       prometheus.Counter
	PriceComputeErrors prometheus.Counter

	// Aggregation metrics
	CandlesUpserted prometheus.Counter
	CandlesDeleted  prometheus.Counter

	// Trending metrics
	TrendingCycles prometheus.Counter

	// Ingest metrics
	SnapshotsIngested prometheus.Counter
	IngestErrors      prometheus.Counter
}

// NewMetrics creates a Metrics instance with all metrics registered
// on the default registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "viraltrade"
	}

	return &Metrics{
		JobsEnqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "jobs_enqueued_total",
			Help:      "Total number of jobs enqueued by type",
		}, []string{"type"}),
		JobsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "jobs_completed_total",
			Help:      "Total number of jobs completed successfully by type",
		}, []string{"type"}),
		JobsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "jobs_failed_total",
			Help:      "Total number of jobs that exhausted their retries by type",
		}, []string{"type"}),
		JobsRetried: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "jobs_retried_total",
			Help:      "Total number of job retry attempts by type",
		}, []string{"type"}),
		JobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Job execution duration by type",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "queue_depth",
			Help:      "Current number of queued jobs by priority",
		}, []string{"priority"}),

		PriceUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "price_updates_total",
			Help:      "Total number of successful price computations",
		}),
		PriceComputeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "price_compute_errors_total",
			Help:      "Total number of failed price computations",
		}),

		CandlesUpserted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "candles_upserted_total",
			Help:      "Total number of candles written by the aggregator",
		}),
		CandlesDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "candles_deleted_total",
			Help:      "Total number of candles removed by retention cleanup",
		}),

		TrendingCycles: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trending",
			Name:      "cycles_total",
			Help:      "Total number of completed trending ranking cycles",
		}),

		SnapshotsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "snapshots_total",
			Help:      "Total number of virality snapshots ingested",
		}),
		IngestErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "errors_total",
			Help:      "Total number of ingest errors",
		}),
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
