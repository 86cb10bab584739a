// Package metrics exposes Prometheus collectors for job and row outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// JobsTotal counts finished jobs by terminal status (success, failure).
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadastre_jobs_total",
			Help: "Total number of enrichment jobs finished, by status",
		},
		[]string{"status"},
	)

	// JobsRejected counts submissions refused because the queue was full.
	JobsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cadastre_jobs_rejected_total",
			Help: "Total number of jobs rejected with a full queue",
		},
	)

	JobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cadastre_job_duration_seconds",
			Help:    "Duration of enrichment job processing",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 14), // 0.5s to ~68min
		},
		[]string{"status"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadastre_job_queue_depth",
			Help: "Number of jobs waiting for a worker",
		},
	)

	// RowsEnriched counts processed rows by outcome (found, not_found,
	// missing_coordinates, unknown_error).
	RowsEnriched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadastre_rows_enriched_total",
			Help: "Total number of input rows enriched, by outcome",
		},
		[]string{"outcome"},
	)
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
