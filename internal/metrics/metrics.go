package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels used in addition to the provider outcome statuses.
const (
	LabelDiscarded = "discarded"
)

type Metrics struct {
	RecordsProcessed *prometheus.CounterVec
	APIErrors        prometheus.Counter
	RequestSeconds   *prometheus.HistogramVec
	ActiveWorkers    prometheus.Gauge
	QuotaRemaining   prometheus.Gauge
	BatchesCommitted prometheus.Counter
	Runs             *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RecordsProcessed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "storemap_records_processed_total",
			Help: "Total number of store records handled, by lookup outcome.",
		}, []string{"outcome"}),
		APIErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "storemap_provider_api_errors_total",
			Help: "Total number of errors received from the geocoding provider API.",
		}),
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storemap_provider_request_duration_seconds",
			Help:    "Duration of requests to the geocoding provider API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		ActiveWorkers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "storemap_active_workers",
			Help: "Current number of provider calls in flight.",
		}),
		QuotaRemaining: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "storemap_quota_remaining",
			Help: "Successful resolutions still allowed in the current run.",
		}),
		BatchesCommitted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "storemap_batches_committed_total",
			Help: "Total number of batches written to the store.",
		}),
		Runs: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "storemap_runs_total",
			Help: "Total number of enrichment runs, by termination reason.",
		}, []string{"reason"}),
	}
}
