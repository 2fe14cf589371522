package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts pipeline outcomes for the /metrics endpoint
type Metrics struct {
	JobsProcessed      prometheus.Counter
	JobsFailed         prometheus.Counter
	DuplicatesDetected prometheus.Counter
	OracleErrors       *prometheus.CounterVec
	StageDuration      prometheus.Histogram
}

// NewMetrics registers pipeline metrics on the given registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JobsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "homeledger",
			Subsystem: "pipeline",
			Name:      "jobs_processed_total",
			Help:      "Ingestion jobs that reached a terminal COMPLETED state",
		}),
		JobsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "homeledger",
			Subsystem: "pipeline",
			Name:      "jobs_failed_total",
			Help:      "Ingestion jobs that reached a terminal FAILED state",
		}),
		DuplicatesDetected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "homeledger",
			Subsystem: "pipeline",
			Name:      "duplicates_detected_total",
			Help:      "Receipts flagged as duplicates of an existing receipt",
		}),
		OracleErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "homeledger",
			Subsystem: "pipeline",
			Name:      "oracle_errors_total",
			Help:      "Extraction oracle failures by classified kind",
		}, []string{"kind"}),
		StageDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "homeledger",
			Subsystem: "pipeline",
			Name:      "job_duration_seconds",
			Help:      "Wall time from claiming a job to its terminal state",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
}
