// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_records_classified_total",
			Help: "Total number of raw records classified",
		},
		[]string{"source"},
	)

	RecordsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_records_failed_total",
			Help: "Total number of records that failed classification",
		},
		[]string{"source", "error_code"},
	)

	ClassificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_classification_duration_seconds",
			Help: "Duration of per-record classification in seconds",
		},
		[]string{"source"},
	)

	BatchInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_batch_in_flight",
			Help: "Number of records currently being classified",
		},
		[]string{"source"},
	)
)
