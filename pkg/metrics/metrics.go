package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	subsystem = "meeting_intelligence"

	uploadsTotal              = "uploads_total"
	processingTotal           = "processing_total"
	processingDurationSeconds = "processing_duration_seconds"

	kindLabel     = "kind"
	strategyLabel = "strategy"
	outcomeLabel  = "outcome"
)

var uploadsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      uploadsTotal,
		Help:      "number of upload requests partitioned by record kind, strategy and outcome",
	},
	[]string{kindLabel, strategyLabel, outcomeLabel},
)

var processingTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      processingTotal,
		Help:      "number of processing attempts partitioned by record kind and outcome",
	},
	[]string{kindLabel, outcomeLabel},
)

var processingDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: subsystem,
		Name:      processingDurationSeconds,
		Help:      "time spent running the processor for a record",
		Buckets:   []float64{1, 5, 15, 30, 60, 180, 600},
	},
	[]string{kindLabel, outcomeLabel},
)

func IncreaseUploadsTotalMetric(kind, strategy, outcome string) {
	uploadsTotalMetric.With(prometheus.Labels{
		kindLabel:     kind,
		strategyLabel: strategy,
		outcomeLabel:  outcome,
	}).Inc()
}

func ObserveProcessing(kind, outcome string, elapsed time.Duration) {
	labels := prometheus.Labels{
		kindLabel:    kind,
		outcomeLabel: outcome,
	}
	processingTotalMetric.With(labels).Inc()
	processingDurationMetric.With(labels).Observe(elapsed.Seconds())
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(uploadsTotalMetric)
	prometheus.MustRegister(processingTotalMetric)
	prometheus.MustRegister(processingDurationMetric)
}
