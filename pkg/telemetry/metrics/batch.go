package metrics

import (
	"mercator-hq/rulebook/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// BatchMetrics tracks rule-set execution metrics.
type BatchMetrics struct {
	// Batches by outcome
	batchesTotal *prometheus.CounterVec

	// Whole-batch latency
	batchDuration prometheus.Histogram
}

// NewBatchMetrics creates and registers batch metrics with the provided registry.
func NewBatchMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *BatchMetrics {
	bm := &BatchMetrics{
		batchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "batches_total",
				Help:      "Total number of rule-set batches, by outcome",
			},
			[]string{"outcome"},
		),

		batchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "batch_duration_seconds",
				Help:      "Duration of rule-set batches in seconds",
				Buckets:   cfg.BatchDurationBuckets,
			},
		),
	}

	registry.MustRegister(bm.batchesTotal, bm.batchDuration)

	return bm
}
