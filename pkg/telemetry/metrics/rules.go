package metrics

import (
	"mercator-hq/rulebook/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// noAction labels rules that evaluated without selecting an action.
const noAction = "none"

// RuleMetrics tracks per-rule evaluation metrics.
type RuleMetrics struct {
	// Rules that evaluated, by selected action
	evaluatedTotal *prometheus.CounterVec

	// Rules excluded from a batch, by error kind
	excludedTotal *prometheus.CounterVec

	// Single-rule evaluation latency
	evaluationDuration prometheus.Histogram
}

// NewRuleMetrics creates and registers rule metrics with the provided registry.
func NewRuleMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RuleMetrics {
	rm := &RuleMetrics{
		evaluatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rules_evaluated_total",
				Help:      "Total number of rules evaluated, by selected action",
			},
			[]string{"action"},
		),

		excludedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rules_excluded_total",
				Help:      "Total number of rules excluded from a batch, by error kind",
			},
			[]string{"kind"},
		),

		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_evaluation_duration_seconds",
				Help:      "Duration of single-rule evaluation and dispatch in seconds",
				Buckets:   cfg.RuleDurationBuckets,
			},
		),
	}

	registry.MustRegister(
		rm.evaluatedTotal,
		rm.excludedTotal,
		rm.evaluationDuration,
	)

	return rm
}
