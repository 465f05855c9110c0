package metrics

import (
	"mercator-hq/rulebook/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics tracks parse cache performance.
type CacheMetrics struct {
	// Cache lookups by result (hit, miss)
	lookupsTotal *prometheus.CounterVec

	// Current number of cached trees
	entries prometheus.Gauge
}

// NewCacheMetrics creates and registers cache metrics with the provided registry.
func NewCacheMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CacheMetrics {
	cm := &CacheMetrics{
		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "parse_cache_lookups_total",
				Help:      "Total number of parse cache lookups, by result",
			},
			[]string{"result"},
		),

		entries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "parse_cache_entries",
				Help:      "Current number of parsed rules in the cache",
			},
		),
	}

	registry.MustRegister(cm.lookupsTotal, cm.entries)

	return cm
}
