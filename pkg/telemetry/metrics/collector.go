package metrics

import (
	"sync"
	"time"

	"mercator-hq/rulebook/pkg/config"
	"mercator-hq/rulebook/pkg/ruleset"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMaxActions caps distinct action label values.
const DefaultMaxActions = 1000

// overflowAction labels actions beyond the cardinality limit.
const overflowAction = "other"

// Collector is the main orchestrator for all Prometheus metrics in rulebook.
// It manages metric registration and implements the observer interfaces of
// the rule engine and the executor.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	ruleMetrics  *RuleMetrics
	batchMetrics *BatchMetrics
	cacheMetrics *CacheMetrics

	// Cardinality tracking for the action label
	actionLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is created.
// Missing namespace and buckets are filled with the configuration defaults.
//
// Example:
//
//	cfg := &config.MetricsConfig{Enabled: true, Namespace: "rulebook"}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.RuleDurationBuckets) == 0 {
		cfg.RuleDurationBuckets = append([]float64(nil), config.DefaultRuleDurationBuckets...)
	}
	if len(cfg.BatchDurationBuckets) == 0 {
		cfg.BatchDurationBuckets = append([]float64(nil), config.DefaultBatchDurationBuckets...)
	}

	return &Collector{
		config:        cfg,
		registry:      registry,
		ruleMetrics:   NewRuleMetrics(cfg, registry),
		batchMetrics:  NewBatchMetrics(cfg, registry),
		cacheMetrics:  NewCacheMetrics(cfg, registry),
		actionLimiter: NewCardinalityLimiter(DefaultMaxActions),
	}
}

// RuleEvaluated records a rule that evaluated without error.
func (c *Collector) RuleEvaluated(action string, selected bool, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	label := noAction
	if selected {
		label = action
		if !c.actionLimiter.Allow(action) {
			label = overflowAction
		}
	}

	c.ruleMetrics.evaluatedTotal.WithLabelValues(label).Inc()
	c.ruleMetrics.evaluationDuration.Observe(duration.Seconds())
}

// RuleExcluded records a rule excluded from its batch.
func (c *Collector) RuleExcluded(kind string) {
	if !c.config.Enabled {
		return
	}
	c.ruleMetrics.excludedTotal.WithLabelValues(kind).Inc()
}

// BatchFinished records a finished batch.
func (c *Collector) BatchFinished(outcome ruleset.Outcome, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.batchMetrics.batchesTotal.WithLabelValues(string(outcome)).Inc()
	c.batchMetrics.batchDuration.Observe(duration.Seconds())
}

// CacheLookup records a parse cache hit or miss.
func (c *Collector) CacheLookup(hit bool) {
	if !c.config.Enabled {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheMetrics.lookupsTotal.WithLabelValues(result).Inc()
}

// CacheSize records the number of cached trees.
func (c *Collector) CacheSize(entries int) {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.entries.Set(float64(entries))
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label value is allowed. Returns true if the value
// already exists or if the limit has not been reached yet.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}

var _ ruleset.Observer = (*Collector)(nil)
