package metrics

import (
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/rulebook/pkg/config"
	"mercator-hq/rulebook/pkg/dsl"
	"mercator-hq/rulebook/pkg/ruleset"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ dsl.CacheObserver = (*Collector)(nil)

// Helper function to create test config
func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:              true,
		Namespace:            "test",
		RuleDurationBuckets:  []float64{0.001, 0.01, 0.1},
		BatchDurationBuckets: []float64{0.01, 0.1, 1},
	}
}

func TestCollector_NewCollector(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()

	collector := NewCollector(cfg, registry)

	if collector.Registry() != registry {
		t.Error("Collector registry not set correctly")
	}
}

func TestCollector_Defaults(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true}
	collector := NewCollector(cfg, nil)

	if cfg.Namespace != "rulebook" {
		t.Errorf("Namespace = %q, want rulebook", cfg.Namespace)
	}
	if len(cfg.RuleDurationBuckets) == 0 || len(cfg.BatchDurationBuckets) == 0 {
		t.Error("expected default buckets")
	}

	collector.BatchFinished(ruleset.OutcomeCompleted, time.Millisecond)
	if got := testutil.ToFloat64(collector.batchMetrics.batchesTotal.WithLabelValues("completed")); got != 1 {
		t.Errorf("rulebook_batches_total = %v, want 1", got)
	}
}

func TestCollector_RuleEvaluated(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RuleEvaluated("approve", true, 2*time.Millisecond)
	collector.RuleEvaluated("approve", true, time.Millisecond)
	collector.RuleEvaluated("", false, time.Millisecond)

	if got := testutil.ToFloat64(collector.ruleMetrics.evaluatedTotal.WithLabelValues("approve")); got != 2 {
		t.Errorf("evaluated{action=approve} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.ruleMetrics.evaluatedTotal.WithLabelValues("none")); got != 1 {
		t.Errorf("evaluated{action=none} = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(collector.ruleMetrics.evaluationDuration); got != 1 {
		t.Errorf("duration histogram series = %d, want 1", got)
	}
}

func TestCollector_RuleExcluded(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RuleExcluded("syntax")
	collector.RuleExcluded("syntax")
	collector.RuleExcluded("evaluation")

	if got := testutil.ToFloat64(collector.ruleMetrics.excludedTotal.WithLabelValues("syntax")); got != 2 {
		t.Errorf("excluded{kind=syntax} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.ruleMetrics.excludedTotal.WithLabelValues("evaluation")); got != 1 {
		t.Errorf("excluded{kind=evaluation} = %v, want 1", got)
	}
}

func TestCollector_BatchFinished(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(testConfig(), registry)

	collector.BatchFinished(ruleset.OutcomeCompleted, 20*time.Millisecond)
	collector.BatchFinished(ruleset.OutcomeStopped, 5*time.Millisecond)

	expected := `
# HELP test_batches_total Total number of rule-set batches, by outcome
# TYPE test_batches_total counter
test_batches_total{outcome="completed"} 1
test_batches_total{outcome="stopped"} 1
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "test_batches_total"); err != nil {
		t.Errorf("unexpected batch metrics: %v", err)
	}
}

func TestCollector_Cache(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.CacheLookup(true)
	collector.CacheLookup(false)
	collector.CacheLookup(false)
	collector.CacheSize(7)

	if got := testutil.ToFloat64(collector.cacheMetrics.lookupsTotal.WithLabelValues("hit")); got != 1 {
		t.Errorf("lookups{result=hit} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.cacheMetrics.lookupsTotal.WithLabelValues("miss")); got != 2 {
		t.Errorf("lookups{result=miss} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.cacheMetrics.entries); got != 7 {
		t.Errorf("entries = %v, want 7", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	collector := NewCollector(cfg, prometheus.NewRegistry())

	collector.RuleEvaluated("approve", true, time.Millisecond)
	collector.RuleExcluded("syntax")
	collector.BatchFinished(ruleset.OutcomeAborted, time.Millisecond)
	collector.CacheLookup(true)

	if got := testutil.CollectAndCount(collector.ruleMetrics.evaluatedTotal); got != 0 {
		t.Errorf("evaluated series = %d, want 0", got)
	}
	if got := testutil.CollectAndCount(collector.batchMetrics.batchesTotal); got != 0 {
		t.Errorf("batch series = %d, want 0", got)
	}
}

func TestCollector_ActionCardinality(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.actionLimiter = NewCardinalityLimiter(2)

	for i := 0; i < 5; i++ {
		collector.RuleEvaluated(fmt.Sprintf("action%d", i), true, time.Millisecond)
	}

	if got := testutil.CollectAndCount(collector.ruleMetrics.evaluatedTotal); got != 3 {
		t.Errorf("evaluated series = %d, want 3 (two actions plus overflow)", got)
	}
	if got := testutil.ToFloat64(collector.ruleMetrics.evaluatedTotal.WithLabelValues("other")); got != 3 {
		t.Errorf("evaluated{action=other} = %v, want 3", got)
	}
}

func TestCardinalityLimiter(t *testing.T) {
	limiter := NewCardinalityLimiter(3)

	for _, v := range []string{"a", "b", "c"} {
		if !limiter.Allow(v) {
			t.Errorf("Allow(%q) = false, want true", v)
		}
	}
	if !limiter.Allow("a") {
		t.Error("existing label should be allowed")
	}
	if limiter.Allow("d") {
		t.Error("new label beyond limit should be rejected")
	}
	if limiter.Count() != 3 {
		t.Errorf("Count() = %d, want 3", limiter.Count())
	}
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.RuleExcluded("dispatch")

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(string(body), `test_rules_excluded_total{kind="dispatch"} 1`) {
		t.Errorf("metrics output missing exclusion counter:\n%s", body)
	}

	// A second handler reuses the scrape counters instead of panicking on
	// duplicate registration, and counts the first scrape.
	rec = httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `promhttp_metric_handler_requests_total{code="200"} 1`) {
		t.Errorf("metrics output missing scrape counter:\n%s", rec.Body.String())
	}
}

func TestCollector_ExecutorIntegration(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(testConfig(), registry)

	engine := dsl.NewEngine(nil, nil).WithCacheObserver(collector)
	executor := ruleset.NewExecutor(engine, nil, nil, nil).WithObserver(collector)

	set := &ruleset.Set{Name: "integration", Rules: []ruleset.Rule{
		mustRule(t, "IF x < 1 THEN low()", map[string]any{"x": 0}),
		{ID: "broken", Records: []ruleset.Record{{Key: "IF"}, {Key: "x"}}},
		mustRule(t, "IF x < 1 THEN low()", map[string]any{"x": 0}),
	}}

	if _, err := executor.Execute(t.Context(), set); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if got := testutil.ToFloat64(collector.ruleMetrics.evaluatedTotal.WithLabelValues("low")); got != 2 {
		t.Errorf("evaluated{action=low} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.ruleMetrics.excludedTotal.WithLabelValues("syntax")); got != 1 {
		t.Errorf("excluded{kind=syntax} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.cacheMetrics.lookupsTotal.WithLabelValues("hit")); got != 1 {
		t.Errorf("lookups{result=hit} = %v, want 1", got)
	}
}

func mustRule(t *testing.T, text string, vars map[string]any) ruleset.Rule {
	t.Helper()
	rule, err := ruleset.NewRule("", text, vars)
	if err != nil {
		t.Fatalf("NewRule(%q) error = %v", text, err)
	}
	return rule
}
