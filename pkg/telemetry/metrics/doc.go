// Package metrics provides Prometheus metrics collection for rulebook.
//
// # Overview
//
// The Collector records rule evaluations, rule exclusions, batch outcomes
// and parse cache activity. It implements ruleset.Observer and
// dsl.CacheObserver, so wiring is a matter of passing it in:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, registry)
//	engine := dsl.NewEngine(engineCfg, logger).WithCacheObserver(collector)
//	executor := ruleset.NewExecutor(engine, table, execCfg, logger).WithObserver(collector)
//	router.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// # Metrics
//
//   - rulebook_rules_evaluated_total{action}: rules that evaluated successfully
//   - rulebook_rule_evaluation_duration_seconds: single-rule latency
//   - rulebook_rules_excluded_total{kind}: rules excluded by error kind
//   - rulebook_batches_total{outcome}: batches by completed, stopped or aborted
//   - rulebook_batch_duration_seconds: whole-batch latency
//   - rulebook_parse_cache_lookups_total{result}: parse cache hits and misses
//   - rulebook_parse_cache_entries: trees held by the parse cache
//
// Action names come from rule text, so the action label is capped by a
// CardinalityLimiter; overflow is recorded under action="other".
package metrics
