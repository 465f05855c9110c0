// Package runstore keeps the history of rule set executions.
//
// A Store persists ruleset.Report values keyed by run ID and doubles as the
// executor's ReportSink:
//
//	store, err := runstore.Open(ctx, &cfg.Store, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	executor := ruleset.NewExecutor(engine, dispatcher, nil, logger).WithSink(store)
//
// # Backends
//
//   - memory: bounded map, for tests and one-shot CLI runs
//   - sqlite: modernc.org/sqlite, schema created in place and versioned in
//     a schema_version table
//   - postgres: lib/pq, schema managed by golang-migrate from migrations
//     embedded in the binary
//
// Rules themselves are never stored; only reports are.
//
// # Retention
//
// A Pruner deletes reports older than the retention period and trims the
// history to a maximum size. A Scheduler runs the pruner, and periodic rule
// set executions, on cron schedules.
package runstore
