// Package logging provides structured logging for rulebook.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - Structured logging with JSON, text and console formats
//   - Context-aware logging with run, rule and request identifiers
//   - Configurable log levels (debug, info, warn, error)
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logger.Info("rule set loaded", "path", path, "rules", n)
//
//	// Components take a *slog.Logger. Records logged with a context pick up
//	// run_id, rule_id and request_id automatically.
//	executor := ruleset.NewExecutor(engine, table, nil, logger.Slog())
//
//	ctx = logging.WithRunID(ctx, runID)
//	logger.InfoContext(ctx, "batch started")
//
// # Performance
//
// Level checks happen before any attribute is built, so filtered debug
// records cost almost nothing.
package logging
