package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"mercator-hq/rulebook/pkg/cli"
	"mercator-hq/rulebook/pkg/config"
	"mercator-hq/rulebook/pkg/dsl"
	"mercator-hq/rulebook/pkg/dsl/eval"
	"mercator-hq/rulebook/pkg/ruleset"
	"mercator-hq/rulebook/pkg/runstore"
	"mercator-hq/rulebook/pkg/telemetry/logging"
	"mercator-hq/rulebook/pkg/telemetry/metrics"
	"mercator-hq/rulebook/pkg/telemetry/tracing"
)

// app holds what every command builds from the loaded configuration.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

// setup loads the configuration and builds the logger. Logs go to the
// command's error stream so that stdout carries only results.
func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("config", err.Error())
	}

	switch {
	case verbose:
		cfg.Telemetry.Logging.Level = "debug"
	case logLevel != "":
		cfg.Telemetry.Logging.Level = logLevel
	}

	l, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
		Writer:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}

	logger := l.Slog()
	slog.SetDefault(logger)

	return &app{cfg: cfg, logger: logger}, nil
}

// newMetrics returns a collector on a private registry, or nil when
// metrics are disabled.
func (a *app) newMetrics() *metrics.Collector {
	if !a.cfg.Telemetry.Metrics.Enabled {
		return nil
	}
	return metrics.NewCollector(&a.cfg.Telemetry.Metrics, prometheus.NewRegistry())
}

func (a *app) newEngine(m *metrics.Collector) *dsl.Engine {
	engine := dsl.NewEngine(dsl.EngineConfigFrom(&a.cfg.Engine), a.logger)
	if m != nil {
		engine.WithCacheObserver(m)
	}
	return engine
}

// newExecutor builds an executor whose reports are saved to store.
func (a *app) newExecutor(engine *dsl.Engine, store runstore.Store, m *metrics.Collector) *ruleset.Executor {
	executor := ruleset.NewExecutor(engine, a.newDispatcher(), ruleset.ExecutorConfigFrom(&a.cfg.Engine), a.logger)
	if store != nil {
		executor.WithSink(store)
	}
	if m != nil {
		executor.WithObserver(m)
	}
	return executor
}

// newDispatcher logs selected actions. When engine.actions is set only
// those names are accepted, and strict dispatch excludes rules selecting
// any other.
func (a *app) newDispatcher() ruleset.Dispatcher {
	logAction := func(name string) ruleset.ActionFunc {
		return func(ctx context.Context, rule ruleset.Rule) error {
			a.logger.InfoContext(ctx, "action dispatched",
				"action", name,
				"rule_id", rule.ID,
				"rule", rule.Interpolated(),
			)
			return nil
		}
	}

	if len(a.cfg.Engine.Actions) == 0 && !a.cfg.Engine.StrictDispatch {
		return ruleset.DispatcherFunc(func(ctx context.Context, action string, rule ruleset.Rule) error {
			return logAction(action)(ctx, rule)
		})
	}

	table := ruleset.NewDispatchTable(a.cfg.Engine.StrictDispatch)
	for _, name := range a.cfg.Engine.Actions {
		table.Register(name, logAction(name))
	}
	return table
}

func (a *app) newLoader() *ruleset.Loader {
	lc := ruleset.DefaultLoaderConfig()
	lc.MaxFileSize = a.cfg.Rules.MaxFileSize
	return ruleset.NewLoader(lc)
}

// openStore opens the configured run store, with backend overriding
// store.backend when set.
func (a *app) openStore(ctx context.Context, backend string) (runstore.Store, error) {
	sc := a.cfg.Store
	if backend != "" {
		sc.Backend = backend
	}
	store, err := runstore.Open(ctx, &sc, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", sc.Backend, err)
	}
	return store, nil
}

// parseVars parses key=value pairs into an evaluation context. Values are
// numbers or booleans.
func parseVars(pairs []string) (eval.Context, error) {
	vars := make(eval.Context, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, cli.NewConfigError("set", fmt.Sprintf("%q is not key=value", pair))
		}

		var v any = strings.TrimSpace(raw)
		if b, err := strconv.ParseBool(raw); err == nil {
			v = b
		}
		f, err := eval.ToFloat64(v)
		if err != nil {
			return nil, cli.NewConfigError("set", fmt.Sprintf("%s: %v", key, err))
		}
		vars[key] = f
	}
	return vars, nil
}

// newTracer builds the configured tracer. Callers shut it down.
func (a *app) newTracer() (*tracing.Tracer, error) {
	t, err := tracing.New(&a.cfg.Telemetry.Tracing, tracing.WithServiceVersion(Version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	return t, nil
}

// newPruner returns the retention pruner for store, or nil when neither a
// retention period nor a record cap is configured.
func (a *app) newPruner(store runstore.Store) *runstore.Pruner {
	sc := a.cfg.Store
	if sc.RetentionDays <= 0 && sc.MaxRecords <= 0 {
		return nil
	}
	return runstore.NewPruner(store, runstore.PrunerConfig{
		RetentionDays: sc.RetentionDays,
		MaxRecords:    int64(sc.MaxRecords),
	}, a.logger)
}
