package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/rulebook/pkg/cli"
	"mercator-hq/rulebook/pkg/runstore"
	"mercator-hq/rulebook/pkg/server"
)

var serveFlags struct {
	listenAddress string
	store         string
	dryRun        bool
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server with the specified configuration.

The server evaluates rules and executes rule sets sent to /v1/evaluate and
/v1/execute, and serves stored runs from /v1/runs. Health, readiness,
version and metrics endpoints are served alongside.

Expired runs are pruned on store.prune_schedule while the server runs.

Examples:
  # Start with default config
  rulebook serve

  # Start with custom config
  rulebook serve --config /etc/rulebook/config.yaml

  # Override listen address
  rulebook serve --listen 0.0.0.0:8080

  # Validate config without starting server
  rulebook serve --dry-run`,
		Args: cobra.NoArgs,
		RunE: serve,
	}

	cmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	cmd.Flags().StringVar(&serveFlags.store, "store", "", "override store backend (memory, sqlite, postgres)")
	cmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting server")
	return cmd
}

func serve(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	cfg := a.cfg

	// Apply flag overrides
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}

	if serveFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	store, err := a.openStore(ctx, serveFlags.store)
	if err != nil {
		return err
	}
	defer store.Close()

	tracer, err := a.newTracer()
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	collector := a.newMetrics()
	srv, err := server.New(cfg, server.Options{
		Engine:     a.newEngine(collector),
		Dispatcher: a.newDispatcher(),
		Store:      store,
		Metrics:    collector,
		Tracer:     tracer,
		Logger:     a.logger,
		Version:    Version,
		Commit:     GitCommit,
		BuildTime:  BuildDate,
	})
	if err != nil {
		return cli.NewCommandError("serve", err)
	}

	if pruner := a.newPruner(store); pruner != nil && cfg.Store.PruneSchedule != "" {
		scheduler := runstore.NewScheduler(a.logger)
		if err := scheduler.AddPruner(cfg.Store.PruneSchedule, pruner); err != nil {
			return cli.NewConfigError("store.prune_schedule", err.Error())
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
		srv.Checker().Observe("prune", func(context.Context) error {
			return scheduler.LastError("prune")
		})
	}

	a.logger.Info("starting HTTP server",
		"address", cfg.Server.ListenAddress,
		"store", cfg.Store.Backend,
		"metrics", cfg.Telemetry.Metrics.Enabled,
		"tracing", tracer.Enabled(),
	)

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	if cli.Interrupted(ctx) {
		a.logger.Info("server stopped on signal")
	}
	return nil
}
