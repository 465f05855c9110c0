package main

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/rulebook/pkg/cli"
	"mercator-hq/rulebook/pkg/ruleset"
	"mercator-hq/rulebook/pkg/ruleset/source"
	"mercator-hq/rulebook/pkg/runstore"
)

var runFlags struct {
	store    string
	watch    bool
	schedule string
	format   string
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [FILE|DIR]",
		Short: "Execute rule sets",
		Long: `Execute the rule sets in a file or directory, defaulting to rules.path,
or to the Git repository in rules.git when one is configured.

Each set runs as one batch: rules are evaluated in order and their selected
actions dispatched. A rule that fails to parse or evaluate is excluded and
the batch continues; a rule selecting the terminal action stops the batch.
Every report is saved to the run store.

With --watch the sets are executed again whenever their files change, or
when a poll of the Git repository finds a new commit touching them. With
--schedule they are executed on a cron schedule. Both run until interrupted.

Exit status is 3 when a batch is interrupted.

Examples:
  # Run the configured rule sets once
  rulebook run

  # Run a directory and keep the history in SQLite
  rulebook run rules/ --store sqlite

  # Re-run on change
  rulebook run rules/ --watch

  # Run every five minutes
  rulebook run rules/ --schedule "*/5 * * * *"`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRules,
	}

	cmd.Flags().StringVar(&runFlags.store, "store", "", "override store backend (memory, sqlite, postgres)")
	cmd.Flags().BoolVarP(&runFlags.watch, "watch", "w", false, "re-run when rule-set files change")
	cmd.Flags().StringVar(&runFlags.schedule, "schedule", "", "re-run on a cron schedule (overrides rules.schedule)")
	cmd.Flags().StringVarP(&runFlags.format, "format", "o", "text", "output format: text, json, table, csv")
	return cmd
}

func runRules(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	format, err := cli.ParseFormat(runFlags.format)
	if err != nil {
		return err
	}

	path := a.cfg.Rules.Path
	if len(args) > 0 {
		path = args[0]
	}
	schedule := a.cfg.Rules.Schedule
	if runFlags.schedule != "" {
		schedule = runFlags.schedule
	}
	watch := runFlags.watch || a.cfg.Rules.Watch

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	store, err := a.openStore(ctx, runFlags.store)
	if err != nil {
		return err
	}
	defer store.Close()

	tracer, err := a.newTracer()
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracer.Shutdown(shutdownCtx)
	}()

	r := &runner{
		executor:  a.newExecutor(a.newEngine(nil), store, nil).WithTracer(tracer.Tracer()),
		formatter: cli.NewFormatter(format),
		out:       cmd.OutOrStdout(),
		progress:  format == cli.FormatText,
		errOut:    cmd.ErrOrStderr(),
	}

	var (
		src       source.Source
		watchSets func(context.Context, func([]*ruleset.Set, error)) error
	)
	if git := &a.cfg.Rules.Git; git.Repository != "" && len(args) == 0 {
		gs, err := source.NewGitSource(git, a.newLoader(), a.logger)
		if err != nil {
			return cli.NewConfigError("rules.git", err.Error())
		}
		src, path = gs, git.Repository
		watchSets = gs.Watch
	} else {
		fs := source.NewFileSource(path, a.newLoader(), a.logger)
		src = fs
		watchSets = func(ctx context.Context, onChange func([]*ruleset.Set, error)) error {
			return fs.Watch(ctx, source.WatchOptions{Debounce: a.cfg.Rules.Debounce}, onChange)
		}
	}

	if !watch && schedule == "" {
		sets, err := src.Load(ctx)
		if err != nil {
			if len(sets) == 0 {
				return err
			}
			a.logger.Warn("some rule sets failed to load", "error", err)
		}
		return r.run(ctx, sets)
	}

	// Long-running modes execute once immediately, then on every trigger.
	if err := r.reload(ctx, src, path, a); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if schedule != "" {
		scheduler := runstore.NewScheduler(a.logger)
		if err := scheduler.Add("run", schedule, func(ctx context.Context) error {
			return r.reload(ctx, src, path, a)
		}); err != nil {
			return cli.NewConfigError("schedule", err.Error())
		}
		if pruner := a.newPruner(store); pruner != nil && a.cfg.Store.PruneSchedule != "" {
			if err := scheduler.AddPruner(a.cfg.Store.PruneSchedule, pruner); err != nil {
				return cli.NewConfigError("store.prune_schedule", err.Error())
			}
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()

		if next, ok := scheduler.NextRun("run"); ok {
			a.logger.Info("scheduled rule set execution", "schedule", schedule, "next_run", next)
		}
	}

	if watch {
		err := watchSets(ctx, func(sets []*ruleset.Set, err error) {
			if err != nil {
				a.logger.Error("failed to reload rule sets", "path", path, "error", err)
				if len(sets) == 0 {
					return
				}
			}
			a.logger.Info("rule sets changed, executing", "path", path, "sets", len(sets))
			_ = r.run(ctx, sets)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return cli.NewCommandError("run", err)
		}
		return nil
	}

	<-ctx.Done()
	return nil
}

// runner executes rule sets and writes their reports. Watch and schedule
// triggers may overlap, so output is serialized.
type runner struct {
	executor  *ruleset.Executor
	formatter cli.Formatter
	out       io.Writer
	errOut    io.Writer
	progress  bool

	mu sync.Mutex
}

// reload loads the sets from src and runs them.
func (r *runner) reload(ctx context.Context, src source.Source, path string, a *app) error {
	sets, err := src.Load(ctx)
	if err != nil {
		a.logger.Error("failed to load rule sets", "path", path, "error", err)
		if len(sets) == 0 {
			return err
		}
	}
	return r.run(ctx, sets)
}

// run executes sets in order and prints their reports. It stops at the
// first aborted batch and returns an ExitAborted error.
func (r *runner) run(ctx context.Context, sets []*ruleset.Set) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var progress *cli.BatchProgress
	if r.progress && len(sets) > 1 {
		progress = cli.NewBatchProgress(r.errOut, len(sets))
	}

	reports := make(cli.ReportsView, 0, len(sets))
	var abortErr error
	for _, set := range sets {
		if progress != nil {
			progress.Begin(set.Name)
		}
		report, err := r.executor.Execute(ctx, set)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			abortErr = err
			if progress != nil {
				progress.Abort(err)
			}
			break
		}
		if progress != nil {
			progress.Done(report)
		}
	}
	if progress != nil && abortErr == nil {
		progress.Finish()
	}

	var data any = reports
	if len(reports) == 1 {
		data = cli.ReportView{Report: reports[0]}
	}
	if err := r.formatter.FormatTo(r.out, data); err != nil {
		return err
	}

	if abortErr != nil {
		return &cli.ExitError{Code: cli.ExitAborted, Err: abortErr}
	}
	return nil
}
