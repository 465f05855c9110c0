package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/rulebook/pkg/cli"
	"mercator-hq/rulebook/pkg/ruleset"
	"mercator-hq/rulebook/pkg/runstore"
)

var runsFlags struct {
	store     string
	format    string
	set       string
	outcome   string
	since     string
	until     string
	limit     int
	offset    int
	ascending bool
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Query stored rule set executions",
		Long: `Query rule set execution reports kept in the run store.

Examples:
  # List the latest runs
  rulebook runs list

  # Stopped runs of one set in the last day, as a table
  rulebook runs list --set pricing --outcome stopped --since 24h --format table

  # Show one run
  rulebook runs show 3f1c2a9e-5b7d-4e0f-9a61-2c8d4b7e1f30

  # Apply retention now
  rulebook runs prune`,
	}

	cmd.PersistentFlags().StringVar(&runsFlags.store, "store", "", "override store backend (memory, sqlite, postgres)")
	cmd.PersistentFlags().StringVarP(&runsFlags.format, "format", "o", "text", "output format: text, json, table, csv")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}
	list.Flags().StringVar(&runsFlags.set, "set", "", "rule set name")
	list.Flags().StringVar(&runsFlags.outcome, "outcome", "", "outcome: completed, stopped, aborted")
	list.Flags().StringVar(&runsFlags.since, "since", "", "earliest start, RFC3339 or a duration ago (e.g. 24h)")
	list.Flags().StringVar(&runsFlags.until, "until", "", "latest start, RFC3339 or a duration ago")
	list.Flags().IntVar(&runsFlags.limit, "limit", runstore.DefaultLimit, "maximum runs to list")
	list.Flags().IntVar(&runsFlags.offset, "offset", 0, "runs to skip")
	list.Flags().BoolVar(&runsFlags.ascending, "asc", false, "oldest first")

	show := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show one stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs past the retention period or record cap",
		Args:  cobra.NoArgs,
		RunE:  pruneRuns,
	}

	cmd.AddCommand(list, show, prune)
	return cmd
}

func listRuns(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	format, err := cli.ParseFormat(runsFlags.format)
	if err != nil {
		return err
	}
	q, err := runsQuery(time.Now())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := a.openStore(ctx, runsFlags.store)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(ctx, q)
	if err != nil {
		return storeError(err)
	}
	total, err := store.Count(ctx, q)
	if err != nil {
		return storeError(err)
	}

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), cli.RunsView{Runs: runs, Total: total})
}

func showRun(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	format, err := cli.ParseFormat(runsFlags.format)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := a.openStore(ctx, runsFlags.store)
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := store.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], storeError(err))
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), cli.ReportView{Report: report})
}

func pruneRuns(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := a.openStore(ctx, runsFlags.store)
	if err != nil {
		return err
	}
	defer store.Close()

	pruner := a.newPruner(store)
	if pruner == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "retention is disabled, nothing to prune")
		return nil
	}
	deleted, err := pruner.Prune(ctx)
	if err != nil {
		return cli.NewCommandError("runs prune", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d run(s)\n", deleted)
	return nil
}

// runsQuery builds the list query from the flags. Times are RFC3339 or a
// duration before now.
func runsQuery(now time.Time) (*runstore.Query, error) {
	q := &runstore.Query{
		SetName:   runsFlags.set,
		Outcome:   ruleset.Outcome(runsFlags.outcome),
		Limit:     runsFlags.limit,
		Offset:    runsFlags.offset,
		Ascending: runsFlags.ascending,
	}

	var err error
	if q.Since, err = parseTime(runsFlags.since, now); err != nil {
		return nil, cli.NewConfigError("since", err.Error())
	}
	if q.Until, err = parseTime(runsFlags.until, now); err != nil {
		return nil, cli.NewConfigError("until", err.Error())
	}
	if err := q.Validate(); err != nil {
		return nil, cli.NewConfigError("query", err.Error())
	}
	return q, nil
}

func parseTime(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC3339 nor a duration", s)
	}
	return now.Add(-d), nil
}

func storeError(err error) error {
	if errors.Is(err, runstore.ErrRunNotFound) {
		return err
	}
	return cli.NewCommandError("runs", err)
}
