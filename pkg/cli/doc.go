/*
Package cli provides command-line interface utilities for rulebook.

The cli package includes output formatters, report views, a progress
reporter and signal handling used by the rulebook command.

Output Formatting:

Commands print results as text, JSON, a table or CSV. Views adapt domain
values to every format: they implement fmt.Stringer for text, Tabular for
tables and CSV, and Raw so JSON keeps the shape of the underlying value:

	formatter := cli.NewFormatter(cli.FormatTable)
	if err := formatter.FormatTo(os.Stdout, cli.ReportView{Report: report}); err != nil {
		return err
	}

Exit Codes:

ExitCode maps command errors to process exit codes. Commands that have
already printed their findings return an ExitError without a cause:

	if issues > 0 {
		return &cli.ExitError{Code: cli.ExitFailure}
	}

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
*/
package cli
