package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/rulebook/pkg/cli"
)

var (
	// Global flags
	cfgFile  string
	verbose  bool
	logLevel string
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rulebook",
		Short: "Rulebook - conditional rule evaluation and batch execution",
		Long: `Rulebook evaluates rules of the form

  IF <condition> THEN <action>() [ELSE <action>()]

against numeric attributes, and executes ordered rule sets as batches.
Malformed rules are excluded from their batch without stopping it, and a
rule selecting the terminal action ends the batch early.

Configuration is read from --config (YAML) and RULEBOOK_* environment
variables, on top of built-in defaults.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults and environment only when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return cli.NewConfigError("flags", err.Error())
	})

	rootCmd.AddCommand(
		newVersionCmd(),
		newEvalCmd(),
		newLintCmd(),
		newRunCmd(),
		newServeCmd(),
		newRunsCmd(),
		newExportCmd(),
	)
	return rootCmd
}

// Execute runs the root command and exits with its exit code.
func Execute() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command line args and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !cli.Silent(err) {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return cli.ExitCode(err)
}
