package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"mercator-hq/rulebook/pkg/cli"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// runCLI executes args with the test config and returns the exit code and
// output streams.
func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	return runCLIContext(t, context.Background(), args...)
}

func runCLIContext(t *testing.T, ctx context.Context, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append([]string{"--config", "testdata/config.yaml"}, args...)
	code := execute(ctx, args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCmd()

	want := []string{"eval", "export", "lint", "run", "runs", "serve", "version"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == root {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestExecute_ExitCodes(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStderr string
	}{
		{
			name:     "help",
			args:     []string{"--help"},
			wantCode: cli.ExitOK,
		},
		{
			name:       "unknown flag",
			args:       []string{"eval", "--bogus", "IF a < 1 THEN x()"},
			wantCode:   cli.ExitConfig,
			wantStderr: "unknown flag",
		},
		{
			name:       "unknown format",
			args:       []string{"eval", "--format", "xml", "IF a < 1 THEN x()"},
			wantCode:   cli.ExitConfig,
			wantStderr: "unknown output format",
		},
		{
			name:       "missing config file",
			args:       []string{"--config", "testdata/nope.yaml", "version"},
			wantCode:   cli.ExitOK,
		},
		{
			name:       "missing config file used by a command",
			args:       []string{"--config", "testdata/nope.yaml", "eval", "IF a < 1 THEN x()"},
			wantCode:   cli.ExitConfig,
			wantStderr: "failed to read configuration file",
		},
		{
			name:       "unknown command",
			args:       []string{"frobnicate"},
			wantCode:   cli.ExitFailure,
			wantStderr: "unknown command",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tt.args...)
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d (stderr: %s)", code, tt.wantCode, stderr)
			}
			if !strings.Contains(stderr, tt.wantStderr) {
				t.Errorf("stderr = %q, want it to contain %q", stderr, tt.wantStderr)
			}
		})
	}
}

func TestParseVars(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]float64
		wantErr bool
	}{
		{name: "numbers", pairs: []string{"PSR=2", "WS.Age=45.5"}, want: map[string]float64{"PSR": 2, "WS.Age": 45.5}},
		{name: "booleans", pairs: []string{"flagged=true", "vip=false"}, want: map[string]float64{"flagged": 1, "vip": 0}},
		{name: "spaces trimmed", pairs: []string{" PSR = 3 "}, want: map[string]float64{"PSR": 3}},
		{name: "later wins", pairs: []string{"a=1", "a=2"}, want: map[string]float64{"a": 2}},
		{name: "missing equals", pairs: []string{"PSR"}, wantErr: true},
		{name: "empty key", pairs: []string{"=1"}, wantErr: true},
		{name: "not a number", pairs: []string{"PSR=high"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVars(tt.pairs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseVars() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if cli.ExitCode(err) != cli.ExitConfig {
					t.Errorf("ExitCode = %d, want ExitConfig", cli.ExitCode(err))
				}
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseVars() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}
