package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"mercator-hq/rulebook/pkg/cli"
)

func TestServeCommand_DryRun(t *testing.T) {
	code, stdout, stderr := runCLI(t, "serve", "--dry-run")
	if code != 0 {
		t.Fatalf("exit code = %d (stderr: %s)", code, stderr)
	}
	if !strings.Contains(stdout, "Configuration valid") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestServeCommand_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	code, _, stderr := runCLIContext(t, ctx, "serve", "--listen", "127.0.0.1:0")
	if code != 0 {
		t.Fatalf("exit code = %d (stderr: %s)", code, stderr)
	}
}

func TestServeCommand_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{"unexpected argument", []string{"now"}, cli.ExitFailure},
		{"bad store", []string{"--store", "redis", "--listen", "127.0.0.1:0"}, cli.ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, append([]string{"serve"}, tt.args...)...)
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d (stderr: %s)", code, tt.wantCode, stderr)
			}
		})
	}
}
