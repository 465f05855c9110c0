package main

import (
	"encoding/json"
	"strings"
	"testing"

	"mercator-hq/rulebook/pkg/cli"
)

func TestEvalCommand(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{
			name:       "then branch",
			args:       []string{"IF PSR < 3 THEN approve() ELSE review()", "--set", "PSR=2"},
			wantStdout: "approve\n",
		},
		{
			name:       "else branch",
			args:       []string{"IF PSR < 3 THEN approve() ELSE review()", "-s", "PSR=5"},
			wantStdout: "review\n",
		},
		{
			name:       "no action",
			args:       []string{"IF PSR < 3 THEN approve()", "-s", "PSR=5"},
			wantStdout: "no action",
		},
		{
			name:       "missing attribute defaults to zero",
			args:       []string{"IF WS.Age < 1 THEN approve()"},
			wantStdout: "defaulted to 0: WS.Age",
		},
		{
			name:       "terminal action",
			args:       []string{"IF flagged == 1 THEN Exit()", "-s", "flagged=true"},
			wantStdout: "Exit (terminal)",
		},
		{
			name:       "left fold without precedence",
			args:       []string{"IF a == 1 OR b == 1 AND c == 1 THEN x()", "-s", "a=1"},
			wantStdout: "no action",
		},
		{
			name:       "trace",
			args:       []string{"IF PSR < 3 THEN approve()", "-s", "PSR=2", "--trace"},
			wantStdout: "trace:",
		},
		{
			name:       "syntax error",
			args:       []string{"IF PSR < 3 THN approve()"},
			wantCode:   cli.ExitFailure,
			wantStderr: "Did you mean 'THEN'?",
		},
		{
			name:       "syntax error location",
			args:       []string{"IF PSR < 3 THN approve()"},
			wantCode:   cli.ExitFailure,
			wantStderr: "--> 1:12",
		},
		{
			name:       "bad attribute",
			args:       []string{"IF PSR < 3 THEN approve()", "-s", "PSR"},
			wantCode:   cli.ExitConfig,
			wantStderr: "not key=value",
		},
		{
			name:       "no rule",
			args:       []string{},
			wantCode:   cli.ExitFailure,
			wantStderr: "accepts 1 arg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runCLI(t, append([]string{"eval"}, tt.args...)...)
			if code != tt.wantCode {
				t.Fatalf("exit code = %d, want %d (stderr: %s)", code, tt.wantCode, stderr)
			}
			if !strings.Contains(stdout, tt.wantStdout) {
				t.Errorf("stdout = %q, want it to contain %q", stdout, tt.wantStdout)
			}
			if !strings.Contains(stderr, tt.wantStderr) {
				t.Errorf("stderr = %q, want it to contain %q", stderr, tt.wantStderr)
			}
		})
	}
}

func TestEvalCommand_JSON(t *testing.T) {
	code, stdout, stderr := runCLI(t, "eval", "IF PSR < 3 AND WS.Age > 30 THEN approve()",
		"-s", "PSR=2", "--trace", "--format", "json")
	if code != 0 {
		t.Fatalf("exit code = %d (stderr: %s)", code, stderr)
	}

	var out evalOutput
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if out.Selected || out.Matched {
		t.Errorf("selected=%v matched=%v, want both false", out.Selected, out.Matched)
	}
	if len(out.Defaulted) != 1 || out.Defaulted[0] != "WS.Age" {
		t.Errorf("defaulted = %v, want [WS.Age]", out.Defaulted)
	}
	if len(out.Trace) == 0 {
		t.Error("trace is empty")
	}
}

func TestEvalCommand_CSV(t *testing.T) {
	code, stdout, _ := runCLI(t, "eval", "IF PSR < 3 THEN approve()", "-s", "PSR=2", "-o", "csv")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	want := "ACTION,SELECTED,MATCHED,TERMINAL,DEFAULTED\napprove,true,true,false,\n"
	if stdout != want {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}
}
