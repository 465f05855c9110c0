package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mercator-hq/rulebook/pkg/cli"
)

func TestLintCommand(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStdout []string
	}{
		{
			name:       "valid file",
			args:       []string{"testdata/valid.yaml"},
			wantStdout: []string{"✓ 2 rule(s) valid", "1 file(s), 0 issue(s)"},
		},
		{
			name:     "invalid file",
			args:     []string{"testdata/invalid.yaml"},
			wantCode: cli.ExitFailure,
			wantStdout: []string{
				`typo: unexpected "THN", expected AND, OR or THEN (line 1, col 12) [syntax]`,
				"Did you mean 'THEN'?",
				"unclosed:",
				"1 file(s), 2 issue(s)",
			},
		},
		{
			name:       "directory",
			args:       []string{"testdata/rules"},
			wantCode:   cli.ExitFailure,
			wantStdout: []string{"Checking testdata/rules/fraud.yaml", "Checking testdata/rules/pricing.yaml", "1 issue(s)"},
		},
		{
			name:       "nonexistent file",
			args:       []string{"testdata/nonexistent.yaml"},
			wantCode:   cli.ExitFailure,
			wantStdout: []string{"[load]"},
		},
		{
			name:       "rule text",
			args:       []string{"--rule", "IF PSR < 3 THEN approve()", "--rule", "IF PSR < THEN approve()"},
			wantCode:   cli.ExitFailure,
			wantStdout: []string{"Checking <command line>", "#1: "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runCLI(t, append([]string{"lint"}, tt.args...)...)
			if code != tt.wantCode {
				t.Fatalf("exit code = %d, want %d (stderr: %s)\n%s", code, tt.wantCode, stderr, stdout)
			}
			for _, want := range tt.wantStdout {
				if !strings.Contains(stdout, want) {
					t.Errorf("stdout missing %q:\n%s", want, stdout)
				}
			}
		})
	}
}

func TestLintCommand_JSON(t *testing.T) {
	code, stdout, _ := runCLI(t, "lint", "testdata/invalid.yaml", "--format", "json")
	if code != cli.ExitFailure {
		t.Fatalf("exit code = %d, want %d", code, cli.ExitFailure)
	}

	var results []LintResult
	if err := json.Unmarshal([]byte(stdout), &results); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	res := results[0]
	if res.Valid || res.Set != "broken" || res.Rules != 3 || len(res.Issues) != 2 {
		t.Fatalf("result = %+v", res)
	}
	issue := res.Issues[0]
	if issue.Rule != "typo" || issue.Line != 1 || issue.Column != 12 || issue.Type != "syntax" {
		t.Errorf("issue = %+v, want typo at 1:12", issue)
	}
	if issue.Suggestion != "Did you mean 'THEN'?" {
		t.Errorf("suggestion = %q", issue.Suggestion)
	}
}

func TestLintCommand_CSV(t *testing.T) {
	_, stdout, _ := runCLI(t, "lint", "testdata/invalid.yaml", "-o", "csv")

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header and 2 issues:\n%s", len(lines), stdout)
	}
	if lines[0] != "FILE,RULE,LINE,COLUMN,TYPE,MESSAGE" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "testdata/invalid.yaml,typo,1,12,syntax,") {
		t.Errorf("row = %q", lines[1])
	}
}

func TestLintCommand_UnbuildableRule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed.yaml")
	content := "name: mixed\nrules:\n" +
		"  - id: ok\n    text: IF a < 1 THEN x()\n" +
		"  - id: shorthand\n    text: IF (PSR<4) THEN x()\n    context: {PSR: 1}\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	code, stdout, _ := runCLI(t, "lint", path)
	if code != cli.ExitFailure {
		t.Fatalf("exit code = %d, want %d\n%s", code, cli.ExitFailure, stdout)
	}
	for _, want := range []string{`shorthand: context key "PSR" is not a separate token`, "[context]", "1 file(s), 1 issue(s)"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestSplitJoined(t *testing.T) {
	if got := splitJoined(nil); got != nil {
		t.Errorf("splitJoined(nil) = %v", got)
	}
}
