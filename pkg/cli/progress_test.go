package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"mercator-hq/rulebook/pkg/ruleset"
)

func TestBatchProgress(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewBatchProgress(buf, 2)

	p.Begin("fraud")
	if !strings.Contains(buf.String(), "0/2 sets, running fraud") {
		t.Errorf("after Begin: %q", buf.String())
	}

	p.Done(&ruleset.Report{SetName: "fraud", Outcome: ruleset.OutcomeCompleted, Attempted: 2})
	p.Begin("pricing")
	p.Done(&ruleset.Report{
		SetName:   "pricing",
		Outcome:   ruleset.OutcomeStopped,
		Attempted: 3,
		Excluded:  []ruleset.Exclusion{{Index: 1}},
	})
	p.Finish()

	output := buf.String()
	for _, want := range []string{"1/2 sets", "2/2 sets", "✓ 2 set(s), 5 rule(s) attempted, 1 excluded, 1 stopped"} {
		if !strings.Contains(output, want) {
			t.Errorf("output %q does not contain %q", output, want)
		}
	}
	if !strings.HasSuffix(output, "\n") {
		t.Error("Finish() did not end the line")
	}
}

func TestBatchProgress_Abort(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewBatchProgress(buf, 3)

	p.Begin("a")
	p.Done(nil)
	p.Abort(errors.New("context canceled"))

	if !strings.Contains(buf.String(), "✗ interrupted after 1 of 3 set(s): context canceled") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestBatchProgress_ZeroTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewBatchProgress(buf, 0)

	p.Begin("a")
	p.Done(nil)

	if buf.Len() != 0 {
		t.Errorf("output = %q, want nothing for an empty run", buf.String())
	}
}

func TestNewBatchProgress_NilWriter(t *testing.T) {
	if p := NewBatchProgress(nil, 1); p.w == nil {
		t.Fatal("NewBatchProgress(nil) has no writer")
	}
}
