package ruleset

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestDispatchTable_Dispatch(t *testing.T) {
	var called []string
	table := NewDispatchTable(false).
		Register("action1", func(ctx context.Context, rule Rule) error {
			called = append(called, "action1:"+rule.ID)
			return nil
		})

	if err := table.Dispatch(context.Background(), "action1", Rule{ID: "r1"}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if err := table.Dispatch(context.Background(), "unregistered", Rule{ID: "r2"}); err != nil {
		t.Errorf("lenient Dispatch() of unknown action error = %v, want nil", err)
	}

	if want := []string{"action1:r1"}; !reflect.DeepEqual(called, want) {
		t.Errorf("called = %v, want %v", called, want)
	}
}

func TestDispatchTable_Strict(t *testing.T) {
	table := NewDispatchTable(true)
	err := table.Dispatch(context.Background(), "missing", Rule{})
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("strict Dispatch() error = %v, want ErrUnknownAction", err)
	}
}

func TestDispatchTable_HandlerError(t *testing.T) {
	boom := errors.New("boom")
	table := NewDispatchTable(false).Register("fail", func(context.Context, Rule) error { return boom })

	if err := table.Dispatch(context.Background(), "fail", Rule{}); !errors.Is(err, boom) {
		t.Errorf("Dispatch() error = %v, want %v", err, boom)
	}
}

func TestDispatchTable_Names(t *testing.T) {
	noop := func(context.Context, Rule) error { return nil }
	table := NewDispatchTable(false).Register("b", noop).Register("a", noop)

	if got, want := table.Names(), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if !table.Has("a") || table.Has("c") {
		t.Error("Has() returned wrong result")
	}
}

func TestDispatcherFunc(t *testing.T) {
	var got string
	d := DispatcherFunc(func(ctx context.Context, action string, rule Rule) error {
		got = action
		return nil
	})
	_ = d.Dispatch(context.Background(), "x", Rule{})
	if got != "x" {
		t.Errorf("DispatcherFunc received %q, want %q", got, "x")
	}
}
