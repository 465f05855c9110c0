package runstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"mercator-hq/rulebook/pkg/ruleset"
)

func TestMemoryStore_MaxRecords(t *testing.T) {
	s := NewMemoryStore(3)
	defer s.Close()

	for i := 0; i < 5; i++ {
		mustSave(t, s, newReport(fmt.Sprintf("run-%d", i), "set", ruleset.OutcomeCompleted, i))
	}

	got, err := s.List(context.Background(), nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if ids := runIDs(got); !equalIDs(ids, []string{"run-4", "run-3", "run-2"}) {
		t.Errorf("List() = %v, want newest three", ids)
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	s := NewMemoryStore(0)
	mustSave(t, s, newReport("run-1", "set", ruleset.OutcomeCompleted, 0))
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	ctx := context.Background()
	checks := map[string]error{
		"save": s.Save(ctx, newReport("run-2", "set", ruleset.OutcomeCompleted, 0)),
		"ping": s.Ping(ctx),
	}
	_, checks["get"] = s.Get(ctx, "run-1")
	_, checks["list"] = s.List(ctx, nil)
	_, checks["prune"] = s.Prune(ctx, baseTime)
	_, checks["trim"] = s.Trim(ctx, 1)

	for op, err := range checks {
		var se *StorageError
		if !errors.As(err, &se) || !errors.Is(err, ErrClosed) {
			t.Errorf("%s after Close() error = %v, want StorageError wrapping ErrClosed", op, err)
		}
	}
}

func TestMemoryStore_ConcurrentSave(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Save(context.Background(), newReport(fmt.Sprintf("run-%d", i), "set", ruleset.OutcomeCompleted, i))
			_, _ = s.List(context.Background(), &Query{Limit: 5})
		}(i)
	}
	wg.Wait()

	n, err := s.Count(context.Background(), nil)
	if err != nil || n != 50 {
		t.Errorf("Count() = %d, %v; want 50", n, err)
	}
}
