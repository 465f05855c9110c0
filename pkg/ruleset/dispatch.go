package ruleset

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownAction is returned by a strict DispatchTable for names it has
// no handler for.
var ErrUnknownAction = errors.New("unknown action")

// Dispatcher invokes the action selected by a rule.
type Dispatcher interface {
	Dispatch(ctx context.Context, action string, rule Rule) error
}

// ActionFunc handles one action.
type ActionFunc func(ctx context.Context, rule Rule) error

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, action string, rule Rule) error

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, action string, rule Rule) error {
	return f(ctx, action, rule)
}

// DispatchTable maps action names to handlers. It is safe for concurrent
// use.
type DispatchTable struct {
	mu       sync.RWMutex
	handlers map[string]ActionFunc
	strict   bool
}

// NewDispatchTable creates an empty table. A strict table fails on names
// it has no handler for; a lenient one ignores them.
func NewDispatchTable(strict bool) *DispatchTable {
	return &DispatchTable{
		handlers: make(map[string]ActionFunc),
		strict:   strict,
	}
}

// Register sets the handler for name, replacing any previous one.
func (t *DispatchTable) Register(name string, fn ActionFunc) *DispatchTable {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[name] = fn
	return t
}

// Names returns the registered action names in sorted order.
func (t *DispatchTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.handlers))
	for name := range t.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has returns true if name has a handler.
func (t *DispatchTable) Has(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.handlers[name]
	return ok
}

// Dispatch runs the handler registered for action.
func (t *DispatchTable) Dispatch(ctx context.Context, action string, rule Rule) error {
	t.mu.RLock()
	fn, ok := t.handlers[action]
	t.mu.RUnlock()

	if !ok {
		if t.strict {
			return fmt.Errorf("%w: %q", ErrUnknownAction, action)
		}
		return nil
	}
	return fn(ctx, rule)
}
