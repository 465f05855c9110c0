package health

import (
	"context"
	"slices"
	"sync"
	"time"
)

// CheckFunc probes one dependency. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// Probe and check status values.
const (
	StatusOK          = "ok"
	StatusFailing     = "failing"
	StatusReady       = "ready"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
)

const defaultCheckTimeout = 5 * time.Second

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status     string  `json:"status"`
	Required   bool    `json:"required"`
	Message    string  `json:"message,omitempty"`
	DurationMs float64 `json:"duration_ms"`
}

// HealthStatus is the body of the liveness and readiness probes.
type HealthStatus struct {
	// Status is StatusOK for liveness. Readiness is StatusReady,
	// StatusDegraded when only optional checks fail, or StatusUnavailable
	// when a required check fails.
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`

	Uptime    string    `json:"uptime,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type check struct {
	fn       CheckFunc
	required bool
}

// Checker aggregates the checks of the server's dependencies. Required
// checks, such as the run store, gate readiness; optional checks, such as
// background pruning, only degrade it.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]check
	timeout time.Duration
	started time.Time
}

// New returns a checker bounding each check by timeout, 5s when zero.
func New(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &Checker{
		checks:  make(map[string]check),
		timeout: timeout,
		started: time.Now(),
	}
}

// Require registers a check that must pass for the server to be ready.
// It replaces any check of the same name.
func (c *Checker) Require(name string, fn CheckFunc) {
	c.add(name, fn, true)
}

// Observe registers a check whose failure is reported without taking the
// server out of rotation.
func (c *Checker) Observe(name string, fn CheckFunc) {
	c.add(name, fn, false)
}

func (c *Checker) add(name string, fn CheckFunc, required bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check{fn: fn, required: required}
}

// Remove drops the named check.
func (c *Checker) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// Names lists the registered checks in sorted order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Liveness reports that the process is serving. It runs no checks.
func (c *Checker) Liveness() HealthStatus {
	return HealthStatus{
		Status:    StatusOK,
		Uptime:    time.Since(c.started).Truncate(time.Second).String(),
		Timestamp: time.Now(),
	}
}

// Readiness runs every check concurrently and folds the results.
func (c *Checker) Readiness(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := make(map[string]check, len(c.checks))
	for name, ch := range c.checks {
		checks[name] = ch
	}
	c.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(checks))
	)
	for name, ch := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := c.run(ctx, ch)
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := StatusReady
	for _, r := range results {
		if r.Status != StatusFailing {
			continue
		}
		if r.Required {
			status = StatusUnavailable
			break
		}
		status = StatusDegraded
	}

	return HealthStatus{Status: status, Checks: results, Timestamp: time.Now()}
}

// run executes one check, abandoning it once the timeout passes.
func (c *Checker) run(ctx context.Context, ch check) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- ch.fn(ctx) }()

	result := CheckResult{Status: StatusOK, Required: ch.required}
	select {
	case err := <-done:
		if err != nil {
			result.Status, result.Message = StatusFailing, err.Error()
		}
	case <-ctx.Done():
		result.Status, result.Message = StatusFailing, "check timed out after "+c.timeout.String()
	}
	result.DurationMs = float64(time.Since(start).Microseconds()) / 1000
	return result
}
