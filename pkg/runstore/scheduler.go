package runstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is work run on a schedule.
type Job func(ctx context.Context) error

// Scheduler runs named jobs on cron schedules: history pruning and
// periodic rule set executions. A job that is still running when its next
// tick arrives is skipped for that tick.
//
// Common cron expressions:
//   - "0 3 * * *"    - Daily at 3 AM
//   - "*/5 * * * *"  - Every 5 minutes
//   - "@every 30s"   - Every 30 seconds
type Scheduler struct {
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	ctx     context.Context
	entries map[string]cron.EntryID
	failed  map[string]error
	running bool
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "runstore.scheduler")
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger}))),
		logger:  logger,
		ctx:     context.Background(),
		entries: make(map[string]cron.EntryID),
		failed:  make(map[string]error),
	}
}

// Add schedules job under name. Names must be unique.
func (s *Scheduler) Add(name, spec string, job Job) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %q is already scheduled", name)
	}

	id, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("failed to schedule %q: %w", name, err)
	}
	s.entries[name] = id
	s.logger.Debug("job scheduled", "job", name, "schedule", spec)
	return nil
}

// AddPruner schedules p under the name "prune".
func (s *Scheduler) AddPruner(spec string, p *Pruner) error {
	return s.Add("prune", spec, func(ctx context.Context) error {
		_, err := p.Prune(ctx)
		return err
	})
}

// run executes one tick of a job.
func (s *Scheduler) run(name string, job Job) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	s.logger.Debug("scheduled job started", "job", name)
	err := job(ctx)

	s.mu.Lock()
	if err != nil {
		s.failed[name] = err
	} else {
		delete(s.failed, name)
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled job failed",
			"job", name,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}
	s.logger.Debug("scheduled job completed",
		"job", name,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Start runs the scheduled jobs until ctx is cancelled or Stop is called.
// Jobs receive ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.ctx = ctx
	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler started", "jobs", len(s.entries))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	// Jobs take the lock to read their context, so wait without holding it.
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// IsRunning reports whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next time the named job runs. The second result is
// false when the job is unknown or the scheduler is not running.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}

	next := s.cron.Entry(id).Next
	return next, !next.IsZero()
}

// LastError returns the error of the named job's latest run. It is nil
// when that run succeeded or the job has not run yet.
func (s *Scheduler) LastError(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.failed[name]
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
