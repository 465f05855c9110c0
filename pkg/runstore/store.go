package runstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mercator-hq/rulebook/pkg/ruleset"
)

const (
	// DefaultLimit is the page size used when a query sets none.
	DefaultLimit = 100

	// MaxLimit is the largest page a query may request.
	MaxLimit = 1000
)

// Store persists rule set reports. Implementations must be safe for
// concurrent use. Every Store is also a ruleset.ReportSink.
type Store interface {
	// Save persists report, replacing any report with the same run ID.
	Save(ctx context.Context, report *ruleset.Report) error

	// Get returns the report for runID, or ErrRunNotFound.
	Get(ctx context.Context, runID string) (*ruleset.Report, error)

	// List returns reports matching q, newest first unless q.Ascending.
	List(ctx context.Context, q *Query) ([]*ruleset.Report, error)

	// Count returns the number of reports matching q, ignoring paging.
	Count(ctx context.Context, q *Query) (int64, error)

	// Prune deletes reports started before olderThan.
	Prune(ctx context.Context, olderThan time.Time) (int64, error)

	// Trim deletes the oldest reports until at most keep remain. A keep
	// of zero or less deletes nothing.
	Trim(ctx context.Context, keep int64) (int64, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the backend.
	Close() error
}

// Query filters and pages stored reports.
type Query struct {
	// SetName matches the rule set name exactly.
	SetName string `json:"set_name,omitempty"`

	// Outcome matches the batch outcome.
	Outcome ruleset.Outcome `json:"outcome,omitempty"`

	// Since and Until bound StartedAt, inclusive. Zero values are unbounded.
	Since time.Time `json:"since,omitempty"`
	Until time.Time `json:"until,omitempty"`

	Limit     int  `json:"limit,omitempty"`
	Offset    int  `json:"offset,omitempty"`
	Ascending bool `json:"ascending,omitempty"`
}

// Validate checks the query and returns a QueryError describing the first
// problem found.
func (q *Query) Validate() error {
	if q == nil {
		return nil
	}
	if q.Limit < 0 {
		return NewQueryError(q, fmt.Errorf("limit must not be negative, got %d", q.Limit))
	}
	if q.Limit > MaxLimit {
		return NewQueryError(q, fmt.Errorf("limit must be at most %d, got %d", MaxLimit, q.Limit))
	}
	if q.Offset < 0 {
		return NewQueryError(q, fmt.Errorf("offset must not be negative, got %d", q.Offset))
	}
	switch q.Outcome {
	case "", ruleset.OutcomeCompleted, ruleset.OutcomeStopped, ruleset.OutcomeAborted:
	default:
		return NewQueryError(q, fmt.Errorf("unknown outcome %q", q.Outcome))
	}
	if !q.Since.IsZero() && !q.Until.IsZero() && q.Until.Before(q.Since) {
		return NewQueryError(q, errors.New("until must not be before since"))
	}
	return nil
}

// limit returns the effective page size.
func (q *Query) limit() int {
	if q == nil || q.Limit == 0 {
		return DefaultLimit
	}
	return q.Limit
}

// matches reports whether r passes the query filters.
func (q *Query) matches(r *ruleset.Report) bool {
	if q == nil {
		return true
	}
	if q.SetName != "" && r.SetName != q.SetName {
		return false
	}
	if q.Outcome != "" && r.Outcome != q.Outcome {
		return false
	}
	if !q.Since.IsZero() && r.StartedAt.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && r.StartedAt.After(q.Until) {
		return false
	}
	return true
}

func validateReport(report *ruleset.Report) error {
	if report == nil {
		return ErrInvalidReport
	}
	if report.RunID == "" {
		return fmt.Errorf("%w: run id is required", ErrInvalidReport)
	}
	return nil
}
