package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mercator-hq/rulebook/pkg/ruleset"
)

// sqlStore holds the queries shared by the SQLite and PostgreSQL backends.
// Both store one row per run in a runs table; the report itself is kept as
// encoded JSON and the remaining columns exist for filtering.
type sqlStore struct {
	db      *sql.DB
	backend string
	logger  *slog.Logger

	// placeholder returns the bind parameter for the nth argument (1-based).
	placeholder func(n int) string
}

const upsertRun = `
INSERT INTO runs (
	run_id, set_name, outcome, started_at, duration_ns,
	attempted, total, excluded_count, error, report
) VALUES (%s)
ON CONFLICT (run_id) DO UPDATE SET
	set_name = excluded.set_name,
	outcome = excluded.outcome,
	started_at = excluded.started_at,
	duration_ns = excluded.duration_ns,
	attempted = excluded.attempted,
	total = excluded.total,
	excluded_count = excluded.excluded_count,
	error = excluded.error,
	report = excluded.report
`

func (s *sqlStore) binds(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = s.placeholder(i + 1)
	}
	return strings.Join(parts, ", ")
}

// Save inserts or replaces the report.
func (s *sqlStore) Save(ctx context.Context, report *ruleset.Report) error {
	if err := validateReport(report); err != nil {
		return err
	}
	data, err := encodeReport(report)
	if err != nil {
		return NewStorageError(s.backend, "save", err)
	}

	// Optional text columns are stored as NULL when empty.
	var errorVal any
	if report.Error != "" {
		errorVal = report.Error
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(upsertRun, s.binds(10)),
		report.RunID, report.SetName, string(report.Outcome), report.StartedAt.UnixNano(), int64(report.Duration),
		report.Attempted, report.Total, len(report.Excluded), errorVal, string(data),
	)
	if err != nil {
		return NewStorageError(s.backend, "save", err)
	}
	return nil
}

// Get returns the report for runID.
func (s *sqlStore) Get(ctx context.Context, runID string) (*ruleset.Report, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT report FROM runs WHERE run_id = "+s.placeholder(1), runID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, NewStorageError(s.backend, "get", err)
	}

	report, err := decodeReport(data)
	if err != nil {
		return nil, NewStorageError(s.backend, "get", err)
	}
	return report, nil
}

// List returns reports matching q.
func (s *sqlStore) List(ctx context.Context, q *Query) ([]*ruleset.Report, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	where, args := s.buildWhereClause(q)
	query := "SELECT report FROM runs" + where

	order := "DESC"
	if q != nil && q.Ascending {
		order = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY started_at %s, run_id %s LIMIT %d", order, order, q.limit())
	if q != nil && q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewStorageError(s.backend, "list", err)
	}
	defer rows.Close()

	reports := []*ruleset.Report{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, NewStorageError(s.backend, "scan", err)
		}
		report, err := decodeReport(data)
		if err != nil {
			return nil, NewStorageError(s.backend, "scan", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError(s.backend, "list", err)
	}
	return reports, nil
}

// Count returns the number of reports matching q.
func (s *sqlStore) Count(ctx context.Context, q *Query) (int64, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}

	where, args := s.buildWhereClause(q)
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs"+where, args...).Scan(&count); err != nil {
		return 0, NewStorageError(s.backend, "count", err)
	}
	return count, nil
}

// Prune deletes reports started before olderThan.
func (s *sqlStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM runs WHERE started_at < "+s.placeholder(1), olderThan.UnixNano(),
	)
	if err != nil {
		return 0, NewStorageError(s.backend, "prune", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, NewStorageError(s.backend, "prune", err)
	}
	return count, nil
}

// Trim deletes the oldest reports until at most keep remain.
func (s *sqlStore) Trim(ctx context.Context, keep int64) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM runs WHERE run_id NOT IN ("+
			"SELECT run_id FROM runs ORDER BY started_at DESC, run_id DESC LIMIT "+s.placeholder(1)+")",
		keep,
	)
	if err != nil {
		return 0, NewStorageError(s.backend, "trim", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, NewStorageError(s.backend, "trim", err)
	}
	return count, nil
}

// Ping checks the database connection.
func (s *sqlStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStorageError(s.backend, "ping", err)
	}
	return nil
}

// Close closes the database.
func (s *sqlStore) Close() error {
	if err := s.db.Close(); err != nil {
		return NewStorageError(s.backend, "close", err)
	}
	s.logger.Info("run store closed")
	return nil
}

// buildWhereClause builds a WHERE clause, including the keyword, from the
// query filters. It returns "" when no filter is set.
func (s *sqlStore) buildWhereClause(q *Query) (string, []any) {
	if q == nil {
		return "", nil
	}

	var conditions []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, cond+" "+s.placeholder(len(args)))
	}

	if q.SetName != "" {
		add("set_name =", q.SetName)
	}
	if q.Outcome != "" {
		add("outcome =", string(q.Outcome))
	}
	if !q.Since.IsZero() {
		add("started_at >=", q.Since.UnixNano())
	}
	if !q.Until.IsZero() {
		add("started_at <=", q.Until.UnixNano())
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
