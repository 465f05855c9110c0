package runstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"mercator-hq/rulebook/pkg/ruleset"
)

// MemoryStore keeps reports in memory. Reports are stored in their encoded
// form so callers can neither mutate stored reports nor observe fields the
// database backends would drop.
type MemoryStore struct {
	mu         sync.RWMutex
	records    map[string]memoryRecord
	maxRecords int
	closed     bool
}

type memoryRecord struct {
	startedAt time.Time
	runID     string
	data      []byte
}

// NewMemoryStore creates an in-memory store holding at most maxRecords
// reports; the oldest are evicted first. Zero means unlimited.
func NewMemoryStore(maxRecords int) *MemoryStore {
	return &MemoryStore{
		records:    make(map[string]memoryRecord),
		maxRecords: maxRecords,
	}
}

// Save stores a copy of report.
func (s *MemoryStore) Save(ctx context.Context, report *ruleset.Report) error {
	if err := validateReport(report); err != nil {
		return err
	}
	data, err := encodeReport(report)
	if err != nil {
		return NewStorageError("memory", "save", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewStorageError("memory", "save", ErrClosed)
	}
	s.records[report.RunID] = memoryRecord{
		startedAt: report.StartedAt,
		runID:     report.RunID,
		data:      data,
	}
	if s.maxRecords > 0 && len(s.records) > s.maxRecords {
		s.trimLocked(int64(s.maxRecords))
	}
	return nil
}

// Get returns a copy of the report for runID.
func (s *MemoryStore) Get(ctx context.Context, runID string) (*ruleset.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, NewStorageError("memory", "get", ErrClosed)
	}
	rec, ok := s.records[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	report, err := decodeReport(rec.data)
	if err != nil {
		return nil, NewStorageError("memory", "get", err)
	}
	return report, nil
}

// List returns copies of the reports matching q.
func (s *MemoryStore) List(ctx context.Context, q *Query) ([]*ruleset.Report, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	matched, err := s.match("list", q)
	if err != nil {
		return nil, err
	}

	offset := 0
	if q != nil {
		offset = q.Offset
	}
	if offset >= len(matched) {
		return []*ruleset.Report{}, nil
	}
	end := offset + q.limit()
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

// Count returns the number of reports matching q.
func (s *MemoryStore) Count(ctx context.Context, q *Query) (int64, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	matched, err := s.match("count", q)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// match decodes and sorts every report passing the filters in q.
func (s *MemoryStore) match(op string, q *Query) ([]*ruleset.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, NewStorageError("memory", op, ErrClosed)
	}

	results := []*ruleset.Report{}
	for _, rec := range s.sortedLocked(q != nil && q.Ascending) {
		report, err := decodeReport(rec.data)
		if err != nil {
			return nil, NewStorageError("memory", op, err)
		}
		if q.matches(report) {
			results = append(results, report)
		}
	}
	return results, nil
}

// Prune deletes reports started before olderThan.
func (s *MemoryStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, NewStorageError("memory", "prune", ErrClosed)
	}
	var deleted int64
	for id, rec := range s.records {
		if rec.startedAt.Before(olderThan) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Trim deletes the oldest reports until at most keep remain.
func (s *MemoryStore) Trim(ctx context.Context, keep int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, NewStorageError("memory", "trim", ErrClosed)
	}
	return s.trimLocked(keep), nil
}

func (s *MemoryStore) trimLocked(keep int64) int64 {
	if keep <= 0 || int64(len(s.records)) <= keep {
		return 0
	}
	var deleted int64
	for _, rec := range s.sortedLocked(false)[keep:] {
		delete(s.records, rec.runID)
		deleted++
	}
	return deleted
}

// sortedLocked orders records by start time, newest first unless
// ascending. Run IDs break ties the same way the SQL backends do.
func (s *MemoryStore) sortedLocked(ascending bool) []memoryRecord {
	recs := make([]memoryRecord, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if ascending {
			a, b = b, a
		}
		if !a.startedAt.Equal(b.startedAt) {
			return a.startedAt.After(b.startedAt)
		}
		return a.runID > b.runID
	})
	return recs
}

// Ping reports whether the store is open.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return NewStorageError("memory", "ping", ErrClosed)
	}
	return nil
}

// Close discards all reports.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.records = nil
	return nil
}

func encodeReport(report *ruleset.Report) ([]byte, error) {
	return json.Marshal(report)
}

func decodeReport(data []byte) (*ruleset.Report, error) {
	var report ruleset.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
