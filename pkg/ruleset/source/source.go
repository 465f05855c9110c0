// Package source provides rule sets to executors: from memory for tests and
// embedding, or from the file system with change notification.
package source

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"mercator-hq/rulebook/pkg/ruleset"
)

// Source loads rule sets.
type Source interface {
	Load(ctx context.Context) ([]*ruleset.Set, error)
}

// MemorySource serves rule sets held in memory.
type MemorySource struct {
	mu   sync.RWMutex
	sets []*ruleset.Set
}

// NewMemorySource creates a source serving sets.
func NewMemorySource(sets ...*ruleset.Set) *MemorySource {
	return &MemorySource{sets: sets}
}

// Add appends a set.
func (s *MemorySource) Add(set *ruleset.Set) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets = append(s.sets, set)
}

// Load returns a copy of the held sets.
func (s *MemorySource) Load(ctx context.Context) ([]*ruleset.Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ruleset.Set, len(s.sets))
	copy(out, s.sets)
	return out, nil
}

// FileSource loads rule sets from a file or directory.
type FileSource struct {
	path   string
	loader *ruleset.Loader
	logger *slog.Logger
}

// NewFileSource creates a source for path. A nil loader uses the defaults.
func NewFileSource(path string, loader *ruleset.Loader, logger *slog.Logger) *FileSource {
	if loader == nil {
		loader = ruleset.NewLoader(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{path: path, loader: loader, logger: logger}
}

// Path returns the watched path.
func (s *FileSource) Path() string {
	return s.path
}

// Load reads the rule sets under the source path.
func (s *FileSource) Load(ctx context.Context) ([]*ruleset.Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.loader.Load(s.path)
}

// Watch calls onChange with freshly loaded sets after every burst of
// changes to rule-set files under the source path. It blocks until ctx is
// cancelled.
func (s *FileSource) Watch(ctx context.Context, opts WatchOptions, onChange func([]*ruleset.Set, error)) error {
	w, err := newTreeWatcher(s.path, opts, s.logger)
	if err != nil {
		return err
	}

	return w.run(ctx, func(paths []string) {
		s.logger.Info("reloading rule sets", "changed", paths)
		sets, err := s.Load(ctx)
		if errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			s.logger.Error("rule set reload failed", "error", err)
		}
		onChange(sets, err)
	})
}
