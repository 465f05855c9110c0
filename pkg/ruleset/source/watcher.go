package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchOptions tune how FileSource.Watch reacts to file-system events.
type WatchOptions struct {
	// Debounce is the quiet period after the last relevant event before
	// the changed files are reported together. Zero means 100ms.
	Debounce time.Duration

	// Extensions lists the rule-set file extensions. Empty means the
	// loader's .yaml, .yml and .json.
	Extensions []string
}

// DefaultWatchOptions returns the options used when none are given.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		Debounce:   100 * time.Millisecond,
		Extensions: []string{".yaml", ".yml", ".json"},
	}
}

func (o WatchOptions) withDefaults() WatchOptions {
	def := DefaultWatchOptions()
	if o.Debounce <= 0 {
		o.Debounce = def.Debounce
	}
	if len(o.Extensions) == 0 {
		o.Extensions = def.Extensions
	}
	return o
}

// treeWatcher follows rule-set files under a root, which is a directory
// tree or a single file, and reports each burst of changes once.
type treeWatcher struct {
	root   string
	single string // cleaned root when it is a file
	opts   WatchOptions
	logger *slog.Logger
	fsw    *fsnotify.Watcher
}

func newTreeWatcher(root string, opts WatchOptions, logger *slog.Logger) (*treeWatcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot watch %s: %w", root, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &treeWatcher{root: root, opts: opts.withDefaults(), logger: logger, fsw: fsw}
	if info.IsDir() {
		err = w.addTree(root)
	} else {
		// Editors often replace a file on save, so a single file is
		// followed through its directory.
		w.single = filepath.Clean(root)
		err = fsw.Add(filepath.Dir(root))
	}
	if err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree watches dir and every non-hidden directory below it.
func (w *treeWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && hidden(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch directory %q: %w", path, err)
		}
		w.logger.Debug("watching directory", "path", path)
		return nil
	})
}

// run blocks until ctx is done, calling onBatch with the sorted, distinct
// paths changed in each burst. Callbacks run on the watching goroutine, so
// they never overlap.
func (w *treeWatcher) run(ctx context.Context, onBatch func(paths []string)) error {
	defer func() { _ = w.fsw.Close() }()

	timer := time.NewTimer(w.opts.Debounce)
	timer.Stop()
	pending := make(map[string]struct{})

	w.logger.Info("file watcher started",
		"path", w.root,
		"debounce_ms", w.opts.Debounce.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			w.logger.Info("file watcher stopped")
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if event.Has(fsnotify.Create) && w.single == "" {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !hidden(event.Name) {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
					continue
				}
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("file event", "path", event.Name, "op", event.Op.String())
			pending[event.Name] = struct{}{}
			timer.Reset(w.opts.Debounce)

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			slices.Sort(paths)
			onBatch(paths)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

// relevant reports whether event touches a rule-set file.
func (w *treeWatcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if w.single != "" {
		return filepath.Clean(event.Name) == w.single
	}
	if hidden(event.Name) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	return slices.ContainsFunc(w.opts.Extensions, func(e string) bool {
		return strings.EqualFold(e, ext)
	})
}

func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
