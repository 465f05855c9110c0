package source

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"mercator-hq/rulebook/pkg/ruleset"
)

const ruleSetYAML = "name: watched\nrules:\n  - text: IF a < 1 THEN x()\n"

func TestMemorySource(t *testing.T) {
	src := NewMemorySource(&ruleset.Set{Name: "one"})
	src.Add(&ruleset.Set{Name: "two"})

	sets, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(sets) != 2 || sets[0].Name != "one" || sets[1].Name != "two" {
		t.Errorf("Load() = %+v", sets)
	}

	sets[0] = nil
	again, _ := src.Load(context.Background())
	if again[0] == nil {
		t.Error("Load() exposed the internal slice")
	}
}

func TestMemorySource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMemorySource().Load(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestFileSource_Load(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), ruleSetYAML)

	src := NewFileSource(dir, nil, nil)
	sets, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(sets) != 1 || sets[0].Name != "watched" {
		t.Errorf("Load() = %+v", sets)
	}
	if src.Path() != dir {
		t.Errorf("Path() = %q, want %q", src.Path(), dir)
	}
}

func TestFileSource_Watch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeFile(t, path, ruleSetYAML)

	src := NewFileSource(path, nil, nil)

	changes := make(chan []*ruleset.Set, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- src.Watch(ctx, WatchOptions{Debounce: 20 * time.Millisecond}, func(sets []*ruleset.Set, err error) {
			if err == nil {
				changes <- sets
			}
		})
	}()

	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "name: changed\nrules:\n  - text: IF a < 2 THEN y()\n")

	select {
	case sets := <-changes:
		if len(sets) != 1 || sets[0].Name != "changed" {
			t.Errorf("reloaded sets = %+v", sets)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onChange not called after file modification")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Watch() did not return after cancel")
	}
}

func TestFileSource_WatchMissingPath(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "absent"), nil, nil)
	err := src.Watch(context.Background(), WatchOptions{}, func([]*ruleset.Set, error) {})
	if err == nil {
		t.Fatal("Watch() on a missing path succeeded")
	}
}

// startTreeWatcher runs a watcher on root and returns the channel its
// batches are delivered on.
func startTreeWatcher(t *testing.T, root string, debounce time.Duration) <-chan []string {
	t.Helper()

	w, err := newTreeWatcher(root, WatchOptions{Debounce: debounce}, slog.Default())
	if err != nil {
		t.Fatalf("newTreeWatcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.Cleanup(func() {
		cancel()
		<-done
	})

	batches := make(chan []string, 10)
	go func() {
		defer close(done)
		_ = w.run(ctx, func(paths []string) { batches <- paths })
	}()
	time.Sleep(50 * time.Millisecond)
	return batches
}

func TestTreeWatcher_CoalescesBursts(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yml")
	writeFile(t, a, ruleSetYAML)

	batches := startTreeWatcher(t, dir, 200*time.Millisecond)

	for i := range 5 {
		writeFile(t, a, ruleSetYAML+"# edit "+string(rune('0'+i))+"\n")
		time.Sleep(20 * time.Millisecond)
	}
	writeFile(t, b, ruleSetYAML)

	select {
	case paths := <-batches:
		if !slices.Equal(paths, []string{a, b}) {
			t.Errorf("batch = %v, want [%s %s]", paths, a, b)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no batch delivered")
	}

	select {
	case extra := <-batches:
		t.Errorf("burst delivered a second batch %v", extra)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestTreeWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "rules.yaml"), ruleSetYAML)

	batches := startTreeWatcher(t, dir, 20*time.Millisecond)
	writeFile(t, filepath.Join(dir, "notes.txt"), "x")
	writeFile(t, filepath.Join(dir, ".hidden.yaml"), "x")

	select {
	case paths := <-batches:
		t.Errorf("batch %v triggered by non rule-set files", paths)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestTreeWatcher_FollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	batches := startTreeWatcher(t, dir, 20*time.Millisecond)

	sub := filepath.Join(dir, "team")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	path := filepath.Join(sub, "fraud.yaml")
	writeFile(t, path, ruleSetYAML)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case paths := <-batches:
			if slices.Contains(paths, path) {
				return
			}
		case <-deadline:
			t.Fatal("change in a new directory was not reported")
		}
	}
}

func TestTreeWatcher_Relevant(t *testing.T) {
	dir := t.TempDir()
	single := filepath.Join(dir, "only.yaml")

	tests := []struct {
		name   string
		single string
		event  fsnotify.Event
		want   bool
	}{
		{"yaml write", "", fsnotify.Event{Name: "/r/a.yaml", Op: fsnotify.Write}, true},
		{"upper case extension", "", fsnotify.Event{Name: "/r/a.JSON", Op: fsnotify.Create}, true},
		{"chmod only", "", fsnotify.Event{Name: "/r/a.yaml", Op: fsnotify.Chmod}, false},
		{"other extension", "", fsnotify.Event{Name: "/r/a.txt", Op: fsnotify.Write}, false},
		{"hidden file", "", fsnotify.Event{Name: "/r/.a.yaml", Op: fsnotify.Write}, false},
		{"single file match", single, fsnotify.Event{Name: single, Op: fsnotify.Rename}, true},
		{"single file sibling", single, fsnotify.Event{Name: filepath.Join(dir, "b.yaml"), Op: fsnotify.Write}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &treeWatcher{single: tt.single, opts: WatchOptions{}.withDefaults()}
			if got := w.relevant(tt.event); got != tt.want {
				t.Errorf("relevant(%v) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
