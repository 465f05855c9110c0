package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"mercator-hq/rulebook/pkg/config"
	"mercator-hq/rulebook/pkg/ruleset"
)

// createRuleRepo initializes a repository at dir with one committed rule set.
func createRuleRepo(t *testing.T, dir string) *gogit.Repository {
	t.Helper()

	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("failed to init repo: %v", err)
	}
	commitFile(t, repo, dir, "rules/pricing.yaml", "name: pricing\nrules:\n  - text: IF PSR < 3 THEN approve()\n")
	return repo
}

// commitFile writes name under dir and commits it.
func commitFile(t *testing.T, repo *gogit.Repository, dir, name, content string) {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, content)

	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	if _, err := worktree.Add(name); err != nil {
		t.Fatalf("failed to add %s: %v", name, err)
	}
	_, err = worktree.Commit("update "+name, &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
}

func gitConfig(t *testing.T, repository string) *config.GitConfig {
	t.Helper()
	return &config.GitConfig{
		Repository:   repository,
		Branch:       "master",
		Path:         "rules",
		LocalPath:    filepath.Join(t.TempDir(), "clone"),
		PollInterval: 20 * time.Millisecond,
		Timeout:      10 * time.Second,
		Auth:         config.GitAuthConfig{Type: "none"},
	}
}

func TestNewGitSource(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.GitConfig
		wantErr bool
	}{
		{name: "nil config", cfg: nil, wantErr: true},
		{
			name:    "empty repository",
			cfg:     &config.GitConfig{Branch: "main", LocalPath: "/tmp/x"},
			wantErr: true,
		},
		{
			name:    "empty branch",
			cfg:     &config.GitConfig{Repository: "https://example.com/rules.git", LocalPath: "/tmp/x"},
			wantErr: true,
		},
		{
			name: "token auth without token",
			cfg: &config.GitConfig{
				Repository: "https://example.com/rules.git",
				Branch:     "main",
				LocalPath:  "/tmp/x",
				Auth:       config.GitAuthConfig{Type: "token"},
			},
			wantErr: true,
		},
		{
			name: "valid",
			cfg: &config.GitConfig{
				Repository: "https://example.com/rules.git",
				Branch:     "main",
				Path:       "rules/",
				LocalPath:  "/tmp/rulebook-test",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewGitSource(tt.cfg, nil, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewGitSource() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && src.RulesPath() != filepath.Join("/tmp/rulebook-test", "rules") {
				t.Errorf("RulesPath() = %q", src.RulesPath())
			}
		})
	}
}

func TestGitSource_LoadAndSync(t *testing.T) {
	originDir := t.TempDir()
	origin := createRuleRepo(t, originDir)

	src, err := NewGitSource(gitConfig(t, originDir), nil, nil)
	if err != nil {
		t.Fatalf("NewGitSource() failed: %v", err)
	}

	ctx := context.Background()
	sets, err := src.Load(ctx)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(sets) != 1 || sets[0].Name != "pricing" {
		t.Fatalf("Load() = %+v", sets)
	}
	first := src.Head()
	if len(first) != 40 {
		t.Fatalf("Head() = %q, want a commit SHA", first)
	}

	changed, err := src.Sync(ctx)
	if err != nil || changed {
		t.Errorf("Sync() with no new commits = %v, %v", changed, err)
	}

	commitFile(t, origin, originDir, "README.md", "rules\n")
	changed, err = src.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if changed {
		t.Error("Sync() reported a rule change for a README commit")
	}
	if src.Head() == first {
		t.Error("Head() did not move after pull")
	}

	commitFile(t, origin, originDir, "rules/fraud.yaml", "name: fraud\nrules:\n  - text: IF amount > 100 THEN hold()\n")
	changed, err = src.Sync(ctx)
	if err != nil || !changed {
		t.Fatalf("Sync() after rule commit = %v, %v", changed, err)
	}

	sets, err = src.Load(ctx)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(sets) != 2 {
		t.Errorf("Load() returned %d sets, want 2", len(sets))
	}
}

func TestGitSource_ReusesExistingClone(t *testing.T) {
	originDir := t.TempDir()
	createRuleRepo(t, originDir)
	cfg := gitConfig(t, originDir)

	first, err := NewGitSource(cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := first.Load(context.Background()); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	second, err := NewGitSource(cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	sets, err := second.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() on existing clone failed: %v", err)
	}
	if len(sets) != 1 || second.Head() != first.Head() {
		t.Errorf("existing clone: sets = %d, head %q vs %q", len(sets), second.Head(), first.Head())
	}
}

func TestGitSource_Watch(t *testing.T) {
	originDir := t.TempDir()
	origin := createRuleRepo(t, originDir)

	src, err := NewGitSource(gitConfig(t, originDir), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := src.Load(context.Background()); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan int, 10)
	done := make(chan error, 1)
	go func() {
		done <- src.Watch(ctx, func(sets []*ruleset.Set, err error) {
			if err == nil {
				changes <- len(sets)
			}
		})
	}()

	commitFile(t, origin, originDir, "rules/fraud.yaml", "name: fraud\nrules:\n  - text: IF amount > 100 THEN hold()\n")

	select {
	case n := <-changes:
		if n != 2 {
			t.Errorf("onChange got %d sets, want 2", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch() returned %v", err)
	}
}

func TestTouchesRules(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		files []string
		want  bool
	}{
		{"root path yaml", "", []string{"pricing.yaml"}, true},
		{"root path readme", "", []string{"README.md"}, false},
		{"under path", "rules", []string{"rules/a.yml"}, true},
		{"trailing slash", "rules/", []string{"rules/nested/a.json"}, true},
		{"outside path", "rules", []string{"other/a.yaml"}, false},
		{"prefix is not a directory", "rules", []string{"rulesets/a.yaml"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &GitSource{config: &config.GitConfig{Path: tt.path}}
			if got := src.touchesRules(tt.files); got != tt.want {
				t.Errorf("touchesRules(%v) = %v, want %v", tt.files, got, tt.want)
			}
		})
	}
}

func TestAuthMethod(t *testing.T) {
	dir := t.TempDir()
	openKey := filepath.Join(dir, "id_open")
	writeFile(t, openKey, "not a key")
	if err := os.Chmod(openKey, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		cfg     config.GitAuthConfig
		wantNil bool
		wantErr bool
	}{
		{name: "none", cfg: config.GitAuthConfig{Type: "none"}, wantNil: true},
		{name: "empty type", cfg: config.GitAuthConfig{}, wantNil: true},
		{name: "token", cfg: config.GitAuthConfig{Type: "token", Token: "secret"}},
		{name: "empty token", cfg: config.GitAuthConfig{Type: "token"}, wantErr: true},
		{name: "ssh without key", cfg: config.GitAuthConfig{Type: "ssh"}, wantErr: true},
		{name: "ssh missing key", cfg: config.GitAuthConfig{Type: "ssh", SSHKeyPath: filepath.Join(dir, "missing")}, wantErr: true},
		{name: "ssh key too open", cfg: config.GitAuthConfig{Type: "ssh", SSHKeyPath: openKey}, wantErr: true},
		{name: "unknown type", cfg: config.GitAuthConfig{Type: "kerberos"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, err := authMethod(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("authMethod() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (auth == nil) != tt.wantNil {
				t.Errorf("authMethod() = %v, wantNil %v", auth, tt.wantNil)
			}
			if tt.cfg.Type == "token" {
				basic, ok := auth.(*http.BasicAuth)
				if !ok || basic.Password != "secret" {
					t.Errorf("token auth = %#v", auth)
				}
			}
		})
	}
}
