package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"mercator-hq/rulebook/pkg/config"
	"mercator-hq/rulebook/pkg/ruleset"
)

// GitSource loads rule sets from a directory inside a Git repository. The
// repository is cloned on first use and pulled on every Load.
type GitSource struct {
	config *config.GitConfig
	loader *ruleset.Loader
	logger *slog.Logger
	auth   transport.AuthMethod

	mu   sync.Mutex
	repo *gogit.Repository
	head string
}

// NewGitSource creates a source for the repository in cfg. Authentication is
// resolved here so a bad key or missing token fails before any network call.
func NewGitSource(cfg *config.GitConfig, loader *ruleset.Loader, logger *slog.Logger) (*GitSource, error) {
	if cfg == nil {
		return nil, errors.New("git config is nil")
	}
	if cfg.Repository == "" {
		return nil, errors.New("repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		return nil, errors.New("branch cannot be empty")
	}
	if cfg.LocalPath == "" {
		return nil, errors.New("local path cannot be empty")
	}

	auth, err := authMethod(&cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("git auth: %w", err)
	}

	if loader == nil {
		loader = ruleset.NewLoader(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &GitSource{
		config: cfg,
		loader: loader,
		logger: logger.With("repository", cfg.Repository, "branch", cfg.Branch),
		auth:   auth,
	}, nil
}

// RulesPath returns the directory inside the local clone holding the rule
// sets.
func (s *GitSource) RulesPath() string {
	return filepath.Join(s.config.LocalPath, s.config.Path)
}

// Head returns the commit the rule sets were last loaded from, or "" before
// the first sync.
func (s *GitSource) Head() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.head
}

// Load syncs the clone and reads the rule sets under the configured path.
func (s *GitSource) Load(ctx context.Context) ([]*ruleset.Set, error) {
	if _, err := s.Sync(ctx); err != nil {
		return nil, err
	}
	return s.loader.Load(s.RulesPath())
}

// Sync clones the repository, or pulls when a clone already exists. It
// reports whether a rule-set file under the configured path changed.
func (s *GitSource) Sync(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	if s.repo == nil {
		if err := s.open(ctx); err != nil {
			return false, err
		}
		return true, nil
	}

	from := s.head
	to, err := s.pull(ctx)
	if err != nil {
		return false, err
	}
	if from == to {
		return false, nil
	}

	files, err := s.changedFiles(from, to)
	if err != nil {
		return false, fmt.Errorf("failed to get changed files: %w", err)
	}
	s.head = to

	changed := s.touchesRules(files)
	s.logger.Info("rule repository updated",
		"from_sha", short(from),
		"to_sha", short(to),
		"changed_files", len(files),
		"rules_changed", changed,
	)
	return changed, nil
}

// Watch polls the remote every PollInterval and calls onChange with freshly
// loaded sets when a pull changes a rule-set file. It blocks until ctx is
// cancelled.
func (s *GitSource) Watch(ctx context.Context, onChange func([]*ruleset.Set, error)) error {
	interval := s.config.PollInterval
	if interval <= 0 {
		interval = config.DefaultGitPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("git watcher started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("git watcher stopped (context cancelled)")
			return nil
		case <-ticker.C:
			changed, err := s.Sync(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("error checking for changes", "error", err)
				continue
			}
			if !changed {
				continue
			}
			sets, err := s.loader.Load(s.RulesPath())
			onChange(sets, err)
		}
	}
}

// open reuses an existing clone at LocalPath or clones the repository.
func (s *GitSource) open(ctx context.Context) error {
	start := time.Now()

	if _, err := os.Stat(filepath.Join(s.config.LocalPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(s.config.LocalPath)
		if err != nil {
			return fmt.Errorf("failed to open existing clone: %w", err)
		}
		s.repo = repo
		// An existing clone may be stale.
		head, err := s.pull(ctx)
		if err != nil {
			s.repo = nil
			return err
		}
		s.head = head
		s.logger.Info("opened rule repository", "sha", short(head), "path", s.config.LocalPath)
		return nil
	}

	if err := os.MkdirAll(s.config.LocalPath, 0o755); err != nil {
		return fmt.Errorf("failed to create clone directory: %w", err)
	}

	repo, err := gogit.PlainCloneContext(ctx, s.config.LocalPath, false, &gogit.CloneOptions{
		URL:           s.config.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(s.config.Branch),
		SingleBranch:  true,
		Depth:         s.config.Depth,
		Auth:          s.auth,
	})
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}
	s.repo = repo

	head, err := s.headSHA()
	if err != nil {
		return err
	}
	s.head = head
	s.logger.Info("cloned rule repository",
		"sha", short(head),
		"path", s.config.LocalPath,
		"duration", time.Since(start),
	)
	return nil
}

// pull fast-forwards the clone and returns the new HEAD.
func (s *GitSource) pull(ctx context.Context) (string, error) {
	worktree, err := s.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}

	err = worktree.PullContext(ctx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(s.config.Branch),
		SingleBranch:  true,
		Auth:          s.auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return "", fmt.Errorf("failed to pull: %w", err)
	}
	return s.headSHA()
}

func (s *GitSource) headSHA() (string, error) {
	ref, err := s.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// changedFiles lists the paths that differ between two commits.
func (s *GitSource) changedFiles(fromSHA, toSHA string) ([]string, error) {
	fromCommit, err := s.repo.CommitObject(plumbing.NewHash(fromSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get from commit: %w", err)
	}
	toCommit, err := s.repo.CommitObject(plumbing.NewHash(toSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get to commit: %w", err)
	}

	fromTree, err := fromCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get from tree: %w", err)
	}
	toTree, err := toCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get to tree: %w", err)
	}

	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees: %w", err)
	}

	files := make([]string, 0, len(changes))
	for _, change := range changes {
		if change.To.Name != "" {
			files = append(files, change.To.Name)
		} else if change.From.Name != "" {
			files = append(files, change.From.Name)
		}
	}
	return files, nil
}

// touchesRules reports whether any of files is a rule-set file under the
// configured path.
func (s *GitSource) touchesRules(files []string) bool {
	prefix := strings.Trim(filepath.ToSlash(filepath.Clean(s.config.Path)), "/")
	if prefix == "." {
		prefix = ""
	}
	for _, f := range files {
		if prefix != "" && f != prefix && !strings.HasPrefix(f, prefix+"/") {
			continue
		}
		switch strings.ToLower(filepath.Ext(f)) {
		case ".yaml", ".yml", ".json":
			return true
		}
	}
	return false
}

// authMethod builds the transport authentication for cfg. Public
// repositories need none.
func authMethod(cfg *config.GitAuthConfig) (transport.AuthMethod, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil

	case "token":
		if cfg.Token == "" {
			return nil, errors.New("token auth requires non-empty token")
		}
		// Any username works with token auth.
		return &http.BasicAuth{Username: "git", Password: cfg.Token}, nil

	case "ssh":
		if cfg.SSHKeyPath == "" {
			return nil, errors.New("ssh auth requires ssh_key_path")
		}
		info, err := os.Stat(cfg.SSHKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to access SSH key file: %w", err)
		}
		if mode := info.Mode().Perm(); mode&0o077 != 0 {
			return nil, fmt.Errorf("SSH key file permissions too open (%o), should be 0600", mode)
		}
		auth, err := ssh.NewPublicKeysFromFile("git", cfg.SSHKeyPath, cfg.SSHKeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key: %w", err)
		}
		return auth, nil

	default:
		return nil, fmt.Errorf("unknown auth type: %s", cfg.Type)
	}
}

func short(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
