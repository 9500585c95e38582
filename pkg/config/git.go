package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// GitSource serves gateway configuration out of a git repository. The
// repository is cloned once and pulled on an interval; when HEAD moves,
// the configured file is re-read and handed to the reload callback.
type GitSource struct {
	config    GitSourceConfig
	localPath string
	logger    *slog.Logger

	mu   sync.Mutex
	repo *gogit.Repository
}

// NewGitSource creates a git configuration source.
func NewGitSource(cfg GitSourceConfig, logger *slog.Logger) (*GitSource, error) {
	if cfg.Repository == "" {
		return nil, fmt.Errorf("repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		return nil, fmt.Errorf("branch cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	localPath := cfg.LocalPath
	if localPath == "" {
		localPath = filepath.Join(os.TempDir(), "meridian-config")
	}

	return &GitSource{
		config:    cfg,
		localPath: localPath,
		logger:    logger,
	}, nil
}

// Sync clones the repository on first call and pulls afterwards. It
// returns true when HEAD moved, meaning the config file may have changed.
func (g *GitSource) Sync(ctx context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	opCtx := ctx
	if g.config.PollTimeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, g.config.PollTimeout)
		defer cancel()
	}

	if g.repo == nil {
		if err := g.cloneOrOpen(opCtx); err != nil {
			return false, err
		}
		return true, nil
	}

	ref, err := g.repo.Head()
	if err != nil {
		return false, fmt.Errorf("failed to get HEAD: %w", err)
	}
	before := ref.Hash()

	worktree, err := g.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w", err)
	}

	auth, err := g.auth()
	if err != nil {
		return false, err
	}

	err = worktree.PullContext(opCtx, &gogit.PullOptions{
		RemoteName: "origin",
		Auth:       auth,
	})
	if err != nil && err != gogit.NoErrAlreadyUpToDate {
		return false, fmt.Errorf("failed to pull: %w", err)
	}

	newRef, err := g.repo.Head()
	if err != nil {
		return false, fmt.Errorf("failed to get HEAD after pull: %w", err)
	}

	return newRef.Hash() != before, nil
}

// cloneOrOpen opens an existing checkout or clones a fresh one.
func (g *GitSource) cloneOrOpen(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(g.localPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(g.localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing checkout: %w", err)
		}
		g.repo = repo
		g.logger.Info("opened existing config checkout", "path", g.localPath)
		return nil
	}

	if err := os.MkdirAll(g.localPath, 0o755); err != nil {
		return fmt.Errorf("failed to create checkout directory: %w", err)
	}

	auth, err := g.auth()
	if err != nil {
		return err
	}

	repo, err := gogit.PlainCloneContext(ctx, g.localPath, false, &gogit.CloneOptions{
		URL:           g.config.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(g.config.Branch),
		SingleBranch:  true,
		Auth:          auth,
	})
	if err != nil {
		return fmt.Errorf("failed to clone config repository: %w", err)
	}

	g.repo = repo
	g.logger.Info("cloned config repository",
		"repository", g.config.Repository,
		"branch", g.config.Branch,
		"path", g.localPath,
	)
	return nil
}

// ConfigPath returns the path of the configuration file inside the
// checkout.
func (g *GitSource) ConfigPath() string {
	return filepath.Join(g.localPath, g.config.Path)
}

// Head returns the current HEAD commit SHA, for readiness reporting.
func (g *GitSource) Head() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.repo == nil {
		return "", fmt.Errorf("repository not initialized, call Sync first")
	}
	ref, err := g.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// Poll pulls the repository on the configured interval and invokes
// onChange whenever HEAD moves. It blocks until the context is cancelled.
func (g *GitSource) Poll(ctx context.Context, onChange func() error) {
	ticker := time.NewTicker(g.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("config git polling stopped")
			return

		case <-ticker.C:
			changed, err := g.Sync(ctx)
			if err != nil {
				g.logger.Error("config git sync failed", "error", err)
				continue
			}
			if !changed {
				continue
			}

			g.logger.Info("config repository changed, reloading")
			if err := onChange(); err != nil {
				g.logger.Error("configuration reload failed", "error", err)
			}
		}
	}
}

// auth builds the git transport auth method from configuration. Token
// values support the same "env:NAME" indirection as provider credentials.
func (g *GitSource) auth() (transport.AuthMethod, error) {
	switch g.config.Auth.Type {
	case "", "none":
		return nil, nil

	case "token":
		token, err := ResolveCredential(g.config.Auth.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve git token: %w", err)
		}
		if token == "" {
			return nil, fmt.Errorf("git token cannot be empty")
		}
		// Username is ignored for token auth.
		return &githttp.BasicAuth{Username: "git", Password: token}, nil

	default:
		return nil, fmt.Errorf("unsupported git auth type %q", g.config.Auth.Type)
	}
}
