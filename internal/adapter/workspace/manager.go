// Package workspace manages per-task working directories: unique
// directories under one fixed base, populated by cloning a validated
// repository, and removed during task cleanup. Repository and branch
// names are validated before any git argv is built, and every path is
// checked against the base before it is created or removed.
package workspace

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	goGit "github.com/go-git/go-git/v5"

	"github.com/bkyoung/review-agent/internal/domain"
	"github.com/bkyoung/review-agent/internal/usecase/task"
)

// Options configures the manager.
type Options struct {
	// BaseDir is the fixed parent directory for all workspaces. Empty
	// means a "review-agent" directory under the OS temp dir.
	BaseDir string

	// GitHubBaseURL prefixes clone URLs. Empty means https://github.com.
	GitHubBaseURL string

	// Token, when set, authenticates clones. It is embedded in the clone
	// URL only and is scrubbed from any error text git produces.
	Token string
}

// Manager creates, populates, and destroys task workspaces.
type Manager struct {
	base    string
	baseURL string
	token   string
}

// NewManager resolves the base directory and returns a manager rooted
// there.
func NewManager(opts Options) (*Manager, error) {
	base := opts.BaseDir
	if base == "" {
		base = filepath.Join(os.TempDir(), "review-agent")
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace base: %w", err)
	}

	baseURL := strings.TrimSuffix(opts.GitHubBaseURL, "/")
	if baseURL == "" {
		baseURL = "https://github.com"
	}

	return &Manager{base: abs, baseURL: baseURL, token: opts.Token}, nil
}

// Base reports the resolved base directory.
func (m *Manager) Base() string {
	return m.base
}

// Create allocates a unique directory for the task under the base. The
// directory name embeds the creation instant, so concurrent tasks with
// the same ID cannot collide. A task ID carrying separators or dot-dot
// sequences fails with domain.ErrInvalidWorkspacePath before any path
// is built, and the joined path is checked against the base as well.
func (m *Manager) Create(taskID string) (string, error) {
	if strings.ContainsAny(taskID, `/\`) || strings.Contains(taskID, "..") {
		return "", fmt.Errorf("%w: task id %q", domain.ErrInvalidWorkspacePath, taskID)
	}

	name := fmt.Sprintf("task-%s-%d", taskID, time.Now().UnixNano())
	path := filepath.Join(m.base, name)
	if err := domain.EnsureWithinBase(m.base, path); err != nil {
		return "", err
	}

	if err := os.MkdirAll(m.base, 0o755); err != nil {
		return "", fmt.Errorf("create workspace base: %w", err)
	}
	if err := os.Mkdir(path, 0o700); err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	return path, nil
}

// Populate clones the repository into path and checks out branch. Both
// names are validated before any argv is built; an empty branch keeps
// the clone's default. The checkout is verified against the actual HEAD
// afterwards.
func (m *Manager) Populate(ctx context.Context, path, repository, branch string) error {
	if err := domain.ValidateRepository(repository); err != nil {
		return err
	}
	if branch != "" {
		if err := domain.ValidateBranch(branch); err != nil {
			return err
		}
	}
	if err := domain.EnsureWithinBase(m.base, path); err != nil {
		return err
	}

	if _, err := m.runGit(ctx, "clone", m.cloneURL(repository), path); err != nil {
		return err
	}
	if branch == "" {
		return nil
	}
	if _, err := m.runGit(ctx, "-C", path, "checkout", branch); err != nil {
		return err
	}
	return m.verifyBranch(path, branch)
}

// Destroy removes a workspace tree. The path is re-checked against the
// base first, so even a tampered value can never remove anything
// outside it. A path that no longer exists is not an error.
func (m *Manager) Destroy(path string) error {
	if err := domain.EnsureWithinBase(m.base, path); err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return nil
}

// verifyBranch confirms the clone's HEAD actually points at the
// requested branch.
func (m *Manager) verifyBranch(path, branch string) error {
	repo, err := goGit.PlainOpenWithOptions(path, &goGit.PlainOpenOptions{})
	if err != nil {
		return fmt.Errorf("open cloned repo: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("resolve HEAD: %w", err)
	}
	if !head.Name().IsBranch() || head.Name().Short() != branch {
		return fmt.Errorf("checkout verification: HEAD is %q, want branch %q", head.Name().Short(), branch)
	}
	return nil
}

func (m *Manager) cloneURL(repository string) string {
	if m.token != "" {
		if host, ok := strings.CutPrefix(m.baseURL, "https://"); ok {
			return fmt.Sprintf("https://x-access-token:%s@%s/%s.git", m.token, host, repository)
		}
	}
	return fmt.Sprintf("%s/%s.git", m.baseURL, repository)
}

// runGit executes one git operation. Errors carry the git verb and
// scrubbed stderr, never the full argv: clone URLs may embed the token.
func (m *Manager) runGit(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		verb := gitVerb(args)
		if ctx.Err() != nil {
			return "", fmt.Errorf("git %s: %w", verb, ctx.Err())
		}
		if stderr.Len() > 0 {
			err = fmt.Errorf("%w: %s", err, m.scrub(strings.TrimSpace(stderr.String())))
		}
		return "", fmt.Errorf("git %s: %w", verb, err)
	}
	return stdout.String(), nil
}

// gitVerb returns the subcommand, skipping any leading -C pair.
func gitVerb(args []string) string {
	for i := 0; i < len(args); i++ {
		if args[i] == "-C" {
			i++
			continue
		}
		return args[i]
	}
	return "git"
}

func (m *Manager) scrub(s string) string {
	if m.token == "" {
		return s
	}
	return strings.ReplaceAll(s, m.token, "[REDACTED]")
}

var _ task.Workspaces = (*Manager)(nil)
