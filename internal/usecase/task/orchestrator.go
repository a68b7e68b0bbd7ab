// Package task implements the AI process orchestration core: provider
// selection with fallback, workspace preparation, prompt construction,
// and supervised execution of the chosen provider CLI.
package task

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/bkyoung/review-agent/internal/domain"
)

// ExecutionRequest describes one invocation of an AI CLI tool.
type ExecutionRequest struct {
	// Prompt is delivered on the tool's stdin, never as an argument.
	Prompt string

	// WorkDir is the working directory for the tool process. Empty means
	// the current directory.
	WorkDir string

	// Stdout and Stderr receive tool output as it is produced. exec.Cmd
	// needs its sinks attached before Start, so the supervisor injects
	// line-forwarding writers here at spawn time.
	Stdout io.Writer
	Stderr io.Writer
}

// ProcessHandle is the supervisor's view of one running tool process.
type ProcessHandle interface {
	// PID reports the OS process ID.
	PID() int

	// Done is closed once the process has exited and its output has been
	// fully written to the request sinks.
	Done() <-chan struct{}

	// ExitErr reports the wait result. Valid only after Done is closed.
	ExitErr() error

	// Alive reports whether the process has not yet exited.
	Alive() bool

	// Signal delivers sig to the process group.
	Signal(sig os.Signal) error
}

// Provider defines the outbound port for AI CLI tools.
type Provider interface {
	// Name identifies the provider.
	Name() domain.ProviderIdentity

	// Command reports the argv the provider spawns, for logging and the
	// journal. The prompt is never part of it.
	Command() []string

	// Available reports whether the tool answers a bounded version probe.
	Available(ctx context.Context) bool

	// Execute spawns the tool and returns once the process is running.
	// The returned handle is owned by the caller.
	Execute(ctx context.Context, req ExecutionRequest) (ProcessHandle, error)
}

// Workspaces defines the outbound port for per-task working directories.
type Workspaces interface {
	// Create allocates a unique directory for the task under the
	// configured base and returns its path.
	Create(taskID string) (string, error)

	// Populate clones repository and checks out branch inside path.
	Populate(ctx context.Context, path, repository, branch string) error

	// Destroy removes path recursively. A missing path is not an error.
	Destroy(path string) error
}

// JournalEntry is one task row in the audit journal.
type JournalEntry struct {
	ID         string
	Kind       string
	Repository string
	Branch     string
	Provider   string
	Detail     string
	State      string
	ReceivedAt time.Time
}

// Journal defines the outbound port for the append-only task audit
// trail. Writes are best-effort: callers log failures and carry on.
type Journal interface {
	Record(ctx context.Context, entry JournalEntry) error
	UpdateState(ctx context.Context, taskID string, state domain.TaskState, detail string) error
}

// Redactor scrubs secrets from forwarded tool output before it reaches
// the log stream. A supervised tool can echo anything it reads in the
// workspace, including the token in the clone URL.
type Redactor interface {
	Redact(input string) string
}

// OrchestratorDeps captures the collaborators for task orchestration.
type OrchestratorDeps struct {
	Selector   *Selector
	Workspaces Workspaces
	Supervisor *Supervisor
	Prompts    *PromptBuilder
	Logger     Logger

	// DefaultProvider is used when a task does not name one. Empty means
	// automatic selection.
	DefaultProvider domain.ProviderIdentity

	// FallbackEnabled permits substituting the other provider when the
	// requested one fails its availability probe.
	FallbackEnabled bool
}

// Orchestrator composes workspace preparation, provider selection, and
// supervised execution for one unit of work.
type Orchestrator struct {
	deps OrchestratorDeps
}

// NewOrchestrator wires the orchestrator dependencies.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	return &Orchestrator{deps: deps}
}

// Launch prepares a workspace for the task, resolves a provider, and
// hands the spawned process to the supervisor. It returns as soon as
// the process is running; completion is observable via the returned
// supervision. On any pre-spawn failure the workspace is destroyed
// before the error is returned.
func (o *Orchestrator) Launch(ctx context.Context, t domain.Task, identity domain.ProviderIdentity) (*Supervision, error) {
	if identity == "" {
		identity = o.deps.DefaultProvider
	}
	if identity == "" {
		identity = domain.ProviderAuto
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.ReceivedAt.IsZero() {
		t.ReceivedAt = time.Now()
	}

	o.deps.Logger.LogInfo(ctx, "task accepted", map[string]interface{}{
		"task_id":    t.ID,
		"kind":       string(t.Kind),
		"repository": t.Repository,
		"branch":     t.Branch,
		"provider":   string(identity),
	})

	workspace, err := o.prepareWorkspace(ctx, t)
	if err != nil {
		return nil, err
	}

	provider, err := o.deps.Selector.Resolve(ctx, identity, o.deps.FallbackEnabled)
	if err != nil {
		o.discardWorkspace(ctx, t.ID, workspace)
		return nil, fmt.Errorf("resolve provider for task %s: %w", t.ID, err)
	}

	prompt, err := o.deps.Prompts.Build(t)
	if err != nil {
		o.discardWorkspace(ctx, t.ID, workspace)
		return nil, fmt.Errorf("build prompt for task %s: %w", t.ID, err)
	}

	supervision, err := o.deps.Supervisor.Start(ctx, StartRequest{
		Task:      t,
		Provider:  provider,
		Prompt:    prompt,
		Workspace: workspace,
	})
	if err != nil {
		o.discardWorkspace(ctx, t.ID, workspace)
		return nil, err
	}

	return supervision, nil
}

// prepareWorkspace creates and populates a working directory when the
// task names a repository. Tasks without one run in the current
// directory, which is the useful behavior for one-off CLI runs.
func (o *Orchestrator) prepareWorkspace(ctx context.Context, t domain.Task) (string, error) {
	if t.Repository == "" {
		return "", nil
	}

	path, err := o.deps.Workspaces.Create(t.ID)
	if err != nil {
		return "", fmt.Errorf("create workspace for task %s: %w", t.ID, err)
	}

	if err := o.deps.Workspaces.Populate(ctx, path, t.Repository, t.Branch); err != nil {
		o.discardWorkspace(ctx, t.ID, path)
		return "", fmt.Errorf("populate workspace for task %s: %w", t.ID, err)
	}

	return path, nil
}

// discardWorkspace tears down a workspace after a pre-spawn failure.
// Once the supervisor accepts the task, cleanup ownership moves to it.
func (o *Orchestrator) discardWorkspace(ctx context.Context, taskID, path string) {
	if path == "" {
		return
	}
	if err := o.deps.Workspaces.Destroy(path); err != nil {
		o.deps.Logger.LogWarning(ctx, "workspace removal failed", map[string]interface{}{
			"task_id": taskID,
			"path":    path,
			"error":   err.Error(),
		})
	}
}
