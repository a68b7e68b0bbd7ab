package task

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bkyoung/review-agent/internal/domain"
)

// DefaultTaskTimeout bounds a supervised run when no ceiling is configured.
const DefaultTaskTimeout = 20 * time.Minute

// SupervisorDeps captures the collaborators shared by all supervisions.
type SupervisorDeps struct {
	Logger     Logger
	Signals    *SignalRegistry
	Workspaces Workspaces
	Journal    Journal  // optional
	Redactor   Redactor // optional

	// Timeout is the per-task runtime ceiling. Zero means DefaultTaskTimeout.
	Timeout time.Duration
}

// Supervisor runs provider processes to completion or timeout and
// guarantees their transient resources are released exactly once.
type Supervisor struct {
	deps SupervisorDeps
}

// NewSupervisor wires the supervisor dependencies.
func NewSupervisor(deps SupervisorDeps) *Supervisor {
	if deps.Timeout <= 0 {
		deps.Timeout = DefaultTaskTimeout
	}
	return &Supervisor{deps: deps}
}

// scrub applies the optional redactor to one forwarded line.
func (s *Supervisor) scrub(line string) string {
	if s.deps.Redactor == nil {
		return line
	}
	return s.deps.Redactor.Redact(line)
}

// StartRequest describes one task handed to the supervisor.
type StartRequest struct {
	Task      domain.Task
	Provider  Provider
	Prompt    string
	Workspace string // empty when the task runs without one
}

// Supervision tracks one supervised process from spawn to cleanup.
//
// state is the current lifecycle position; outcome is the sticky
// terminal cause (completed, failed, or timed out) and stays empty when
// cleanup is forced by a host signal before the run resolves.
type Supervision struct {
	task      domain.Task
	provider  domain.ProviderIdentity
	workspace string
	command   string

	deps   SupervisorDeps
	handle ProcessHandle
	stdout *LineWriter
	stderr *LineWriter

	mu      sync.Mutex
	state   domain.TaskState
	outcome domain.TaskState
	timer   *time.Timer

	cleanupOnce sync.Once
	done        chan struct{}
}

// Start spawns the provider process for req and arms the release
// triggers: the timeout ceiling, the process watcher, and the host
// signal hook. It returns once the process is running; the caller never
// waits for completion here. On a spawn failure the workspace remains
// the caller's to discard.
func (s *Supervisor) Start(ctx context.Context, req StartRequest) (*Supervision, error) {
	sv := &Supervision{
		task:      req.Task,
		provider:  req.Provider.Name(),
		workspace: req.Workspace,
		command:   strings.Join(req.Provider.Command(), " "),
		deps:      s.deps,
		state:     domain.TaskStateSpawned,
		done:      make(chan struct{}),
	}
	sv.stdout = NewLineWriter(func(line string) {
		s.deps.Logger.LogInfo(context.Background(), "tool output", map[string]interface{}{
			"task_id": sv.task.ID,
			"stream":  "stdout",
			"line":    s.scrub(line),
		})
	})
	sv.stderr = NewLineWriter(func(line string) {
		s.deps.Logger.LogDebug(context.Background(), "tool output", map[string]interface{}{
			"task_id": sv.task.ID,
			"stream":  "stderr",
			"line":    s.scrub(line),
		})
	})

	handle, err := req.Provider.Execute(ctx, ExecutionRequest{
		Prompt:  req.Prompt,
		WorkDir: req.Workspace,
		Stdout:  sv.stdout,
		Stderr:  sv.stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("execute %s for task %s: %w", sv.provider, sv.task.ID, err)
	}
	sv.handle = handle

	sv.recordSpawn(ctx)
	s.deps.Logger.LogInfo(ctx, "task spawned", map[string]interface{}{
		"task_id":  sv.task.ID,
		"provider": string(sv.provider),
		"command":  sv.command,
		"pid":      handle.PID(),
		"timeout":  s.deps.Timeout.String(),
	})

	// The hook must be in place before any trigger can fire, so a
	// pre-registration host signal cannot strand a registered hook.
	s.deps.Signals.Register(sv.task.ID, sv.Cleanup)
	sv.mu.Lock()
	sv.timer = time.AfterFunc(s.deps.Timeout, sv.timeoutExceeded)
	if sv.state == domain.TaskStateSpawned {
		sv.state = domain.TaskStateRunning
	}
	sv.mu.Unlock()
	sv.journalState(domain.TaskStateRunning, "")
	go sv.watch()

	return sv, nil
}

// TaskID identifies the supervised task.
func (sv *Supervision) TaskID() string { return sv.task.ID }

// Provider identifies the provider that was actually spawned.
func (sv *Supervision) Provider() domain.ProviderIdentity { return sv.provider }

// PID reports the supervised process ID.
func (sv *Supervision) PID() int { return sv.handle.PID() }

// State reports the current lifecycle position.
func (sv *Supervision) State() domain.TaskState {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	return sv.state
}

// Outcome reports the terminal cause of the run. Empty until the run
// resolves, and permanently empty when a host signal forced cleanup of
// a still-running task.
func (sv *Supervision) Outcome() domain.TaskState {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	return sv.outcome
}

// Done is closed once cleanup has finished and the terminal state is
// observable. The webhook path ignores it; the one-off CLI run path and
// tests wait on it.
func (sv *Supervision) Done() <-chan struct{} { return sv.done }

// casOutcome records the terminal cause of the run. Only the first
// transition out of a live state wins; later attempts report false.
func (sv *Supervision) casOutcome(next domain.TaskState) bool {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.state != domain.TaskStateSpawned && sv.state != domain.TaskStateRunning {
		return false
	}
	sv.state = next
	sv.outcome = next
	return true
}

// watch resolves the run outcome when the process exits, then releases
// resources.
func (sv *Supervision) watch() {
	<-sv.handle.Done()
	sv.stdout.Flush()
	sv.stderr.Flush()

	if exitErr := sv.handle.ExitErr(); exitErr != nil {
		if sv.casOutcome(domain.TaskStateFailed) {
			sv.deps.Logger.LogError(context.Background(), "task failed", map[string]interface{}{
				"task_id":  sv.task.ID,
				"provider": string(sv.provider),
				"error":    exitErr.Error(),
			})
			sv.journalState(domain.TaskStateFailed, exitErr.Error())
		}
	} else if sv.casOutcome(domain.TaskStateCompleted) {
		sv.deps.Logger.LogInfo(context.Background(), "task completed", map[string]interface{}{
			"task_id":  sv.task.ID,
			"provider": string(sv.provider),
		})
		sv.journalState(domain.TaskStateCompleted, "")
	}

	sv.Cleanup()
}

// timeoutExceeded fires when the runtime ceiling elapses.
func (sv *Supervision) timeoutExceeded() {
	if sv.casOutcome(domain.TaskStateTimedOut) {
		sv.deps.Logger.LogWarning(context.Background(), "task timed out", map[string]interface{}{
			"task_id": sv.task.ID,
			"timeout": sv.deps.Timeout.String(),
		})
		sv.journalState(domain.TaskStateTimedOut, "runtime ceiling exceeded")
	}
	sv.Cleanup()
}

// Cleanup releases everything the supervision holds: it signals the
// child if still alive, removes the workspace, deregisters the signal
// hook, and stops the timer. Safe under concurrent invocation from any
// number of trigger paths; calls after the first are no-ops.
func (sv *Supervision) Cleanup() {
	sv.cleanupOnce.Do(sv.release)
}

func (sv *Supervision) release() {
	ctx := context.Background()

	if sv.handle.Alive() {
		if err := sv.handle.Signal(syscall.SIGTERM); err != nil {
			sv.deps.Logger.LogWarning(ctx, "terminate signal failed", map[string]interface{}{
				"task_id": sv.task.ID,
				"pid":     sv.handle.PID(),
				"error":   err.Error(),
			})
		}
	}

	if sv.workspace != "" {
		if err := sv.deps.Workspaces.Destroy(sv.workspace); err != nil {
			sv.deps.Logger.LogWarning(ctx, "workspace removal failed", map[string]interface{}{
				"task_id": sv.task.ID,
				"path":    sv.workspace,
				"error":   err.Error(),
			})
		}
	}

	sv.deps.Signals.Deregister(sv.task.ID)

	sv.mu.Lock()
	if sv.timer != nil {
		sv.timer.Stop()
	}
	sv.state = domain.TaskStateCleanedUp
	outcome := sv.outcome
	sv.mu.Unlock()

	sv.journalState(domain.TaskStateCleanedUp, string(outcome))
	sv.deps.Logger.LogInfo(ctx, "task cleaned up", map[string]interface{}{
		"task_id": sv.task.ID,
		"outcome": string(outcome),
	})
	close(sv.done)
}

// recordSpawn writes the task's journal row. Best-effort.
func (sv *Supervision) recordSpawn(ctx context.Context) {
	if sv.deps.Journal == nil {
		return
	}
	err := sv.deps.Journal.Record(ctx, JournalEntry{
		ID:         sv.task.ID,
		Kind:       string(sv.task.Kind),
		Repository: sv.task.Repository,
		Branch:     sv.task.Branch,
		Provider:   string(sv.provider),
		Detail:     sv.command,
		State:      string(domain.TaskStateSpawned),
		ReceivedAt: sv.task.ReceivedAt,
	})
	if err != nil {
		sv.deps.Logger.LogWarning(ctx, "journal write failed", map[string]interface{}{
			"task_id": sv.task.ID,
			"error":   err.Error(),
		})
	}
}

// journalState appends a state transition row. Best-effort.
func (sv *Supervision) journalState(state domain.TaskState, detail string) {
	if sv.deps.Journal == nil {
		return
	}
	ctx := context.Background()
	if err := sv.deps.Journal.UpdateState(ctx, sv.task.ID, state, detail); err != nil {
		sv.deps.Logger.LogWarning(ctx, "journal write failed", map[string]interface{}{
			"task_id": sv.task.ID,
			"state":   string(state),
			"error":   err.Error(),
		})
	}
}
