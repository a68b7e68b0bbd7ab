package task

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/review-agent/internal/domain"
)

type orchestratorFixture struct {
	logger     *recordingLogger
	signals    *SignalRegistry
	workspaces *fakeWorkspaces
	journal    *fakeJournal
	claude     *fakeProvider
	gemini     *fakeProvider
	orch       *Orchestrator
}

func newOrchestratorFixture(t *testing.T, mutate ...func(*OrchestratorDeps)) *orchestratorFixture {
	t.Helper()
	f := &orchestratorFixture{
		logger:     &recordingLogger{},
		signals:    NewSignalRegistry(syscall.SIGUSR2),
		workspaces: &fakeWorkspaces{},
		journal:    &fakeJournal{},
		claude:     &fakeProvider{name: domain.ProviderClaude, available: true, handle: newFakeHandle()},
		gemini:     &fakeProvider{name: domain.ProviderGemini, available: true, handle: newFakeHandle()},
	}
	t.Cleanup(f.signals.Close)

	prompts, err := NewPromptBuilder("")
	require.NoError(t, err)

	deps := OrchestratorDeps{
		Selector:   NewSelector(f.logger, f.claude, f.gemini),
		Workspaces: f.workspaces,
		Supervisor: NewSupervisor(SupervisorDeps{
			Logger:     f.logger,
			Signals:    f.signals,
			Workspaces: f.workspaces,
			Journal:    f.journal,
			Timeout:    time.Minute,
		}),
		Prompts:         prompts,
		Logger:          f.logger,
		DefaultProvider: domain.ProviderAuto,
		FallbackEnabled: true,
	}
	for _, m := range mutate {
		m(&deps)
	}
	f.orch = NewOrchestrator(deps)
	return f
}

func TestLaunchRunsReviewTask(t *testing.T) {
	f := newOrchestratorFixture(t)

	sv, err := f.orch.Launch(context.Background(), domain.Task{
		Kind:       domain.TaskKindReview,
		Repository: "acme/widgets",
		Branch:     "feature/retry",
		Number:     12,
		Title:      "Add retry logic",
	}, domain.ProviderAuto)
	require.NoError(t, err)

	assert.NotEmpty(t, sv.TaskID(), "an ID is assigned when the event carries none")
	assert.Equal(t, domain.ProviderClaude, sv.Provider())

	require.Len(t, f.workspaces.created, 1)
	require.Len(t, f.workspaces.populated, 1)
	assert.Contains(t, f.workspaces.populated[0], "acme/widgets feature/retry")

	req := f.claude.lastRequest(t)
	assert.Equal(t, f.workspaces.created[0], req.WorkDir)
	assert.Contains(t, req.Prompt, "acme/widgets")
	assert.Contains(t, req.Prompt, "#12")

	f.claude.handle.exit(nil)
	waitCleanup(t, sv)

	assert.Equal(t, domain.TaskStateCompleted, sv.Outcome())
	assert.Equal(t, f.workspaces.created, f.workspaces.destroyed)
}

func TestLaunchKeepsProvidedTaskID(t *testing.T) {
	f := newOrchestratorFixture(t)

	sv, err := f.orch.Launch(context.Background(), domain.Task{
		ID:   "delivery-1234",
		Kind: domain.TaskKindRespond,
	}, domain.ProviderAuto)
	require.NoError(t, err)
	assert.Equal(t, "delivery-1234", sv.TaskID())

	f.claude.handle.exit(nil)
	waitCleanup(t, sv)
}

func TestLaunchUsesConfiguredDefaultProvider(t *testing.T) {
	f := newOrchestratorFixture(t, func(d *OrchestratorDeps) {
		d.DefaultProvider = domain.ProviderGemini
		d.FallbackEnabled = false
	})

	sv, err := f.orch.Launch(context.Background(), domain.Task{
		Kind:       domain.TaskKindReview,
		Repository: "acme/widgets",
		Branch:     "main",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderGemini, sv.Provider())
	assert.Equal(t, 0, f.gemini.probeCount(), "explicit identity without fallback is not probed")

	f.gemini.handle.exit(nil)
	waitCleanup(t, sv)
}

func TestLaunchNoProviderAvailable(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.claude.available = false
	f.gemini.available = false

	_, err := f.orch.Launch(context.Background(), domain.Task{
		Kind:       domain.TaskKindReview,
		Repository: "acme/widgets",
		Branch:     "main",
	}, domain.ProviderAuto)
	require.ErrorIs(t, err, domain.ErrNoProviderAvailable)

	require.Len(t, f.workspaces.created, 1)
	assert.Equal(t, f.workspaces.created, f.workspaces.destroyed, "workspace is torn down when selection fails")
}

func TestLaunchDestroysWorkspaceOnPopulateFailure(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.workspaces.populateErr = errors.New("clone failed")

	_, err := f.orch.Launch(context.Background(), domain.Task{
		Kind:       domain.TaskKindReview,
		Repository: "acme/widgets",
		Branch:     "main",
	}, domain.ProviderAuto)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "populate workspace")
	assert.Equal(t, f.workspaces.created, f.workspaces.destroyed)
}

func TestLaunchDestroysWorkspaceOnSpawnFailure(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.claude.execErr = &domain.SpawnError{Tool: "claude", Err: errors.New("executable vanished")}

	_, err := f.orch.Launch(context.Background(), domain.Task{
		Kind:       domain.TaskKindReview,
		Repository: "acme/widgets",
		Branch:     "main",
	}, domain.ProviderClaude)
	require.Error(t, err)

	var spawnErr *domain.SpawnError
	assert.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, f.workspaces.created, f.workspaces.destroyed)
	assert.Equal(t, 0, f.signals.Len())
}

func TestLaunchDestroysWorkspaceOnPromptFailure(t *testing.T) {
	f := newOrchestratorFixture(t)

	_, err := f.orch.Launch(context.Background(), domain.Task{
		Kind:       "deploy",
		Repository: "acme/widgets",
		Branch:     "main",
	}, domain.ProviderAuto)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build prompt")
	assert.Equal(t, f.workspaces.created, f.workspaces.destroyed)
}

func TestLaunchWithoutRepositorySkipsWorkspace(t *testing.T) {
	f := newOrchestratorFixture(t)

	sv, err := f.orch.Launch(context.Background(), domain.Task{
		Kind:    domain.TaskKindRespond,
		Comment: "what does this loop do?",
	}, domain.ProviderAuto)
	require.NoError(t, err)

	assert.Empty(t, f.workspaces.created)
	assert.Empty(t, f.claude.lastRequest(t).WorkDir)

	f.claude.handle.exit(nil)
	waitCleanup(t, sv)
	assert.Empty(t, f.workspaces.destroyed)
}
