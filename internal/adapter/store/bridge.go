package store

import (
	"context"

	"github.com/bkyoung/review-agent/internal/domain"
	"github.com/bkyoung/review-agent/internal/store"
	"github.com/bkyoung/review-agent/internal/usecase/task"
)

// Bridge adapts store.Store to the task.Journal interface.
// This avoids circular dependencies between packages.
type Bridge struct {
	store store.Store
}

// NewBridge creates a new store adapter.
func NewBridge(s store.Store) *Bridge {
	return &Bridge{store: s}
}

// Record converts and saves a journal entry as a task row.
func (b *Bridge) Record(ctx context.Context, entry task.JournalEntry) error {
	record := store.TaskRecord{
		TaskID:     entry.ID,
		Kind:       entry.Kind,
		Repository: entry.Repository,
		Branch:     entry.Branch,
		Provider:   entry.Provider,
		Command:    entry.Detail,
		State:      entry.State,
		ReceivedAt: entry.ReceivedAt,
	}
	return b.store.CreateTask(ctx, record)
}

// UpdateState advances the task's journal state.
func (b *Bridge) UpdateState(ctx context.Context, taskID string, state domain.TaskState, detail string) error {
	return b.store.UpdateTaskState(ctx, taskID, string(state), detail)
}

// Close closes the underlying store.
func (b *Bridge) Close() error {
	return b.store.Close()
}

var _ task.Journal = (*Bridge)(nil)
