package store

import (
	"context"
	"time"
)

// Store defines the persistence layer interface for the task journal.
type Store interface {
	// Task management
	CreateTask(ctx context.Context, task TaskRecord) error
	UpdateTaskState(ctx context.Context, taskID, state, detail string) error
	GetTask(ctx context.Context, taskID string) (TaskRecord, error)
	ListTasks(ctx context.Context, limit int) ([]TaskRecord, error)

	// Event history
	GetEventsByTask(ctx context.Context, taskID string) ([]TaskEvent, error)

	// Utility
	Close() error
}

// TaskRecord is the journal row for a single dispatched task.
type TaskRecord struct {
	TaskID     string
	Kind       string
	Repository string
	Branch     string
	Provider   string
	Command    string
	State      string
	ReceivedAt time.Time
	UpdatedAt  time.Time
}

// TaskEvent records one state transition of a task. Events are
// append-only; the task row always carries the latest state.
type TaskEvent struct {
	EventID   int
	TaskID    string
	State     string
	Detail    string
	Timestamp time.Time
}
