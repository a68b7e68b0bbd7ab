package domain

import (
	"fmt"
	"time"
)

// ProviderIdentity selects which external AI CLI executes a task.
type ProviderIdentity string

const (
	ProviderClaude ProviderIdentity = "claude"
	ProviderGemini ProviderIdentity = "gemini"
	ProviderAuto   ProviderIdentity = "auto"
)

// ParseProviderIdentity validates a configured provider name.
func ParseProviderIdentity(s string) (ProviderIdentity, error) {
	switch ProviderIdentity(s) {
	case ProviderClaude, ProviderGemini, ProviderAuto:
		return ProviderIdentity(s), nil
	}
	return "", fmt.Errorf("unknown provider identity %q", s)
}

// TaskKind identifies the unit of work a webhook event maps to.
type TaskKind string

const (
	TaskKindReview  TaskKind = "review"
	TaskKindFix     TaskKind = "fix"
	TaskKindRespond TaskKind = "respond"
)

// ParseTaskKind validates a task kind supplied from outside the core.
func ParseTaskKind(s string) (TaskKind, error) {
	switch TaskKind(s) {
	case TaskKindReview, TaskKindFix, TaskKindRespond:
		return TaskKind(s), nil
	}
	return "", fmt.Errorf("unknown task kind %q", s)
}

// TaskState tracks a supervised task through its lifecycle.
// Transitions: Spawned -> Running -> {Completed, Failed, TimedOut} -> CleanedUp.
type TaskState string

const (
	TaskStateSpawned   TaskState = "spawned"
	TaskStateRunning   TaskState = "running"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
	TaskStateTimedOut  TaskState = "timed_out"
	TaskStateCleanedUp TaskState = "cleaned_up"
)

// Outcome reports whether the state is one of the post-running outcomes.
func (s TaskState) Outcome() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateTimedOut:
		return true
	}
	return false
}

// Task describes one webhook-triggered unit of work. Created fresh per event;
// all fields are immutable after construction.
type Task struct {
	ID         string
	Kind       TaskKind
	Repository string // owner/repo
	Branch     string
	Number     int // pull request or issue number
	Title      string
	Body       string
	Author     string
	Comment    string // triggering comment body for respond tasks
	ReceivedAt time.Time
}
