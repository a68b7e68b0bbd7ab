package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bkyoung/review-agent/internal/store"
	_ "github.com/mattn/go-sqlite3"
)

// Store implements the store.Store interface using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite store at the given path.
// Use ":memory:" for in-memory database (useful for testing).
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}

	if err := s.createSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return s, nil
}

// createSchema creates all tables and indexes if they don't exist.
func (s *Store) createSchema() error {
	schema := `
	-- One row per dispatched task; state mirrors the latest transition
	CREATE TABLE IF NOT EXISTS tasks (
		task_id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		repository TEXT,
		branch TEXT,
		provider TEXT NOT NULL,
		command TEXT,
		state TEXT NOT NULL,
		received_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	-- Append-only state transition history
	CREATE TABLE IF NOT EXISTS task_events (
		event_id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL,
		state TEXT NOT NULL,
		detail TEXT,
		timestamp INTEGER NOT NULL,
		FOREIGN KEY (task_id) REFERENCES tasks(task_id) ON DELETE CASCADE
	);

	-- Indexes for performance
	CREATE INDEX IF NOT EXISTS idx_tasks_received ON tasks(received_at DESC);
	CREATE INDEX IF NOT EXISTS idx_events_task ON task_events(task_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateTask stores a new task row along with its initial state event.
func (s *Store) CreateTask(ctx context.Context, task store.TaskRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	received := task.ReceivedAt.Unix()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tasks (task_id, kind, repository, branch, provider, command, state, received_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		task.TaskID,
		task.Kind,
		task.Repository,
		task.Branch,
		task.Provider,
		task.Command,
		task.State,
		received,
		received,
	); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO task_events (task_id, state, detail, timestamp)
		VALUES (?, ?, ?, ?)
	`,
		task.TaskID,
		task.State,
		"",
		received,
	); err != nil {
		return fmt.Errorf("failed to record initial event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpdateTaskState advances a task's state and appends the transition
// to the event history.
func (s *Store) UpdateTaskState(ctx context.Context, taskID, state, detail string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()

	result, err := tx.ExecContext(ctx, `UPDATE tasks SET state = ?, updated_at = ? WHERE task_id = ?`,
		state, now, taskID)
	if err != nil {
		return fmt.Errorf("failed to update task state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("task not found: %s", taskID)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO task_events (task_id, state, detail, timestamp)
		VALUES (?, ?, ?, ?)
	`,
		taskID, state, detail, now,
	); err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetTask retrieves a task by ID.
func (s *Store) GetTask(ctx context.Context, taskID string) (store.TaskRecord, error) {
	query := `
		SELECT task_id, kind, repository, branch, provider, command, state, received_at, updated_at
		FROM tasks
		WHERE task_id = ?
	`

	var task store.TaskRecord
	var receivedAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, taskID).Scan(
		&task.TaskID,
		&task.Kind,
		&task.Repository,
		&task.Branch,
		&task.Provider,
		&task.Command,
		&task.State,
		&receivedAt,
		&updatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return store.TaskRecord{}, fmt.Errorf("task not found: %s", taskID)
		}
		return store.TaskRecord{}, fmt.Errorf("failed to get task: %w", err)
	}

	task.ReceivedAt = time.Unix(receivedAt, 0)
	task.UpdatedAt = time.Unix(updatedAt, 0)
	return task, nil
}

// ListTasks retrieves the most recent tasks, limited by the given count.
func (s *Store) ListTasks(ctx context.Context, limit int) ([]store.TaskRecord, error) {
	query := `
		SELECT task_id, kind, repository, branch, provider, command, state, received_at, updated_at
		FROM tasks
		ORDER BY received_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []store.TaskRecord
	for rows.Next() {
		var task store.TaskRecord
		var receivedAt, updatedAt int64

		if err := rows.Scan(
			&task.TaskID,
			&task.Kind,
			&task.Repository,
			&task.Branch,
			&task.Provider,
			&task.Command,
			&task.State,
			&receivedAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		task.ReceivedAt = time.Unix(receivedAt, 0)
		task.UpdatedAt = time.Unix(updatedAt, 0)
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// GetEventsByTask retrieves the state transition history for a task,
// oldest first.
func (s *Store) GetEventsByTask(ctx context.Context, taskID string) ([]store.TaskEvent, error) {
	query := `
		SELECT event_id, task_id, state, detail, timestamp
		FROM task_events
		WHERE task_id = ?
		ORDER BY event_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events by task: %w", err)
	}
	defer rows.Close()

	var events []store.TaskEvent
	for rows.Next() {
		var event store.TaskEvent
		var timestamp int64

		if err := rows.Scan(
			&event.EventID,
			&event.TaskID,
			&event.State,
			&event.Detail,
			&timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		event.Timestamp = time.Unix(timestamp, 0)
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
