package task

import "context"

// Logger provides structured logging for task orchestration. The
// interface is deliberately narrow; adapters satisfy it with whatever
// backend they carry.
type Logger interface {
	// LogDebug logs verbose diagnostics such as forwarded tool stderr.
	LogDebug(ctx context.Context, message string, fields map[string]interface{})

	// LogInfo logs lifecycle events and forwarded tool output.
	LogInfo(ctx context.Context, message string, fields map[string]interface{})

	// LogWarning logs recoverable problems, such as a cleanup step that
	// failed without affecting the task outcome.
	LogWarning(ctx context.Context, message string, fields map[string]interface{})

	// LogError logs failures that decide the task outcome.
	LogError(ctx context.Context, message string, fields map[string]interface{})
}
