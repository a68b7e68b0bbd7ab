package domain

import (
	"errors"
	"fmt"
)

// ErrNoProviderAvailable indicates provider selection exhausted every option.
var ErrNoProviderAvailable = errors.New("no provider available")

// ErrAllModelsFailed indicates the multi-model fallback exhausted every model.
var ErrAllModelsFailed = errors.New("all models failed")

// ErrInvalidWorkspacePath indicates a synthesized or supplied workspace path
// does not remain inside the configured base directory.
var ErrInvalidWorkspacePath = errors.New("invalid workspace path")

// SpawnError reports an OS-level failure to start an external tool. It is the
// only execution failure surfaced synchronously to the orchestrator; anything
// after a successful spawn is observed through the task lifecycle instead.
type SpawnError struct {
	Tool string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Tool, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ValidationError reports input rejected before any external command is built.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
