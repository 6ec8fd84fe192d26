package runner

import "errors"

// Sentinel errors for runner failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrCancelled marks an item that was never launched because the
	// context ended first.
	ErrCancelled = errors.New("runner: cancelled before launch")

	// ErrTaskPanic wraps a panic recovered from a task.
	ErrTaskPanic = errors.New("runner: task panicked")
)
