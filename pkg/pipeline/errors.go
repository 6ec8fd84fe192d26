package pipeline

import "errors"

var (
	// ErrPreflight wraps any input problem found before the first child
	// process starts.
	ErrPreflight = errors.New("pipeline: pre-flight check failed")

	// ErrToolMissing indicates a required scanner binary is not installed.
	ErrToolMissing = errors.New("pipeline: tool not found")

	// ErrSetup wraps failures preparing the results tree.
	ErrSetup = errors.New("pipeline: setup failed")
)
