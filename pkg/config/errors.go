package config

import "errors"

// Sentinel errors for configuration failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrInvalidConfig indicates a flag value is malformed or conflicts
	// with another flag.
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrMissingRequired indicates a required argument was not provided.
	ErrMissingRequired = errors.New("config: missing required field")

	// ErrMissingWordlist indicates the gobuster wordlist is not a readable
	// regular file.
	ErrMissingWordlist = errors.New("config: wordlist not found")
)
