package formats

import "errors"

var (
	// ErrUnknownScanner is returned when no template is registered under a name.
	ErrUnknownScanner = errors.New("formats: unknown scanner")

	// ErrPlaceholderMismatch is returned when a template's substitution
	// sites and the supplied values disagree in number.
	ErrPlaceholderMismatch = errors.New("formats: placeholder count mismatch")

	// ErrInvalidFormats is returned for a formats file that does not follow
	// the {"scanners": [{"scanner": name, ...}]} schema.
	ErrInvalidFormats = errors.New("formats: invalid formats file")
)
