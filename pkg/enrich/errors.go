package enrich

import "errors"

var (
	// ErrBadEndpoint is returned for endpoints that are not "target:port".
	ErrBadEndpoint = errors.New("enrich: malformed endpoint")

	// ErrPartial is returned when an action failed for some endpoints.
	ErrPartial = errors.New("enrich: some endpoints failed")

	// ErrSkipped marks actions never started because the run was cancelled.
	ErrSkipped = errors.New("enrich: skipped")
)
