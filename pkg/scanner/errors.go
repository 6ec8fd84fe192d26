package scanner

import "errors"

var (
	// ErrMalformedJob is returned for a job that is not "target:port".
	ErrMalformedJob = errors.New("scanner: malformed job")

	// ErrScanFailed wraps a backend process that exited with an error.
	ErrScanFailed = errors.New("scanner: scan failed")
)
