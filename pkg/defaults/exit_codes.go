package defaults

// Exit codes for the CLI.
//
// Individual job and phase failures never change the exit status; only
// pre-flight validation and unexpected internal errors do.
const (
	ExitSuccess       = 0 // Run completed (possibly with job-level failures)
	ExitUserError     = 2 // Invalid arguments or failed pre-flight validation
	ExitInternalError = 4 // Unexpected internal error
)
