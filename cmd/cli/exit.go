package main

import (
	"fmt"
	"io"

	"github.com/portsweep/portsweep/pkg/config"
	"github.com/portsweep/portsweep/pkg/defaults"
	"github.com/portsweep/portsweep/pkg/ui"
)

// exitWithError prints a formatted error message and returns code for the
// caller to exit with.
func exitWithError(code int, format string, args ...any) int {
	ui.PrintError(fmt.Sprintf(format, args...))
	return code
}

// exitWithUsage prints an error message followed by the flag summary and
// returns the user-error exit code.
func exitWithUsage(w io.Writer, msg string) int {
	ui.PrintError(msg)
	fmt.Fprintln(w)
	config.Usage(w)
	return defaults.ExitUserError
}
