// Package logging configures the process-wide slog logger.
//
// Phase and job failures that the run survives are logged at LevelCritical,
// which renders as CRITICAL in the text output.
package logging

import (
	"context"
	"io"
	"log/slog"
)

// LevelCritical sits above slog.LevelError.
const LevelCritical = slog.Level(12)

// Options selects the log level. Verbose and Quiet are mutually exclusive;
// config validation enforces that before we get here.
type Options struct {
	Verbose bool
	Quiet   bool
}

// Level maps the flags to a level: -v debug, -q warn, otherwise info.
func (o Options) Level() slog.Level {
	switch {
	case o.Verbose:
		return slog.LevelDebug
	case o.Quiet:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// New returns a text logger writing to w.
func New(w io.Writer, opts Options) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       opts.Level(),
		ReplaceAttr: replaceLevel,
	}))
}

// Setup builds a logger with New and installs it as slog's default.
func Setup(w io.Writer, opts Options) *slog.Logger {
	l := New(w, opts)
	slog.SetDefault(l)
	return l
}

func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= LevelCritical {
			a.Value = slog.StringValue("CRITICAL")
		}
	}
	return a
}

// Critical logs msg at LevelCritical.
func Critical(l *slog.Logger, msg string, args ...any) {
	if l == nil {
		l = slog.Default()
	}
	l.Log(context.Background(), LevelCritical, msg, args...)
}
