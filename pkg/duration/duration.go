// Package duration provides canonical time constants for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for all time-based configuration.
//
// Usage:
//
//	ticker := time.NewTicker(duration.ScanPoll)
//	ctx, cancel := context.WithTimeout(ctx, duration.BrowserPage)
//
// DO NOT use hardcoded time.Duration values like `30 * time.Second` anywhere.
// Instead, reference the appropriate constant from this package.
package duration

import "time"

// ============================================================================
// SCAN TIMING
// ============================================================================

const (
	// ScanPoll is how often a worker checks whether its scan child exited (1s)
	ScanPoll = 1 * time.Second

	// ScanTimeout bounds a single primary or secondary scan (30min)
	ScanTimeout = 30 * time.Minute

	// SweepTimeout bounds the bulk sweep (6h)
	SweepTimeout = 6 * time.Hour

	// ToolTimeout bounds one external enrichment tool invocation (15min)
	ToolTimeout = 15 * time.Minute
)

// ============================================================================
// HTTP CLIENT TIMEOUTS
// ============================================================================

const (
	// HTTPProbing is for page pulls and favicon fetches (10s)
	HTTPProbing = 10 * time.Second
)

// ============================================================================
// UI/STREAMING INTERVALS
// ============================================================================

const (
	// StreamFast is for real-time updates (1s)
	StreamFast = 1 * time.Second

	// RenderTick is the interactive progress redraw interval (100ms)
	RenderTick = 100 * time.Millisecond
)

// ============================================================================
// BROWSER/HEADLESS TIMEOUTS
// ============================================================================

const (
	// BrowserPage is for page load timeout (30s)
	BrowserPage = 30 * time.Second

	// BrowserIdle is the settle time after navigation before capture (2s)
	BrowserIdle = 2 * time.Second
)

// ============================================================================
// RETRY / SHUTDOWN
// ============================================================================

const (
	// RetryFast is the first backoff step for page pulls (1s)
	RetryFast = 1 * time.Second

	// RetryMax caps a single backoff delay (10s)
	RetryMax = 10 * time.Second

	// ShutdownGrace bounds metrics server and tracer shutdown (5s)
	ShutdownGrace = 5 * time.Second

	// ServerTimeout is the metrics server read/write timeout (10s)
	ServerTimeout = 10 * time.Second
)
