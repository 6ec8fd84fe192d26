// Package defaults provides canonical default values for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for runtime configuration defaults.
//
// Usage:
//
//	cfg.Concurrency = defaults.ScanConcurrency
//	path := filepath.Join(cfg.ResultsDir, defaults.DirNmapRegular)
//
// DO NOT use hardcoded values like `Concurrency: 20` anywhere.
// Instead, reference the appropriate constant from this package.
package defaults

import "fmt"

// Version is the current portsweep version
const Version = "0.4.0"

// ToolName is used for service names, user agents and metric prefixes
const ToolName = "portsweep"

// UserAgent returns the User-Agent sent by enrichment HTTP requests
func UserAgent() string {
	return fmt.Sprintf("Mozilla/5.0 (compatible; %s/%s)", ToolName, Version)
}

// ============================================================================
// CONCURRENCY SETTINGS
// ============================================================================

const (
	// ScanConcurrency is the default number of concurrent primary scans (20)
	ScanConcurrency = 20

	// ConcurrencyLow is for browser and HTTP enrichment fan-out (5)
	ConcurrencyLow = 5

	// ConcurrencyMinimal is for strictly sequential operations (1)
	ConcurrencyMinimal = 1
)

// ============================================================================
// BULK SWEEP SETTINGS
// ============================================================================

const (
	// MassRate is the default bulk sweep packet rate (20000 pps)
	MassRate = 20000

	// MassPorts is the default bulk sweep port spec (all TCP ports)
	MassPorts = "1-65535"
)

// ============================================================================
// PORT BOUNDS
// ============================================================================

const (
	// PortMin is the lowest valid port number
	PortMin = 1

	// PortMax is the highest valid port number
	PortMax = 65535
)

// ============================================================================
// RESULTS TREE
// ============================================================================
//
// All paths are relative to the results root (default "results").
// ============================================================================

const (
	// ResultsDir is the default results root
	ResultsDir = "results"

	// DirMasscan holds the bulk sweep target file and its output
	DirMasscan = "masscan"

	// DirNmapRegular holds primary scan XML artifacts
	DirNmapRegular = "nmap/regular"

	// DirNmapExtra holds secondary (NSE follow-up) artifacts
	DirNmapExtra = "nmap/extra"

	// DirNmapHTTP is the root of HTML reports and web enrichment output
	DirNmapHTTP = "nmap_http"

	// DirScreenshots holds screenshot PNGs
	DirScreenshots = "nmap_http/screenshots"

	// DirPages holds raw HTML page pulls
	DirPages = "nmap_http/html"

	// DirGobuster holds directory brute-force output
	DirGobuster = "nmap_http/gobuster"

	// DirNikto holds nikto output
	DirNikto = "nmap_http/nikto"

	// TargetFile is the bulk sweep target list, overwritten each run
	TargetFile = "masscan/mass_ips.txt"

	// TimestampLayout is the minute-resolution layout embedded in artifact names
	TimestampLayout = "2006-01-02_15-04"
)

// ============================================================================
// BUFFER SIZES
// ============================================================================

const (
	// BufferMedium is for page pulls (1MB)
	BufferMedium = 1024 * 1024

	// BufferSmall is for favicons (256KB)
	BufferSmall = 256 * 1024
)
