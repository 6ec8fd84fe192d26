// Package config parses and validates the portsweep command line.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/portsweep/portsweep/pkg/defaults"
	"github.com/portsweep/portsweep/pkg/portspec"
)

// Config holds all CLI configuration options
type Config struct {
	// Input
	IPs string // Address spec or file (positional)

	// Logging
	Verbose bool // Debug logging
	Quiet   bool // Warnings and above only
	NoColor bool // Disable colored output

	// Bulk sweep
	MassRate  int    // Packets per second (default: 20000)
	MassPorts string // Port spec (default: 1-65535)
	SkipMass  bool   // Skip the sweep; jobs are targets x ports

	// Primary scans
	Concurrency  int    // Scans in flight (default: 20)
	NoExtraScans bool   // Disable secondary NSE probes
	NmapPath     string // Scan backend binary

	// Enrichment
	Screenshot bool   // Capture screenshots of web endpoints
	ChromePath string // Browser binary for screenshots
	PagePulls  bool   // Save raw HTML, titles and favicon hashes
	Wordlist   string // Enables gobuster with this wordlist
	Nikto      bool   // Run nikto

	// Output
	FormatsFile string // Command templates (.json/.yaml); empty uses built-ins
	ResultsDir  string // Results tree root
	PDF         bool   // Also write a PDF summary

	// Observability
	MetricsAddr  string // Prometheus listen address
	OTelEndpoint string // OTLP gRPC endpoint
}

func newFlagSet(cfg *Config) *flag.FlagSet {
	fs := flag.NewFlagSet(defaults.ToolName, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// === LOGGING ===
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Debug logging")
	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose (alias)")
	fs.BoolVar(&cfg.Quiet, "quiet", false, "Only warnings and errors")
	fs.BoolVar(&cfg.Quiet, "q", false, "Quiet (alias)")
	fs.BoolVar(&cfg.NoColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&cfg.NoColor, "nc", false, "No color (alias)")

	// === BULK SWEEP ===
	fs.IntVar(&cfg.MassRate, "mass-rate", defaults.MassRate, "Bulk sweep packet rate")
	fs.IntVar(&cfg.MassRate, "mR", defaults.MassRate, "Mass rate (alias)")
	fs.StringVar(&cfg.MassPorts, "mass-ports", defaults.MassPorts, "Ports to sweep (e.g. 22,80,8000-8100)")
	fs.StringVar(&cfg.MassPorts, "mP", defaults.MassPorts, "Mass ports (alias)")
	fs.BoolVar(&cfg.SkipMass, "skip-mass", false, "Skip the bulk sweep and scan every target on every port")
	fs.BoolVar(&cfg.SkipMass, "sM", false, "Skip mass (alias)")

	// === PRIMARY SCANS ===
	fs.IntVar(&cfg.Concurrency, "nmap-threads", defaults.ScanConcurrency, "Concurrent primary scans")
	fs.IntVar(&cfg.Concurrency, "nT", defaults.ScanConcurrency, "Nmap threads (alias)")
	fs.BoolVar(&cfg.NoExtraScans, "no-extra-scans", false, "Disable secondary NSE probes")
	fs.BoolVar(&cfg.NoExtraScans, "nE", false, "No extra scans (alias)")
	fs.StringVar(&cfg.NmapPath, "nmap-path", "nmap", "Scan backend binary")

	// === ENRICHMENT ===
	fs.BoolVar(&cfg.Screenshot, "screenshot", false, "Screenshot discovered web endpoints")
	fs.BoolVar(&cfg.Screenshot, "sS", false, "Screenshot (alias)")
	fs.StringVar(&cfg.ChromePath, "chrome-path", "", "Chrome/Chromium binary for screenshots")
	fs.BoolVar(&cfg.PagePulls, "page-pulls", false, "Save raw HTML, titles and favicon hashes")
	fs.BoolVar(&cfg.PagePulls, "pP", false, "Page pulls (alias)")
	fs.StringVar(&cfg.Wordlist, "gobuster", "", "Run gobuster with this wordlist")
	fs.StringVar(&cfg.Wordlist, "gB", "", "Gobuster wordlist (alias)")
	fs.BoolVar(&cfg.Nikto, "nikto", false, "Run nikto")
	fs.BoolVar(&cfg.Nikto, "rN", false, "Run nikto (alias)")

	// === OUTPUT ===
	fs.StringVar(&cfg.FormatsFile, "formats", "", "Command template file (.json or .yaml)")
	fs.StringVar(&cfg.ResultsDir, "results", defaults.ResultsDir, "Results directory")
	fs.BoolVar(&cfg.PDF, "pdf", false, "Also write a PDF run summary")

	// === OBSERVABILITY ===
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	fs.StringVar(&cfg.OTelEndpoint, "otel-endpoint", "", "Export traces to this OTLP gRPC endpoint")

	return fs
}

// Parse parses args (without the program name). Flags may appear before or
// after the positional address spec. -h returns flag.ErrHelp unwrapped.
func Parse(args []string) (*Config, error) {
	cfg := &Config{}
	fs := newFlagSet(cfg)

	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		rest := fs.Args()
		if len(rest) == 0 {
			break
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}

	switch len(positional) {
	case 0:
	case 1:
		cfg.IPs = positional[0]
	default:
		return nil, fmt.Errorf("%w: unexpected arguments %q", ErrInvalidConfig, positional[1:])
	}
	return cfg, nil
}

// Validate checks flag combinations and normalizes the port spec.
func (c *Config) Validate() error {
	if c.IPs == "" {
		return fmt.Errorf("%w: IPs (address, range, CIDR or file)", ErrMissingRequired)
	}
	if c.Verbose && c.Quiet {
		return fmt.Errorf("%w: -verbose and -quiet are mutually exclusive", ErrInvalidConfig)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: -nmap-threads must be at least 1, got %d", ErrInvalidConfig, c.Concurrency)
	}
	if c.MassRate < 1 {
		return fmt.Errorf("%w: -mass-rate must be at least 1, got %d", ErrInvalidConfig, c.MassRate)
	}
	if c.ResultsDir == "" {
		return fmt.Errorf("%w: -results", ErrMissingRequired)
	}

	ports, err := portspec.Validate(c.MassPorts)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	c.MassPorts = ports

	if c.Wordlist != "" {
		info, err := os.Stat(c.Wordlist)
		if err != nil || !info.Mode().IsRegular() {
			return fmt.Errorf("%w: %w: %s", ErrInvalidConfig, ErrMissingWordlist, c.Wordlist)
		}
	}
	return nil
}

// Gobuster reports whether gobuster is enabled.
func (c *Config) Gobuster() bool { return c.Wordlist != "" }

// AnyEnrichment reports whether any enrichment action is enabled.
func (c *Config) AnyEnrichment() bool {
	return c.Screenshot || c.PagePulls || c.Gobuster() || c.Nikto
}

// Usage writes the flag summary to w.
func Usage(w io.Writer) {
	fs := newFlagSet(&Config{})
	fmt.Fprintf(w, "Usage: %s [flags] IPs\n\n", defaults.ToolName)
	fmt.Fprintln(w, "IPs is a comma-separated list of addresses, ranges (a-b) and CIDR blocks, or a file with one per line.")
	fmt.Fprintln(w)
	fs.SetOutput(w)
	fs.PrintDefaults()
}
