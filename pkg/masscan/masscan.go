// Package masscan runs the bulk port sweep over the target file and turns
// its list output into scan jobs.
package masscan

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/portsweep/portsweep/pkg/defaults"
	"github.com/portsweep/portsweep/pkg/duration"
	"github.com/portsweep/portsweep/pkg/formats"
	"github.com/portsweep/portsweep/pkg/proc"
)

// ErrSweepFailed wraps a bulk sweep that could not run to completion.
var ErrSweepFailed = errors.New("masscan: sweep failed")

// Config describes one sweep. Template has four sites: ports, target
// file, rate and output path.
type Config struct {
	Template   string
	Ports      string
	TargetFile string
	Rate       int
	ResultsDir string
	Timeout    time.Duration // zero means duration.SweepTimeout
	Now        func() time.Time
	Logger     *slog.Logger
}

// OutputPath returns the list-format output file for a sweep started at t.
func OutputPath(resultsDir string, t time.Time) string {
	name := "mass_results_" + t.Format(defaults.TimestampLayout)
	return filepath.Join(resultsDir, defaults.DirMasscan, name)
}

// Sweep renders and runs the bulk sweep, then parses its output file into
// ordered, deduplicated "target:port" jobs.
func Sweep(ctx context.Context, cfg Config) ([]string, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = duration.SweepTimeout
	}

	out := OutputPath(cfg.ResultsDir, cfg.Now())
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSweepFailed, err)
	}

	line, err := formats.Bulk(cfg.Template, cfg.Ports, cfg.TargetFile, cfg.Rate, out)
	if err != nil {
		return nil, err
	}
	name, args := proc.Command(line)
	cfg.Logger.Info("starting bulk sweep",
		slog.String("ports", cfg.Ports),
		slog.Int("rate", cfg.Rate),
		slog.String("output", out),
	)

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	res, err := proc.Run(ctx, name, args)
	if err != nil {
		stderr := ""
		if res != nil {
			stderr = strings.TrimSpace(res.Stderr)
		}
		return nil, fmt.Errorf("%w: %v: %s", ErrSweepFailed, err, stderr)
	}

	f, err := os.Open(out)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// masscan writes nothing when no port answered
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrSweepFailed, err)
	}
	defer f.Close()

	jobs, err := ParseList(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSweepFailed, err)
	}
	cfg.Logger.Info("bulk sweep finished", slog.Int("open", len(jobs)), slog.Duration("took", res.Duration))
	return jobs, nil
}

// ParseList reads masscan -oL output ("open tcp 443 10.0.0.1 1700000000")
// and returns "10.0.0.1:443" jobs in first-seen order without duplicates.
// Comment lines and non-open records are skipped; a malformed open record
// is an error.
func ParseList(r io.Reader) ([]string, error) {
	var jobs []string
	seen := make(map[string]struct{})

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if fields[0] != "open" {
			continue
		}
		if len(fields) < 4 {
			return nil, fmt.Errorf("line %d: want at least 4 fields, got %d", lineNo, len(fields))
		}
		port, err := strconv.Atoi(fields[2])
		if err != nil || port < defaults.PortMin || port > defaults.PortMax {
			return nil, fmt.Errorf("line %d: bad port %q", lineNo, fields[2])
		}
		addr, err := netip.ParseAddr(fields[3])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad address %q", lineNo, fields[3])
		}

		job := addr.String() + ":" + strconv.Itoa(port)
		if _, dup := seen[job]; dup {
			continue
		}
		seen[job] = struct{}{}
		jobs = append(jobs, job)
	}
	return jobs, sc.Err()
}
