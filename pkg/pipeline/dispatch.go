package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/portsweep/portsweep/pkg/defaults"
	"github.com/portsweep/portsweep/pkg/logging"
	"github.com/portsweep/portsweep/pkg/registry"
	"github.com/portsweep/portsweep/pkg/report"
	"github.com/portsweep/portsweep/pkg/runner"
	"github.com/portsweep/portsweep/pkg/scanner"
	"github.com/portsweep/portsweep/pkg/ui"
)

// Scanner runs one job to a terminal outcome. *scanner.Worker is the
// production implementation.
type Scanner interface {
	Scan(ctx context.Context, job scanner.Job) (scanner.Outcome, error)
}

// JobError records why one job failed.
type JobError struct {
	Job scanner.Job
	Err error
}

// Summary is what a dispatch produced.
type Summary struct {
	Jobs      int
	Saved     int
	Discarded int
	Failed    int
	Converted int

	// Web is the frozen, sorted and deduplicated set of web endpoints.
	Web []string

	Failures   []JobError
	ConvertErr error
	Peak       int
	Duration   time.Duration
}

// Dispatcher fans jobs out over a bounded pool and collects their outcomes.
type Dispatcher struct {
	scanner     Scanner
	registry    *registry.Registry
	concurrency int
	resultsDir  string

	mode   ui.OutputMode
	out    io.Writer
	logger *slog.Logger
}

// DispatchOption configures a Dispatcher.
type DispatchOption func(*Dispatcher)

// WithConcurrency caps the number of scans in flight.
func WithConcurrency(n int) DispatchOption {
	return func(d *Dispatcher) { d.concurrency = n }
}

// WithResultsDir sets the results tree root used for HTML conversion.
func WithResultsDir(dir string) DispatchOption {
	return func(d *Dispatcher) { d.resultsDir = dir }
}

// WithProgress selects the progress display and where it is drawn.
func WithProgress(mode ui.OutputMode, w io.Writer) DispatchOption {
	return func(d *Dispatcher) {
		d.mode = mode
		d.out = w
	}
}

// WithDispatchLogger sets the dispatcher's logger.
func WithDispatchLogger(l *slog.Logger) DispatchOption {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher creates a Dispatcher. reg must be the registry the
// scanner adds to; it is frozen once every job is terminal.
func NewDispatcher(s Scanner, reg *registry.Registry, opts ...DispatchOption) *Dispatcher {
	d := &Dispatcher{
		scanner:     s,
		registry:    reg,
		concurrency: defaults.ScanConcurrency,
		resultsDir:  defaults.ResultsDir,
		mode:        ui.DefaultOutputMode(),
		out:         os.Stderr,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dispatch runs every job and returns once each is terminal. No more than
// the configured concurrency run at once. A failed job is logged and
// counted; it never stops its siblings. After the drain the registry is
// frozen and primary artifacts are converted to HTML on a best-effort
// basis.
func (d *Dispatcher) Dispatch(ctx context.Context, jobs []scanner.Job) Summary {
	start := time.Now()
	sum := Summary{Jobs: len(jobs)}

	progress := ui.NewScanProgress(len(jobs), d.mode, d.out)
	progress.Start()

	r := runner.NewRunner[scanner.Outcome]()
	r.Concurrency = d.concurrency
	r.OnError = func(job string, err error) {
		if errors.Is(err, runner.ErrCancelled) {
			d.logger.Debug("job not started", slog.String("job", job))
			return
		}
		logging.Critical(d.logger, "scan failed",
			slog.String("job", job),
			slog.String("error", err.Error()),
		)
	}
	r.OnProgress = func(completed, _ int64, res runner.Result[scanner.Outcome]) {
		progress.SetCompleted(int(completed))
		progress.SetStatus(res.Target)
		switch {
		case res.Error != nil:
			sum.Failed++
			sum.Failures = append(sum.Failures, JobError{Job: scanner.Job(res.Target), Err: res.Error})
			progress.AddMetric("failed")
		case res.Data.Status == scanner.OutcomeDiscarded:
			sum.Discarded++
			progress.AddMetric("discarded")
		default:
			sum.Saved++
			if res.Data.Web {
				progress.AddMetric("web")
			}
		}
	}

	targets := make([]string, len(jobs))
	for i, j := range jobs {
		targets[i] = string(j)
	}
	r.Run(ctx, targets, func(ctx context.Context, target string) (scanner.Outcome, error) {
		return d.scanner.Scan(ctx, scanner.Job(target))
	})
	progress.Stop()

	sum.Peak = int(r.Stats.Peak)
	d.registry.Freeze()
	sum.Web = d.registry.Unique()

	regular := filepath.Join(d.resultsDir, defaults.DirNmapRegular)
	httpDir := filepath.Join(d.resultsDir, defaults.DirNmapHTTP)
	n, err := report.ConvertAll(regular, httpDir)
	sum.Converted = n
	if err != nil {
		sum.ConvertErr = err
		logging.Critical(d.logger, "html conversion failed", slog.String("error", err.Error()))
	}

	sum.Duration = time.Since(start)
	d.logger.Info("dispatch finished",
		slog.Int("jobs", sum.Jobs),
		slog.Int("saved", sum.Saved),
		slog.Int("discarded", sum.Discarded),
		slog.Int("failed", sum.Failed),
		slog.Int("web", len(sum.Web)),
		slog.String("rate", fmt.Sprintf("%.2f jobs/s", r.Stats.RPS())),
	)
	return sum
}
