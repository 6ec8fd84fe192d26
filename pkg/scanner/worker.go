// Package scanner runs one primary scan per "target:port" job, classifies
// its output, writes artifacts and records web discoveries.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/portsweep/portsweep/pkg/defaults"
	"github.com/portsweep/portsweep/pkg/duration"
	"github.com/portsweep/portsweep/pkg/formats"
	"github.com/portsweep/portsweep/pkg/metrics"
	"github.com/portsweep/portsweep/pkg/registry"
	"github.com/portsweep/portsweep/pkg/tracing"
)

// Job is one unit of scan work, "target:port".
type Job string

// ParseJob splits a job at its last colon, so IPv6 targets keep theirs.
func ParseJob(job Job) (target, port string, err error) {
	s := string(job)
	i := strings.LastIndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedJob, s)
	}
	return s[:i], s[i+1:], nil
}

// NewJob joins a target and port.
func NewJob(target, port string) Job {
	return Job(target + ":" + port)
}

// Status is the terminal state of a job.
type Status int

const (
	OutcomeSaved Status = iota
	OutcomeDiscarded
	OutcomeFailed
)

func (s Status) String() string {
	switch s {
	case OutcomeSaved:
		return "saved"
	case OutcomeDiscarded:
		return "discarded"
	default:
		return "failed"
	}
}

// Outcome describes what one Scan did.
type Outcome struct {
	Job           Job
	Status        Status
	Web           bool
	Followup      Followup
	Artifact      string
	ExtraArtifact string
	Duration      time.Duration
}

// Config is the per-run scan setup shared by every job.
type Config struct {
	// PrimaryTemplate has one site, the port.
	PrimaryTemplate string

	// ExtraTemplate has two sites, port then script.
	ExtraTemplate string

	// NoExtra disables secondary probes.
	NoExtra bool

	// ResultsDir is the root of the results tree.
	ResultsDir string
}

// Worker executes scan jobs. One Worker is shared by all goroutines of a
// dispatch; it holds no per-job state.
type Worker struct {
	cfg      Config
	backend  Backend
	registry *registry.Registry

	poll    time.Duration
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Recorder
	tracer  trace.Tracer
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the worker's logger.
func WithLogger(l *slog.Logger) Option { return func(w *Worker) { w.logger = l } }

// WithPollInterval sets how often a running scan is checked.
func WithPollInterval(d time.Duration) Option { return func(w *Worker) { w.poll = d } }

// WithTimeout bounds each scan process, secondary probe included.
func WithTimeout(d time.Duration) Option { return func(w *Worker) { w.timeout = d } }

// WithClock sets the time source used for artifact names.
func WithClock(now func() time.Time) Option { return func(w *Worker) { w.now = now } }

// WithMetrics records scan outcomes.
func WithMetrics(m *metrics.Recorder) Option { return func(w *Worker) { w.metrics = m } }

// WithTracer wraps each job in a span.
func WithTracer(t trace.Tracer) Option { return func(w *Worker) { w.tracer = t } }

// NewWorker creates a Worker.
func NewWorker(cfg Config, backend Backend, reg *registry.Registry, opts ...Option) *Worker {
	if cfg.ResultsDir == "" {
		cfg.ResultsDir = defaults.ResultsDir
	}
	w := &Worker{
		cfg:      cfg,
		backend:  backend,
		registry: reg,
		poll:     duration.ScanPoll,
		timeout:  duration.ScanTimeout,
		now:      time.Now,
		logger:   slog.Default(),
		tracer:   tracing.Noop(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Scan runs job to completion. A non-nil error always comes with
// OutcomeFailed; sibling jobs are unaffected.
func (w *Worker) Scan(ctx context.Context, job Job) (out Outcome, err error) {
	start := time.Now()
	out = Outcome{Job: job, Status: OutcomeFailed}

	ctx, span := w.tracer.Start(ctx, "scan", trace.WithAttributes(attribute.String("job", string(job))))
	w.metrics.ScanStarted()
	defer func() {
		out.Duration = time.Since(start)
		w.metrics.ScanFinished(out.Status.String(), out.Duration)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("outcome", out.Status.String()))
		span.End()
	}()

	target, port, err := ParseJob(job)
	if err != nil {
		return out, err
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	options, err := formats.Primary(w.cfg.PrimaryTemplate, port)
	if err != nil {
		return out, err
	}
	output, err := w.execute(ctx, target, options)
	if err != nil {
		return out, err
	}

	class := Classify(output)
	out.Web = class.Web
	out.Followup = class.Followup
	if class.Filtered {
		w.logger.Debug("discarding filtered result", slog.String("job", string(job)))
		out.Status = OutcomeDiscarded
		return out, nil
	}

	out.Artifact = w.artifactPath(target, port)
	if err := writeAtomic(out.Artifact, output); err != nil {
		return out, fmt.Errorf("write artifact: %w", err)
	}

	if class.Web {
		if err := w.registry.Add(string(job)); err != nil {
			return out, err
		}
		w.metrics.Discovery()
	}

	if !w.cfg.NoExtra && class.Followup != FollowupNone {
		extra, err := w.runFollowup(ctx, target, port, class.Followup)
		if err != nil {
			return out, err
		}
		if strings.TrimSpace(extra) != "" {
			out.ExtraArtifact = ExtraPath(out.Artifact)
			if err := writeAtomic(out.ExtraArtifact, extra); err != nil {
				return out, fmt.Errorf("write extra artifact: %w", err)
			}
		}
	}

	out.Status = OutcomeSaved
	w.logger.Debug("scan saved",
		slog.String("job", string(job)),
		slog.Bool("web", class.Web),
		slog.String("followup", class.Followup.String()),
	)
	return out, nil
}

func (w *Worker) runFollowup(ctx context.Context, target, port string, f Followup) (string, error) {
	ctx, span := w.tracer.Start(ctx, "followup", trace.WithAttributes(attribute.String("script", f.Script())))
	defer span.End()

	options, err := formats.Extra(w.cfg.ExtraTemplate, port, f.Script())
	if err != nil {
		return "", err
	}
	w.logger.Debug("running follow-up probe",
		slog.String("target", target),
		slog.String("port", port),
		slog.String("script", f.Script()),
	)
	return w.execute(ctx, target, options)
}

// execute launches one scan and polls it until it exits or ctx ends. On
// cancellation the backend is expected to kill the child via ctx.
func (w *Worker) execute(ctx context.Context, target, options string) (string, error) {
	h, err := w.backend.Launch(ctx, target, options)
	if err != nil {
		return "", fmt.Errorf("%w: launch: %v", ErrScanFailed, err)
	}

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()
	for h.IsRunning() {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
	// a child killed by ctx can exit cleanly with partial output
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := h.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrScanFailed, err)
	}
	return h.Stdout(), nil
}

// ArtifactName is the primary artifact file name for target, port and time.
func ArtifactName(target, port string, t time.Time) string {
	return fmt.Sprintf("nmap_reg_%s_%s_%s.xml", target, port, t.Format(defaults.TimestampLayout))
}

func (w *Worker) artifactPath(target, port string) string {
	return filepath.Join(w.cfg.ResultsDir, defaults.DirNmapRegular, ArtifactName(target, port, w.now()))
}

// ExtraPath derives the secondary artifact path from a primary one: the
// file moves from the regular to the extra directory and "_reg_" becomes
// "_xtra_".
func ExtraPath(primary string) string {
	dir := filepath.Dir(filepath.Dir(primary))
	base := strings.Replace(filepath.Base(primary), "nmap_reg_", "nmap_xtra_", 1)
	return filepath.Join(dir, filepath.Base(defaults.DirNmapExtra), base)
}

// writeAtomic replaces path with data via a temp file in the same
// directory, so two writers of one name never interleave.
func writeAtomic(path, data string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
