// Package pipeline drives one portsweep run end to end: pre-flight
// checks, the optional bulk sweep, bounded primary scan dispatch, HTML
// conversion, enrichment and the run manifest.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/portsweep/portsweep/pkg/config"
	"github.com/portsweep/portsweep/pkg/defaults"
	"github.com/portsweep/portsweep/pkg/duration"
	"github.com/portsweep/portsweep/pkg/enrich"
	"github.com/portsweep/portsweep/pkg/formats"
	"github.com/portsweep/portsweep/pkg/input"
	"github.com/portsweep/portsweep/pkg/logging"
	"github.com/portsweep/portsweep/pkg/masscan"
	"github.com/portsweep/portsweep/pkg/metrics"
	"github.com/portsweep/portsweep/pkg/portspec"
	"github.com/portsweep/portsweep/pkg/proc"
	"github.com/portsweep/portsweep/pkg/registry"
	"github.com/portsweep/portsweep/pkg/report"
	"github.com/portsweep/portsweep/pkg/scanner"
	"github.com/portsweep/portsweep/pkg/screenshot"
	"github.com/portsweep/portsweep/pkg/tracing"
	"github.com/portsweep/portsweep/pkg/ui"
)

// Phase statuses.
const (
	PhaseOK      = "ok"
	PhaseFailed  = "failed"
	PhaseSkipped = "skipped"
)

// Options carries the collaborators of a run. The zero value runs the
// real tools.
type Options struct {
	// Backend launches primary scans; nmap at cfg.NmapPath when nil.
	Backend scanner.Backend

	Logger *slog.Logger

	// ProgressMode is taken as given; callers wanting terminal detection
	// pass ui.DefaultOutputMode().
	ProgressMode ui.OutputMode
	ProgressOut  io.Writer
	Now          func() time.Time
	PollInterval time.Duration

	// Screenshot options are appended to the screenshot action's own.
	Screenshot []screenshot.Option
}

func (o Options) withDefaults(cfg *config.Config) Options {
	if o.Backend == nil {
		o.Backend = scanner.NmapBackend{Path: cfg.NmapPath}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.ProgressOut == nil {
		o.ProgressOut = os.Stderr
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.PollInterval <= 0 {
		o.PollInterval = duration.ScanPoll
	}
	return o
}

// Result is everything a finished run reports.
type Result struct {
	Manifest     *report.Manifest
	ManifestPath string
	PDFPath      string
	Summary      Summary
	Enrichment   []enrich.Result
	Phases       []ui.Phase
	Interrupted  bool
}

func (r *Result) phase(name, status, detail string, took time.Duration) {
	r.Phases = append(r.Phases, ui.Phase{Name: name, Status: status, Detail: detail, Duration: took})
}

// templates are the resolved command templates for the enabled tools.
type templates map[string]string

// Run executes one scan run. Only pre-flight and setup problems, or a
// manifest that cannot be written, return an error; a failed sweep, job,
// conversion or enrichment action is logged, recorded in the manifest and
// the run continues. Cancelling ctx kills every child process; jobs
// already running are still joined before Run returns.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	ownBackend := opts.Backend == nil
	opts = opts.withDefaults(cfg)
	log := opts.Logger

	// === PRE-FLIGHT ===
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPreflight, err)
	}
	addrs, err := input.ExpandAddresses(cfg.IPs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPreflight, err)
	}
	tmpls, err := resolveTemplates(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPreflight, err)
	}
	if err := checkTools(cfg, tmpls, ownBackend); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPreflight, err)
	}
	var ports []int
	if cfg.SkipMass {
		if ports, err = portspec.Expand(cfg.MassPorts); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPreflight, err)
		}
	}

	start := opts.Now()
	m := report.NewManifest(start)
	m.Settings = report.Settings{
		Addresses:   cfg.IPs,
		Ports:       cfg.MassPorts,
		SkipSweep:   cfg.SkipMass,
		Rate:        cfg.MassRate,
		Concurrency: cfg.Concurrency,
		NoExtra:     cfg.NoExtraScans,
		ResultsDir:  cfg.ResultsDir,
	}
	m.Targets = len(addrs)
	res := &Result{Manifest: m}
	log = log.With(slog.String("run", m.RunID))

	// === SETUP ===
	if err := makeTree(cfg.ResultsDir); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	targetFile := filepath.Join(cfg.ResultsDir, defaults.TargetFile)
	if err := input.WriteTargetFile(targetFile, addrs); err != nil {
		return nil, fmt.Errorf("%w: target file: %w", ErrSetup, err)
	}

	tracer, shutdown, err := tracing.Setup(ctx, cfg.OTelEndpoint)
	if err != nil {
		log.Warn("tracing disabled", slog.String("error", err.Error()))
		tracer, shutdown = tracing.Noop(), func(context.Context) error { return nil }
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), duration.ShutdownGrace)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Warn("trace flush failed", slog.String("error", err.Error()))
		}
	}()

	rec := startMetrics(ctx, cfg.MetricsAddr, log)

	stop := context.AfterFunc(ctx, func() {
		if n := proc.KillAll(); n > 0 {
			log.Warn("killed running child processes", slog.Int("count", n))
		}
	})
	defer stop()

	ctx, span := tracer.Start(ctx, "run")
	span.SetAttributes(
		attribute.String("run.id", m.RunID),
		attribute.Int("run.targets", len(addrs)),
	)
	defer span.End()

	// === JOBS ===
	var jobs []scanner.Job
	if cfg.SkipMass {
		jobs = Plan(input.Strings(addrs), ports)
		res.phase("bulk sweep", PhaseSkipped, fmt.Sprintf("%d targets x %d ports", len(addrs), len(ports)), 0)
	} else {
		t0 := time.Now()
		open, err := masscan.Sweep(ctx, masscan.Config{
			Template:   tmpls[formats.Masscan],
			Ports:      cfg.MassPorts,
			TargetFile: targetFile,
			Rate:       cfg.MassRate,
			ResultsDir: cfg.ResultsDir,
			Now:        opts.Now,
			Logger:     log,
		})
		if err != nil {
			logging.Critical(log, "bulk sweep failed", slog.String("error", err.Error()))
			m.Errors = append(m.Errors, err.Error())
			res.phase("bulk sweep", PhaseFailed, err.Error(), time.Since(t0))
		} else {
			rec.SweepResult(len(open))
			jobs = PlanFromSweep(open)
			res.phase("bulk sweep", PhaseOK, fmt.Sprintf("%d open", len(open)), time.Since(t0))
		}
	}
	span.SetAttributes(attribute.Int("run.jobs", len(jobs)))

	// === DISPATCH ===
	reg := registry.New(registry.WithLogger(log))
	worker := scanner.NewWorker(scanner.Config{
		PrimaryTemplate: tmpls[formats.Nmap],
		ExtraTemplate:   tmpls[formats.NmapExtra],
		NoExtra:         cfg.NoExtraScans,
		ResultsDir:      cfg.ResultsDir,
	}, opts.Backend, reg,
		scanner.WithLogger(log),
		scanner.WithPollInterval(opts.PollInterval),
		scanner.WithClock(opts.Now),
		scanner.WithMetrics(rec),
		scanner.WithTracer(tracer),
	)
	d := NewDispatcher(worker, reg,
		WithConcurrency(cfg.Concurrency),
		WithResultsDir(cfg.ResultsDir),
		WithProgress(opts.ProgressMode, opts.ProgressOut),
		WithDispatchLogger(log),
	)
	sum := d.Dispatch(ctx, jobs)
	res.Summary = sum
	res.phase("scan", PhaseOK,
		fmt.Sprintf("%d saved, %d discarded, %d failed", sum.Saved, sum.Discarded, sum.Failed),
		sum.Duration)
	if sum.ConvertErr != nil {
		m.Errors = append(m.Errors, sum.ConvertErr.Error())
		res.phase("html conversion", PhaseFailed, fmt.Sprintf("%d converted", sum.Converted), 0)
	} else {
		res.phase("html conversion", PhaseOK, fmt.Sprintf("%d converted", sum.Converted), 0)
	}

	// === ENRICHMENT ===
	if actions := buildActions(cfg, tmpls, opts, log); len(actions) > 0 {
		if len(sum.Web) == 0 {
			res.phase("enrichment", PhaseSkipped, "no web endpoints", 0)
		} else {
			er := enrich.NewRunner(
				enrich.WithLogger(log),
				enrich.WithMetrics(rec),
				enrich.WithTracer(tracer),
			)
			res.Enrichment = er.Run(ctx, sum.Web, actions)
			for _, r := range res.Enrichment {
				ar := report.ActionRecord{Name: r.Name, Seconds: r.Duration.Seconds()}
				status := PhaseOK
				if r.Err != nil {
					ar.Error = r.Err.Error()
					status = PhaseFailed
				}
				m.Enrichment = append(m.Enrichment, ar)
				res.phase(r.Name, status, ar.Error, r.Duration)
			}
		}
	}

	// === MANIFEST ===
	if err := ctx.Err(); err != nil {
		res.Interrupted = true
		m.Errors = append(m.Errors, "interrupted: "+err.Error())
	}
	m.Finished = opts.Now()
	m.Jobs = sum.Jobs
	m.Saved = sum.Saved
	m.Discarded = sum.Discarded
	m.Failed = sum.Failed
	m.Converted = sum.Converted
	m.Web = sum.Web

	stamp := start.Format(defaults.TimestampLayout)
	res.ManifestPath = filepath.Join(cfg.ResultsDir, "run_"+stamp+".json")
	if err := report.WriteManifest(res.ManifestPath, m); err != nil {
		return res, fmt.Errorf("write manifest: %w", err)
	}
	if cfg.PDF {
		path := filepath.Join(cfg.ResultsDir, "run_"+stamp+".pdf")
		if err := report.WritePDF(path, m); err != nil {
			logging.Critical(log, "pdf summary failed", slog.String("error", err.Error()))
		} else {
			res.PDFPath = path
		}
	}
	return res, nil
}

// resolveTemplates loads the formats file, or the built-in defaults, and
// checks every enabled tool has a template.
func resolveTemplates(cfg *config.Config) (templates, error) {
	fm := formats.Default()
	if cfg.FormatsFile != "" {
		var err error
		if fm, err = formats.Load(cfg.FormatsFile); err != nil {
			return nil, fmt.Errorf("formats file %s: %w", cfg.FormatsFile, err)
		}
	}

	names := []string{formats.Nmap}
	if !cfg.NoExtraScans {
		names = append(names, formats.NmapExtra)
	}
	if !cfg.SkipMass {
		names = append(names, formats.Masscan)
	}
	if cfg.Gobuster() {
		names = append(names, formats.Gobuster)
	}
	if cfg.Nikto {
		names = append(names, formats.Nikto)
	}

	out := make(templates, len(names))
	for _, name := range names {
		t, err := fm.Template(name)
		if err != nil {
			return nil, err
		}
		out[name] = t
	}
	return out, nil
}

// checkTools fails when nmap or, unless the sweep is skipped, masscan is
// not installed. Without it a missing nmap shows up as one failed job per
// target. Enrichment tools are not checked; a missing one fails only its
// own action.
func checkTools(cfg *config.Config, tmpls templates, nmap bool) error {
	var bins []string
	if nmap {
		bins = append(bins, cfg.NmapPath)
	}
	if t, ok := tmpls[formats.Masscan]; ok {
		if name, _ := proc.Command(t); name != "" {
			bins = append(bins, name)
		}
	}
	for _, bin := range bins {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%w: %s", ErrToolMissing, bin)
		}
	}
	return nil
}

// makeTree creates the fixed results layout.
func makeTree(root string) error {
	for _, dir := range []string{
		defaults.DirMasscan,
		defaults.DirNmapRegular,
		defaults.DirNmapExtra,
		defaults.DirNmapHTTP,
	} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return err
		}
	}
	return nil
}

// startMetrics serves Prometheus metrics when addr is set. Any failure
// leaves metrics off; the returned nil Recorder is a no-op.
func startMetrics(ctx context.Context, addr string, log *slog.Logger) *metrics.Recorder {
	if addr == "" {
		return nil
	}
	rec, err := metrics.New()
	if err != nil {
		log.Warn("metrics disabled", slog.String("error", err.Error()))
		return nil
	}
	bound, err := rec.Serve(ctx, addr)
	if err != nil {
		log.Warn("metrics disabled", slog.String("error", err.Error()))
		return nil
	}
	log.Info("serving metrics", slog.String("addr", bound.String()))
	return rec
}

// buildActions returns the enabled enrichment actions. Order does not
// matter here; the enrichment runner applies its own.
func buildActions(cfg *config.Config, tmpls templates, opts Options, log *slog.Logger) []enrich.Action {
	root := cfg.ResultsDir
	var actions []enrich.Action
	if cfg.Screenshot {
		shotOpts := opts.Screenshot
		if cfg.ChromePath != "" {
			shotOpts = append([]screenshot.Option{screenshot.WithChromePath(cfg.ChromePath)}, shotOpts...)
		}
		actions = append(actions, enrich.NewScreenshots(filepath.Join(root, defaults.DirScreenshots), log, shotOpts...))
	}
	if cfg.PagePulls {
		p := enrich.NewPages(filepath.Join(root, defaults.DirPages))
		p.Logger = log
		actions = append(actions, p)
	}
	if cfg.Gobuster() {
		g := enrich.NewGobuster(tmpls[formats.Gobuster], cfg.Wordlist, filepath.Join(root, defaults.DirGobuster))
		g.Logger = log
		actions = append(actions, g)
	}
	if cfg.Nikto {
		n := enrich.NewNikto(tmpls[formats.Nikto], filepath.Join(root, defaults.DirNikto))
		n.Logger = log
		actions = append(actions, n)
	}
	return actions
}
