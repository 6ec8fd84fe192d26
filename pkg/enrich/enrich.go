// Package enrich runs post-scan actions (screenshots, page pulls, gobuster,
// nikto) over the web endpoints discovered during dispatch.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/portsweep/portsweep/pkg/logging"
	"github.com/portsweep/portsweep/pkg/metrics"
	"github.com/portsweep/portsweep/pkg/scanner"
	"github.com/portsweep/portsweep/pkg/tracing"
)

// Action names, in execution order.
const (
	NameScreenshot = "screenshot"
	NamePages      = "pages"
	NameGobuster   = "gobuster"
	NameNikto      = "nikto"
)

var order = []string{NameScreenshot, NamePages, NameGobuster, NameNikto}

// Action is one enrichment step over the whole endpoint list.
type Action interface {
	Name() string
	Run(ctx context.Context, endpoints []string) error
}

// Result is the outcome of one action.
type Result struct {
	Name     string
	Err      error
	Duration time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.logger = l } }

// WithMetrics records per-action outcomes.
func WithMetrics(m *metrics.Recorder) Option { return func(r *Runner) { r.metrics = m } }

// WithTracer wraps each action in a span.
func WithTracer(t trace.Tracer) Option { return func(r *Runner) { r.tracer = t } }

// Runner invokes actions one after another.
type Runner struct {
	logger  *slog.Logger
	metrics *metrics.Recorder
	tracer  trace.Tracer
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		logger: slog.Default(),
		tracer: tracing.Noop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run deduplicates endpoints and runs each action once, in the order
// screenshot, pages, gobuster, nikto (unknown names last, as given). A
// failing action is logged at critical level and the next one still runs.
// Once ctx is done the remaining actions are reported as ErrSkipped.
func (r *Runner) Run(ctx context.Context, endpoints []string, actions []Action) []Result {
	endpoints = dedup(endpoints)
	actions = arrange(actions)

	results := make([]Result, 0, len(actions))
	for _, a := range actions {
		if ctx.Err() != nil {
			results = append(results, Result{Name: a.Name(), Err: fmt.Errorf("%w: %w", ErrSkipped, ctx.Err())})
			continue
		}
		results = append(results, r.runOne(ctx, a, endpoints))
	}
	return results
}

func (r *Runner) runOne(ctx context.Context, a Action, endpoints []string) Result {
	name := a.Name()
	ctx, span := r.tracer.Start(ctx, "enrich."+name,
		trace.WithAttributes(attribute.Int("portsweep.endpoints", len(endpoints))))
	defer span.End()

	r.logger.Info("running enrichment", slog.String("action", name), slog.Int("endpoints", len(endpoints)))
	start := time.Now()
	err := a.Run(ctx, endpoints)
	res := Result{Name: name, Err: err, Duration: time.Since(start)}

	r.metrics.Enrichment(name, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logging.Critical(r.logger, "enrichment failed", slog.String("action", name), slog.String("error", err.Error()))
	}
	return res
}

func dedup(endpoints []string) []string {
	out := slices.Clone(endpoints)
	slices.Sort(out)
	return slices.Compact(out)
}

// arrange drops repeated names and sorts into execution order.
func arrange(actions []Action) []Action {
	seen := make(map[string]bool, len(actions))
	var out []Action
	for _, a := range actions {
		if a == nil || seen[a.Name()] {
			continue
		}
		seen[a.Name()] = true
		out = append(out, a)
	}
	slices.SortStableFunc(out, func(a, b Action) int {
		return rank(a.Name()) - rank(b.Name())
	})
	return out
}

func rank(name string) int {
	if i := slices.Index(order, name); i >= 0 {
		return i
	}
	return len(order)
}

// URLFor maps "target:port" to a URL: https for 443 and 8443, http
// otherwise. IPv6 targets are bracketed.
func URLFor(endpoint string) (string, error) {
	host, port, err := split(endpoint)
	if err != nil {
		return "", err
	}
	scheme := "http"
	if port == "443" || port == "8443" {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(host, port), nil
}

// FileStem is the per-endpoint output name, "<ip>_<port>".
func FileStem(endpoint string) (string, error) {
	host, port, err := split(endpoint)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(host, ":", "-") + "_" + port, nil
}

func split(endpoint string) (string, string, error) {
	host, port, err := scanner.ParseJob(scanner.Job(endpoint))
	if err != nil {
		return "", "", fmt.Errorf("%w: %q", ErrBadEndpoint, endpoint)
	}
	return host, port, nil
}

// partial folds per-endpoint errors into one.
func partial(errs []error, total int) error {
	errs = slices.DeleteFunc(errs, func(e error) bool { return e == nil })
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w (%d/%d): %w", ErrPartial, len(errs), total, errors.Join(errs...))
}
