// Package metrics exposes run telemetry for Prometheus scraping: scan
// outcomes and durations, jobs in flight, web discoveries and enrichment
// action results.
//
// A nil *Recorder is valid and records nothing, so components can take an
// optional recorder without guarding every call.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/portsweep/portsweep/pkg/duration"
)

const namespace = "portsweep"

// Recorder owns a private registry and the run's collectors.
type Recorder struct {
	registry *prometheus.Registry

	scansTotal     *prometheus.CounterVec
	scanDuration   prometheus.Histogram
	scansInFlight  prometheus.Gauge
	discoveries    prometheus.Counter
	enrichmentRuns *prometheus.CounterVec
	sweepOpen      prometheus.Gauge
}

// New creates a Recorder with every collector registered.
func New() (*Recorder, error) {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Primary scan jobs by terminal outcome",
		},
		[]string{"outcome"},
	)
	r.scanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scan_duration_seconds",
		Help:      "Wall time of one scan job including any secondary probe",
		Buckets:   []float64{1, 2, 5, 10, 30, 60, 120, 300, 600, 1800},
	})
	r.scansInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "scans_in_flight",
		Help:      "Scan jobs currently running",
	})
	r.discoveries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "web_endpoints_total",
		Help:      "Endpoints classified as web services",
	})
	r.enrichmentRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_actions_total",
			Help:      "Enrichment actions by name and status",
		},
		[]string{"action", "status"},
	)
	r.sweepOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sweep_open_ports",
		Help:      "Open target:port pairs reported by the bulk sweep",
	})

	collectors := []prometheus.Collector{
		r.scansTotal,
		r.scanDuration,
		r.scansInFlight,
		r.discoveries,
		r.enrichmentRuns,
		r.sweepOpen,
	}
	for _, c := range collectors {
		if err := r.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return r, nil
}

// ScanStarted marks one job as in flight.
func (r *Recorder) ScanStarted() {
	if r == nil {
		return
	}
	r.scansInFlight.Inc()
}

// ScanFinished records a job's terminal outcome and how long it took.
func (r *Recorder) ScanFinished(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.scansInFlight.Dec()
	r.scansTotal.WithLabelValues(outcome).Inc()
	r.scanDuration.Observe(d.Seconds())
}

// Discovery counts one web endpoint.
func (r *Recorder) Discovery() {
	if r == nil {
		return
	}
	r.discoveries.Inc()
}

// SweepResult records how many open pairs the bulk sweep found.
func (r *Recorder) SweepResult(open int) {
	if r == nil {
		return
	}
	r.sweepOpen.Set(float64(open))
}

// Enrichment records one action run.
func (r *Recorder) Enrichment(action string, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.enrichmentRuns.WithLabelValues(action, status).Inc()
}

// Gatherer exposes the private registry, mainly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve listens on addr and serves /metrics until ctx is cancelled. The
// listener is bound before Serve returns so bind errors surface at once.
func (r *Recorder) Serve(ctx context.Context, addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  duration.ServerTimeout,
		WriteTimeout: duration.ServerTimeout,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = ln.Close()
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), duration.ShutdownGrace)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return ln.Addr(), nil
}
