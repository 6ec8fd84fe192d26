package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portsweep/portsweep/pkg/config"
	"github.com/portsweep/portsweep/pkg/defaults"
	"github.com/portsweep/portsweep/pkg/jsonutil"
	"github.com/portsweep/portsweep/pkg/logging"
	"github.com/portsweep/portsweep/pkg/registry"
	"github.com/portsweep/portsweep/pkg/report"
	"github.com/portsweep/portsweep/pkg/runner"
	"github.com/portsweep/portsweep/pkg/scanner"
	"github.com/portsweep/portsweep/pkg/testutil"
	"github.com/portsweep/portsweep/pkg/ui"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func nmapXML(addr, port, state, service string) string {
	return fmt.Sprintf(`<?xml version="1.0"?>
<nmaprun scanner="nmap" args="nmap -sV -p %[2]s %[1]s" version="7.94">
<host><status state="up"/><address addr="%[1]s" addrtype="ipv4"/>
<ports><port protocol="tcp" portid="%[2]s"><state state="%[3]s" reason="syn-ack"/><service name="%[4]s"/></port></ports>
</host>
</nmaprun>
`, addr, port, state, service)
}

// portBackend answers each scan from the port in its option string.
type portBackend struct {
	mu       sync.Mutex
	services map[string]string // port -> service; "filtered" marks a filtered port
	launches []string
}

func (b *portBackend) Launch(_ context.Context, target, options string) (scanner.Handle, error) {
	b.mu.Lock()
	b.launches = append(b.launches, target+" "+options)
	b.mu.Unlock()

	port := optionPort(options)
	if strings.Contains(options, "--script") {
		return doneHandle{out: "<nmaprun><script id=\"ftp-anon\"/></nmaprun>"}, nil
	}
	svc, ok := b.services[port]
	switch {
	case !ok:
		return doneHandle{err: errors.New("exit status 1")}, nil
	case svc == "filtered":
		return doneHandle{out: nmapXML(target, port, "filtered", "unknown")}, nil
	default:
		return doneHandle{out: nmapXML(target, port, "open", svc)}, nil
	}
}

func (b *portBackend) count(substr string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, l := range b.launches {
		if strings.Contains(l, substr) {
			n++
		}
	}
	return n
}

func optionPort(options string) string {
	fields := strings.Fields(options)
	for i, f := range fields {
		if f == "-p" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}

type doneHandle struct {
	out string
	err error
}

func (h doneHandle) IsRunning() bool { return false }
func (h doneHandle) Stdout() string  { return h.out }
func (h doneHandle) Err() error      { return h.err }

func TestPlan(t *testing.T) {
	t.Parallel()

	jobs := Plan([]string{"10.0.0.1", "10.0.0.2"}, []int{22, 80})
	assert.Equal(t, []scanner.Job{
		"10.0.0.1:22", "10.0.0.1:80",
		"10.0.0.2:22", "10.0.0.2:80",
	}, jobs)

	assert.Empty(t, Plan(nil, []int{80}))
	assert.Empty(t, Plan([]string{"10.0.0.1"}, nil))
}

func TestPlanFromSweep(t *testing.T) {
	t.Parallel()

	jobs := PlanFromSweep([]string{"10.0.0.2:443", "10.0.0.1:80", "10.0.0.2:443"})
	assert.Equal(t, []scanner.Job{"10.0.0.2:443", "10.0.0.1:80"}, jobs)
	assert.Empty(t, PlanFromSweep(nil))
}

// scriptedScanner returns a fixed outcome per job and adds web jobs to the
// registry the way the real worker does.
type scriptedScanner struct {
	reg   *registry.Registry
	probe *testutil.ConcurrencyProbe
	delay time.Duration
	web   map[scanner.Job]bool
	drop  map[scanner.Job]bool
	fail  map[scanner.Job]bool
}

func (s *scriptedScanner) Scan(ctx context.Context, job scanner.Job) (scanner.Outcome, error) {
	if s.probe != nil {
		s.probe.Enter()
		defer s.probe.Leave()
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return scanner.Outcome{Job: job, Status: scanner.OutcomeFailed}, ctx.Err()
		}
	}
	switch {
	case s.fail[job]:
		return scanner.Outcome{Job: job, Status: scanner.OutcomeFailed}, scanner.ErrScanFailed
	case s.drop[job]:
		return scanner.Outcome{Job: job, Status: scanner.OutcomeDiscarded}, nil
	}
	if s.web[job] {
		if err := s.reg.Add(string(job)); err != nil {
			return scanner.Outcome{Job: job, Status: scanner.OutcomeFailed}, err
		}
	}
	return scanner.Outcome{Job: job, Status: scanner.OutcomeSaved, Web: s.web[job]}, nil
}

func newTestDispatcher(t *testing.T, s *scriptedScanner, n int) *Dispatcher {
	t.Helper()
	return NewDispatcher(s, s.reg,
		WithConcurrency(n),
		WithResultsDir(t.TempDir()),
		WithProgress(ui.OutputModeSilent, io.Discard),
		WithDispatchLogger(quietLogger()),
	)
}

func TestDispatcher_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		jobs        int
		concurrency int
	}{
		{"more jobs than slots", 40, 4},
		{"single slot", 6, 1},
		{"fewer jobs than slots", 3, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reg := registry.New(registry.WithLogger(quietLogger()))
			probe := &testutil.ConcurrencyProbe{}
			s := &scriptedScanner{reg: reg, probe: probe, delay: 5 * time.Millisecond}

			jobs := make([]scanner.Job, tt.jobs)
			for i := range jobs {
				jobs[i] = scanner.NewJob("10.0.0.1", fmt.Sprint(1000+i))
			}

			sum := newTestDispatcher(t, s, tt.concurrency).Dispatch(context.Background(), jobs)

			assert.Equal(t, tt.jobs, sum.Saved)
			assert.LessOrEqual(t, probe.Peak(), int64(tt.concurrency))
			assert.LessOrEqual(t, sum.Peak, tt.concurrency)
		})
	}
}

func TestDispatcher_CountsOutcomes(t *testing.T) {
	t.Parallel()

	reg := registry.New(registry.WithLogger(quietLogger()))
	s := &scriptedScanner{
		reg:  reg,
		web:  map[scanner.Job]bool{"10.0.0.2:80": true, "10.0.0.1:80": true},
		drop: map[scanner.Job]bool{"10.0.0.1:443": true},
		fail: map[scanner.Job]bool{"10.0.0.3:22": true},
	}
	jobs := []scanner.Job{"10.0.0.2:80", "10.0.0.1:80", "10.0.0.1:443", "10.0.0.3:22", "10.0.0.1:22"}

	sum := newTestDispatcher(t, s, 2).Dispatch(context.Background(), jobs)

	assert.Equal(t, 5, sum.Jobs)
	assert.Equal(t, 3, sum.Saved)
	assert.Equal(t, 1, sum.Discarded)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, []string{"10.0.0.1:80", "10.0.0.2:80"}, sum.Web)
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, scanner.Job("10.0.0.3:22"), sum.Failures[0].Job)
	assert.ErrorIs(t, sum.Failures[0].Err, scanner.ErrScanFailed)

	assert.True(t, reg.Frozen())
	assert.ErrorIs(t, reg.Add("10.0.0.9:80"), registry.ErrFrozen)
}

func TestDispatcher_LogsFailuresOnce(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	reg := registry.New(registry.WithLogger(quietLogger()))
	s := &scriptedScanner{reg: reg, fail: map[scanner.Job]bool{"10.0.0.3:22": true}}
	d := NewDispatcher(s, reg,
		WithResultsDir(t.TempDir()),
		WithProgress(ui.OutputModeSilent, io.Discard),
		WithDispatchLogger(logging.New(&buf, logging.Options{Verbose: true})),
	)
	d.Dispatch(context.Background(), []scanner.Job{"10.0.0.3:22", "10.0.0.3:80"})

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "level=CRITICAL"))
	assert.Contains(t, out, "job=10.0.0.3:22")
	assert.Contains(t, out, "jobs/s")
}

func TestDispatcher_CancelledBeforeStart(t *testing.T) {
	t.Parallel()

	reg := registry.New(registry.WithLogger(quietLogger()))
	s := &scriptedScanner{reg: reg}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum := newTestDispatcher(t, s, 4).Dispatch(ctx, Plan([]string{"10.0.0.1"}, []int{22, 80, 443}))

	assert.Equal(t, 3, sum.Failed)
	for _, f := range sum.Failures {
		assert.ErrorIs(t, f.Err, runner.ErrCancelled)
	}
	assert.Empty(t, sum.Web)
}

func TestDispatcher_ConversionFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	regular := filepath.Join(root, defaults.DirNmapRegular)
	require.NoError(t, os.MkdirAll(regular, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(regular, "good.xml"),
		[]byte(nmapXML("10.0.0.1", "80", "open", "http")), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(regular, "broken.xml"), []byte("<nmaprun"), 0o644))

	reg := registry.New(registry.WithLogger(quietLogger()))
	d := NewDispatcher(&scriptedScanner{reg: reg}, reg,
		WithResultsDir(root),
		WithProgress(ui.OutputModeSilent, io.Discard),
		WithDispatchLogger(quietLogger()),
	)
	sum := d.Dispatch(context.Background(), []scanner.Job{"10.0.0.1:80"})

	assert.Equal(t, 1, sum.Saved)
	assert.Equal(t, 1, sum.Converted)
	require.Error(t, sum.ConvertErr)
	assert.Contains(t, sum.ConvertErr.Error(), "broken.xml")
	assert.FileExists(t, filepath.Join(root, defaults.DirNmapHTTP, "good.html"))
}

func baseConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		MassRate:    defaults.MassRate,
		MassPorts:   defaults.MassPorts,
		Concurrency: 4,
		NmapPath:    "nmap",
		ResultsDir:  filepath.Join(t.TempDir(), "results"),
	}
}

func testOptions(b scanner.Backend) Options {
	return Options{
		Backend:      b,
		Logger:       quietLogger(),
		ProgressMode: ui.OutputModeSilent,
		ProgressOut:  io.Discard,
		Now:          func() time.Time { return fixedNow },
		PollInterval: time.Millisecond,
	}
}

func TestRun_SkipSweep(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.IPs = "10.0.0.1-10.0.0.2"
	cfg.MassPorts = "21,80,443"
	cfg.SkipMass = true
	backend := &portBackend{services: map[string]string{"21": "ftp", "80": "http", "443": "filtered"}}

	res, err := Run(context.Background(), cfg, testOptions(backend))
	require.NoError(t, err)

	sum := res.Summary
	assert.Equal(t, 6, sum.Jobs)
	assert.Equal(t, 4, sum.Saved)
	assert.Equal(t, 2, sum.Discarded)
	assert.Equal(t, 0, sum.Failed)
	assert.Equal(t, 4, sum.Converted)
	assert.Equal(t, []string{"10.0.0.1:80", "10.0.0.2:80"}, sum.Web)
	assert.False(t, res.Interrupted)

	// one ftp-anon follow-up per FTP port
	assert.Equal(t, 2, backend.count("--script ftp-anon"))
	extras, err := filepath.Glob(filepath.Join(cfg.ResultsDir, defaults.DirNmapExtra, "nmap_xtra_*.xml"))
	require.NoError(t, err)
	assert.Len(t, extras, 2)

	primaries, err := filepath.Glob(filepath.Join(cfg.ResultsDir, defaults.DirNmapRegular, "*.xml"))
	require.NoError(t, err)
	assert.Len(t, primaries, 4)
	assert.FileExists(t, filepath.Join(cfg.ResultsDir, defaults.DirNmapRegular,
		scanner.ArtifactName("10.0.0.2", "80", fixedNow)))

	targets, err := os.ReadFile(filepath.Join(cfg.ResultsDir, defaults.TargetFile))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1\n10.0.0.2\n", string(targets))

	require.NotEmpty(t, res.ManifestPath)
	data, err := os.ReadFile(res.ManifestPath)
	require.NoError(t, err)
	var m report.Manifest
	require.NoError(t, jsonutil.Unmarshal(data, &m))
	assert.Equal(t, 2, m.Targets)
	assert.Equal(t, 6, m.Jobs)
	assert.Equal(t, []string{"10.0.0.1:80", "10.0.0.2:80"}, m.Web)
	assert.True(t, m.Settings.SkipSweep)
	assert.Equal(t, "21,80,443", m.Settings.Ports)

	require.NotEmpty(t, res.Phases)
	assert.Equal(t, "bulk sweep", res.Phases[0].Name)
	assert.Equal(t, PhaseSkipped, res.Phases[0].Status)
}

func TestRun_NoExtraScans(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.IPs = "10.0.0.1"
	cfg.MassPorts = "21"
	cfg.SkipMass = true
	cfg.NoExtraScans = true
	backend := &portBackend{services: map[string]string{"21": "ftp"}}

	res, err := Run(context.Background(), cfg, testOptions(backend))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.Saved)
	assert.Zero(t, backend.count("--script"))
}

func TestRun_JobFailuresDoNotFailRun(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.IPs = "10.0.0.1"
	cfg.MassPorts = "22,80"
	cfg.SkipMass = true
	backend := &portBackend{services: map[string]string{"80": "http"}}

	res, err := Run(context.Background(), cfg, testOptions(backend))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.Failed)
	assert.Equal(t, 1, res.Summary.Saved)
	assert.Equal(t, []string{"10.0.0.1:80"}, res.Summary.Web)
}

func TestRun_PreflightErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(cfg *config.Config)
	}{
		{"missing addresses", func(cfg *config.Config) { cfg.IPs = "" }},
		{"bad address", func(cfg *config.Config) { cfg.IPs = "10.0.0.300" }},
		{"bad port", func(cfg *config.Config) { cfg.IPs = "10.0.0.1"; cfg.MassPorts = "0-10" }},
		{"zero concurrency", func(cfg *config.Config) { cfg.IPs = "10.0.0.1"; cfg.Concurrency = 0 }},
		{"missing wordlist", func(cfg *config.Config) { cfg.IPs = "10.0.0.1"; cfg.Wordlist = "/nonexistent/words.txt" }},
		{"missing formats file", func(cfg *config.Config) { cfg.IPs = "10.0.0.1"; cfg.FormatsFile = "/nonexistent/formats.json" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := baseConfig(t)
			tt.setup(cfg)
			backend := &portBackend{}

			_, err := Run(context.Background(), cfg, testOptions(backend))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPreflight)
			assert.NoDirExists(t, cfg.ResultsDir)
			assert.Zero(t, backend.count(""))
		})
	}
}

// writeFormats writes a formats file whose masscan binary is masscanBin.
func writeFormats(t *testing.T, masscanBin string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "formats.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"scanners": [
		{"scanner": "masscan", "binary": "`+masscanBin+`", "ports": "-p %s", "targets": "-iL %s", "rate": "--rate %d", "output": "-oL %s"},
		{"scanner": "nmap", "ports": "-p %s"},
		{"scanner": "nmap_extra", "ports": "-p %s", "script": "--script %s"}
	]}`), 0o644))
	return path
}

func TestRun_MissingTools(t *testing.T) {
	t.Parallel()

	t.Run("masscan", func(t *testing.T) {
		t.Parallel()

		cfg := baseConfig(t)
		cfg.IPs = "10.0.0.1"
		cfg.FormatsFile = writeFormats(t, "/nonexistent/masscan")
		backend := &portBackend{}

		_, err := Run(context.Background(), cfg, testOptions(backend))
		assert.ErrorIs(t, err, ErrPreflight)
		assert.ErrorIs(t, err, ErrToolMissing)
		assert.Contains(t, err.Error(), "/nonexistent/masscan")
		assert.NoDirExists(t, cfg.ResultsDir)
		assert.Zero(t, backend.count(""))
	})

	t.Run("nmap", func(t *testing.T) {
		t.Parallel()

		cfg := baseConfig(t)
		cfg.IPs = "10.0.0.1"
		cfg.SkipMass = true
		cfg.NmapPath = "/nonexistent/nmap"
		_, err := Run(context.Background(), cfg, testOptions(nil))
		assert.ErrorIs(t, err, ErrToolMissing)
		assert.NoDirExists(t, cfg.ResultsDir)
	})

	t.Run("custom backend skips the nmap check", func(t *testing.T) {
		t.Parallel()

		cfg := baseConfig(t)
		cfg.IPs = "10.0.0.1"
		cfg.SkipMass = true
		cfg.MassPorts = "22"
		cfg.NmapPath = "/nonexistent/nmap"

		_, err := Run(context.Background(), cfg, testOptions(&portBackend{}))
		assert.NoError(t, err)
	})
}

func TestRun_SweepFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	tool := testutil.WriteExecutable(t, t.TempDir(), "masscan", "echo 'FAIL: no raw socket' >&2; exit 1")
	formatsFile := writeFormats(t, tool)

	cfg := baseConfig(t)
	cfg.IPs = "10.0.0.1"
	cfg.FormatsFile = formatsFile
	backend := &portBackend{}

	res, err := Run(context.Background(), cfg, testOptions(backend))
	require.NoError(t, err)
	assert.Equal(t, PhaseFailed, res.Phases[0].Status)
	assert.Zero(t, res.Summary.Jobs)
	assert.Zero(t, backend.count(""))
	assert.NotEmpty(t, res.Manifest.Errors)
	assert.FileExists(t, res.ManifestPath)
}

func TestRun_PagePulls(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/favicon.ico" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "<html><head><title>router login</title></head></html>")
	}))
	t.Cleanup(srv.Close)

	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)

	cfg := baseConfig(t)
	cfg.IPs = host
	cfg.MassPorts = port
	cfg.SkipMass = true
	cfg.PagePulls = true
	backend := &portBackend{services: map[string]string{port: "http"}}

	res, err := Run(context.Background(), cfg, testOptions(backend))
	require.NoError(t, err)

	require.Len(t, res.Enrichment, 1)
	assert.Equal(t, "pages", res.Enrichment[0].Name)
	assert.NoError(t, res.Enrichment[0].Err)

	index, err := os.ReadFile(filepath.Join(cfg.ResultsDir, defaults.DirPages, "index.json"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "router login")

	require.Len(t, res.Manifest.Enrichment, 1)
	assert.Empty(t, res.Manifest.Enrichment[0].Error)
}

func TestRun_EnrichmentSkippedWithoutWeb(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.IPs = "10.0.0.1"
	cfg.MassPorts = "22"
	cfg.SkipMass = true
	cfg.Nikto = true
	backend := &portBackend{services: map[string]string{"22": "ssh"}}

	res, err := Run(context.Background(), cfg, testOptions(backend))
	require.NoError(t, err)
	assert.Empty(t, res.Enrichment)

	last := res.Phases[len(res.Phases)-1]
	assert.Equal(t, "enrichment", last.Name)
	assert.Equal(t, PhaseSkipped, last.Status)
}

func TestRun_PDF(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.IPs = "10.0.0.1"
	cfg.MassPorts = "80"
	cfg.SkipMass = true
	cfg.PDF = true
	backend := &portBackend{services: map[string]string{"80": "http"}}

	res, err := Run(context.Background(), cfg, testOptions(backend))
	require.NoError(t, err)
	require.NotEmpty(t, res.PDFPath)
	assert.FileExists(t, res.PDFPath)
}

func TestRun_Interrupted(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.IPs = "10.0.0.1"
	cfg.MassPorts = "22,80"
	cfg.SkipMass = true
	backend := &portBackend{services: map[string]string{"22": "ssh", "80": "http"}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var (
		res *Result
		err error
	)
	testutil.AssertTimeout(t, "interrupted run", 5*time.Second, func() {
		res, err = Run(ctx, cfg, testOptions(backend))
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Interrupted)
	assert.Equal(t, 2, res.Summary.Failed)
	assert.FileExists(t, res.ManifestPath)
}
