// pkg/ui/liveprogress.go - Live progress display for the scan phase
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/portsweep/portsweep/pkg/duration"
)

// OutputMode determines how progress is displayed
type OutputMode int

const (
	// OutputModeInteractive - animated terminal output with ANSI escape codes
	OutputModeInteractive OutputMode = iota
	// OutputModeStreaming - line-by-line output for logs and CI, no ANSI codes
	OutputModeStreaming
	// OutputModeSilent - no progress output
	OutputModeSilent
)

// DefaultOutputMode returns Interactive when stderr is a terminal,
// Streaming otherwise.
func DefaultOutputMode() OutputMode {
	if StderrIsTerminal() {
		return OutputModeInteractive
	}
	return OutputModeStreaming
}

// LiveProgressConfig holds configuration for live progress display
type LiveProgressConfig struct {
	// Total number of items to process (0 = indeterminate)
	Total int

	Mode   OutputMode
	Writer io.Writer

	// Progress bar width (default: 30)
	BarWidth int

	// Title shown in progress (e.g., "Scanning")
	Title string

	// Unit name for items (e.g., "jobs")
	Unit string

	// Named counters shown beside the bar
	Metrics []MetricConfig

	// StreamInterval is how often to emit streaming updates (default: 1s)
	StreamInterval time.Duration
}

// MetricConfig defines a custom metric to track
type MetricConfig struct {
	Name      string // Internal name for tracking
	Label     string // Display label
	ColorCode string // ANSI color code, interactive mode only
	Highlight bool   // Red when > 0
}

// LiveProgress renders a completed/total bar plus named counters.
type LiveProgress struct {
	config    LiveProgressConfig
	startTime time.Time

	completed atomic.Int64
	total     atomic.Int64
	metrics   map[string]*atomic.Int64

	status atomic.Value

	done    chan struct{}
	wg      sync.WaitGroup
	running bool
	lines   int
	mu      sync.Mutex

	frameIdx int
}

// NewLiveProgress creates a new progress display
func NewLiveProgress(config LiveProgressConfig) *LiveProgress {
	if config.Writer == nil {
		config.Writer = os.Stderr
	}
	if config.BarWidth == 0 {
		config.BarWidth = min(30, max(10, TerminalWidth(80)/4))
	}
	if config.Unit == "" {
		config.Unit = "items"
	}
	if config.StreamInterval == 0 {
		config.StreamInterval = duration.StreamFast
	}

	lp := &LiveProgress{
		config:    config,
		done:      make(chan struct{}),
		metrics:   make(map[string]*atomic.Int64, len(config.Metrics)),
		startTime: time.Now(),
	}
	lp.total.Store(int64(config.Total))
	for _, m := range config.Metrics {
		lp.metrics[m.Name] = &atomic.Int64{}
	}
	lp.status.Store(config.Title)
	return lp
}

// NewScanProgress is the dispatcher's display: jobs completed out of total
// with web, discarded and failed counters.
func NewScanProgress(total int, mode OutputMode, w io.Writer) *LiveProgress {
	return NewLiveProgress(LiveProgressConfig{
		Total:  total,
		Mode:   mode,
		Writer: w,
		Title:  "Scanning",
		Unit:   "jobs",
		Metrics: []MetricConfig{
			{Name: "web", Label: "Web", ColorCode: "\033[34m"},
			{Name: "discarded", Label: "Discarded", ColorCode: "\033[90m"},
			{Name: "failed", Label: "Failed", Highlight: true},
		},
	})
}

// Start begins the progress display
func (lp *LiveProgress) Start() {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if lp.running || lp.config.Mode == OutputModeSilent {
		return
	}
	lp.running = true
	lp.startTime = time.Now()
	lp.done = make(chan struct{})

	lp.wg.Add(1)
	go lp.renderLoop()
}

// Stop halts the display after one final render.
func (lp *LiveProgress) Stop() {
	lp.mu.Lock()
	if !lp.running {
		lp.mu.Unlock()
		return
	}
	lp.running = false
	close(lp.done)
	lp.mu.Unlock()

	lp.wg.Wait()
	lp.render()
}

// Increment increases the completed count by 1
func (lp *LiveProgress) Increment() { lp.completed.Add(1) }

// SetCompleted sets the completed count directly
func (lp *LiveProgress) SetCompleted(n int) { lp.completed.Store(int64(n)) }

// AddMetric increments a named metric by 1
func (lp *LiveProgress) AddMetric(name string) {
	if c, ok := lp.metrics[name]; ok {
		c.Add(1)
	}
}

// GetMetric returns the current value of a named metric
func (lp *LiveProgress) GetMetric(name string) int64 {
	if c, ok := lp.metrics[name]; ok {
		return c.Load()
	}
	return 0
}

// SetStatus updates the current status/phase text
func (lp *LiveProgress) SetStatus(status string) { lp.status.Store(status) }

// GetCompleted returns the current completed count
func (lp *LiveProgress) GetCompleted() int64 { return lp.completed.Load() }

func (lp *LiveProgress) renderLoop() {
	defer lp.wg.Done()

	interval := duration.RenderTick
	if lp.config.Mode == OutputModeStreaming {
		interval = lp.config.StreamInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-lp.done:
			return
		case <-ticker.C:
			lp.render()
		}
	}
}

func (lp *LiveProgress) render() {
	switch lp.config.Mode {
	case OutputModeInteractive:
		lp.renderInteractive()
	case OutputModeStreaming:
		lp.renderStreaming()
	}
}

func (lp *LiveProgress) percent() (completed, total int64, pct float64) {
	completed, total = lp.completed.Load(), lp.total.Load()
	if total > 0 {
		pct = float64(completed) / float64(total) * 100
	}
	return completed, total, pct
}

func (lp *LiveProgress) renderInteractive() {
	completed, total, pct := lp.percent()
	elapsed := time.Since(lp.startTime)
	status, _ := lp.status.Load().(string)

	spinner := GetSpinner(SpinnerDots)
	frame := spinner.Frames[lp.frameIdx%len(spinner.Frames)]
	lp.frameIdx++

	eta := "calculating..."
	rate := float64(completed) / max(elapsed.Seconds(), 0.001)
	switch {
	case total > 0 && completed >= total:
		eta = "done"
	case rate > 0 && total > 0:
		eta = formatElapsedCompact(time.Duration(float64(total-completed) / rate * float64(time.Second)))
	}

	if lp.lines > 0 {
		fmt.Fprintf(lp.config.Writer, "\033[%dA\033[J", lp.lines)
	}
	fmt.Fprintf(lp.config.Writer, "  %s %s %s %.1f%% (%d/%d %s)\n",
		frame, status, lp.buildProgressBar(pct), pct, completed, total, lp.config.Unit)
	fmt.Fprintf(lp.config.Writer, "  %s  %s  ETA: %s\n",
		lp.buildMetricsString(true), formatElapsedCompact(elapsed), eta)
	lp.lines = 2
}

func (lp *LiveProgress) renderStreaming() {
	completed, total, pct := lp.percent()
	fmt.Fprintf(lp.config.Writer, "[%s] %d/%d (%.1f%%) %s\n",
		formatElapsedCompact(time.Since(lp.startTime)), completed, total, pct, lp.buildMetricsString(false))
}

func (lp *LiveProgress) buildProgressBar(percent float64) string {
	width := lp.config.BarWidth
	fillWidth := min(int(float64(width)*percent/100), width)

	fill := Icon("█", "#")
	empty := Icon("░", "-")
	return "[" + strings.Repeat(fill, fillWidth) + strings.Repeat(empty, width-fillWidth) + "]"
}

func (lp *LiveProgress) buildMetricsString(color bool) string {
	parts := make([]string, 0, len(lp.config.Metrics))
	for _, m := range lp.config.Metrics {
		val := lp.GetMetric(m.Name)
		if !color {
			parts = append(parts, fmt.Sprintf("%s=%d", strings.ToLower(m.Label), val))
			continue
		}
		code := m.ColorCode
		if code == "" {
			code = "\033[36m"
		}
		if m.Highlight && val > 0 {
			code = "\033[31m"
		}
		parts = append(parts, fmt.Sprintf("%s%s: %d\033[0m", code, m.Label, val))
	}
	if !color {
		return strings.Join(parts, " ")
	}
	return strings.Join(parts, "  ")
}

// formatElapsedCompact formats duration compactly
func formatElapsedCompact(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
