// Package screenshot captures PNG screenshots of discovered web endpoints
// with a shared headless Chrome.
package screenshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/portsweep/portsweep/pkg/defaults"
	"github.com/portsweep/portsweep/pkg/duration"
	"github.com/portsweep/portsweep/pkg/workerpool"
)

// ErrCaptureFailed is returned by CaptureURLs when any capture failed.
var ErrCaptureFailed = errors.New("screenshot: capture failed")

// Config configures screenshot capture
type Config struct {
	Width       int           // Viewport width
	Height      int           // Viewport height
	FullPage    bool          // Capture beyond the viewport
	WaitFor     time.Duration // Settle time after navigation
	Timeout     time.Duration // Per-page budget
	Concurrency int           // Open tabs at once
	OutputDir   string        // Output directory
	ChromePath  string        // Browser binary; empty uses chromedp's lookup
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Width:       1920,
		Height:      1080,
		WaitFor:     duration.BrowserIdle,
		Timeout:     duration.BrowserPage,
		Concurrency: defaults.ConcurrencyLow,
		OutputDir:   defaults.DirScreenshots,
	}
}

// Result represents a screenshot result
type Result struct {
	URL      string        `json:"url"`
	FilePath string        `json:"file_path"`
	Size     int64         `json:"size_bytes"`
	Duration time.Duration `json:"capture_duration"`
	Error    string        `json:"error,omitempty"`
}

// CaptureFunc renders url and returns PNG bytes.
type CaptureFunc func(ctx context.Context, url string, cfg Config) ([]byte, error)

// Option configures a Capturer.
type Option func(*Capturer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Capturer) { c.logger = l }
}

// WithCaptureFunc replaces the browser. The capturer then never starts
// Chrome itself.
func WithCaptureFunc(fn CaptureFunc) Option {
	return func(c *Capturer) {
		c.capture = fn
		c.ownBrowser = false
	}
}

// WithChromePath runs the given browser binary instead of the one found
// on PATH.
func WithChromePath(path string) Option {
	return func(c *Capturer) { c.config.ChromePath = path }
}

// Capturer captures screenshots
type Capturer struct {
	config     Config
	capture    CaptureFunc
	ownBrowser bool
	logger     *slog.Logger
}

// NewCapturer creates a screenshot capturer
func NewCapturer(config Config, opts ...Option) *Capturer {
	d := DefaultConfig()
	if config.Width <= 0 {
		config.Width = d.Width
	}
	if config.Height <= 0 {
		config.Height = d.Height
	}
	if config.Timeout <= 0 {
		config.Timeout = d.Timeout
	}
	if config.Concurrency <= 0 {
		config.Concurrency = d.Concurrency
	}

	c := &Capturer{
		config:     config,
		capture:    chromeCapture,
		ownBrowser: true,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CaptureURL captures one URL and writes <OutputDir>/<host>_<port>.png.
func (c *Capturer) CaptureURL(ctx context.Context, url string) (Result, error) {
	start := time.Now()
	result := Result{
		URL:      url,
		FilePath: filepath.Join(c.config.OutputDir, sanitizeFilename(url)+".png"),
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	data, err := c.capture(ctx, url, c.config)
	if err == nil {
		err = c.save(result.FilePath, data)
	}
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("%s: %w", url, err)
	}
	result.Size = int64(len(data))
	return result, nil
}

// CaptureURLs captures every URL with at most Concurrency tabs open, all
// sharing one browser. Results are in input order; partial results are
// returned with ErrCaptureFailed when any capture failed.
func (c *Capturer) CaptureURLs(ctx context.Context, urls []string) ([]Result, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	if c.ownBrowser {
		browserCtx, release := c.startBrowser(ctx)
		defer release()
		ctx = browserCtx
	}

	pool := workerpool.New(c.config.Concurrency)
	defer pool.Close()

	results := workerpool.Map(pool, urls, func(u string) Result {
		r, err := c.CaptureURL(ctx, u)
		if err != nil {
			c.logger.Warn("screenshot failed", slog.String("url", u), slog.String("error", err.Error()))
		}
		return r
	})

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return results, fmt.Errorf("%w: %d/%d", ErrCaptureFailed, failed, len(urls))
	}
	return results, nil
}

// startBrowser launches headless Chrome; tabs created from the returned
// context share it.
func (c *Capturer) startBrowser(ctx context.Context) (context.Context, func()) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(c.config.Width, c.config.Height),
		chromedp.UserAgent(defaults.UserAgent()),
	)
	if c.config.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(c.config.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	return browserCtx, func() {
		browserCancel()
		allocCancel()
	}
}

// chromeCapture opens url in a new tab of the browser carried by ctx (or a
// fresh one) and grabs a PNG.
func chromeCapture(ctx context.Context, url string, cfg Config) ([]byte, error) {
	tabCtx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	var buf []byte
	err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(int64(cfg.Width), int64(cfg.Height)),
		chromedp.Navigate(url),
		chromedp.Sleep(cfg.WaitFor),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				WithCaptureBeyondViewport(cfg.FullPage).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (c *Capturer) save(path string, data []byte) error {
	if len(data) == 0 {
		return errors.New("empty image")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// sanitizeFilename maps a URL to a flat file stem: "http://10.0.0.1:80"
// becomes "10.0.0.1_80".
func sanitizeFilename(url string) string {
	s := strings.TrimPrefix(url, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimRight(s, "/")

	replacer := strings.NewReplacer(
		"/", "_",
		":", "_",
		"?", "_",
		"&", "_",
		"=", "_",
		"#", "_",
		" ", "_",
		"[", "",
		"]", "",
	)
	s = replacer.Replace(s)

	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// ValidURL checks if a URL is valid for screenshotting
func ValidURL(url string) bool {
	if url == "" {
		return false
	}
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}
