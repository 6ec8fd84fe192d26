package enrich

import (
	"context"
	"log/slog"

	"github.com/portsweep/portsweep/pkg/screenshot"
)

// Screenshots captures every endpoint with a shared headless browser.
type Screenshots struct {
	Capturer *screenshot.Capturer
}

// NewScreenshots writes PNGs to dir.
func NewScreenshots(dir string, logger *slog.Logger, opts ...screenshot.Option) *Screenshots {
	cfg := screenshot.DefaultConfig()
	cfg.OutputDir = dir
	if logger != nil {
		opts = append([]screenshot.Option{screenshot.WithLogger(logger)}, opts...)
	}
	return &Screenshots{Capturer: screenshot.NewCapturer(cfg, opts...)}
}

func (s *Screenshots) Name() string { return NameScreenshot }

func (s *Screenshots) Run(ctx context.Context, endpoints []string) error {
	urls := make([]string, 0, len(endpoints))
	var errs []error
	for _, ep := range endpoints {
		u, err := URLFor(ep)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		urls = append(urls, u)
	}
	_, err := s.Capturer.CaptureURLs(ctx, urls)
	return partial(append(errs, err), len(endpoints))
}
