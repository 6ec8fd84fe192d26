package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/portsweep/portsweep/pkg/defaults"
	"github.com/portsweep/portsweep/pkg/duration"
	"github.com/portsweep/portsweep/pkg/formats"
	"github.com/portsweep/portsweep/pkg/proc"
	"github.com/portsweep/portsweep/pkg/workerpool"
)

// Tool runs an external program once per endpoint, writing
// <Dir>/<ip>_<port>.txt. Option, when set, is passed as the middle
// template argument (gobuster's wordlist).
type Tool struct {
	ToolName    string
	Template    string
	Option      string
	Dir         string
	Timeout     time.Duration
	Concurrency int
	Logger      *slog.Logger
}

// NewGobuster returns the gobuster action for the given template and
// wordlist.
func NewGobuster(tmpl, wordlist, dir string) *Tool {
	return newTool(NameGobuster, tmpl, wordlist, dir)
}

// NewNikto returns the nikto action.
func NewNikto(tmpl, dir string) *Tool {
	return newTool(NameNikto, tmpl, "", dir)
}

func newTool(name, tmpl, option, dir string) *Tool {
	return &Tool{
		ToolName:    name,
		Template:    tmpl,
		Option:      option,
		Dir:         dir,
		Timeout:     duration.ToolTimeout,
		Concurrency: defaults.ConcurrencyMinimal,
		Logger:      slog.Default(),
	}
}

func (t *Tool) Name() string { return t.ToolName }

func (t *Tool) Run(ctx context.Context, endpoints []string) error {
	if err := os.MkdirAll(t.Dir, 0o755); err != nil {
		return err
	}

	pool := workerpool.New(t.Concurrency)
	errs := workerpool.Map(pool, endpoints, func(ep string) error {
		return t.runOne(ctx, ep)
	})
	pool.Close()
	return partial(errs, len(endpoints))
}

func (t *Tool) runOne(ctx context.Context, endpoint string) error {
	u, err := URLFor(endpoint)
	if err != nil {
		return err
	}
	stem, _ := FileStem(endpoint)
	out := filepath.Join(t.Dir, stem+".txt")

	var line string
	if t.Option != "" {
		line, err = formats.EnrichmentWithOption(t.Template, u, t.Option, out)
	} else {
		line, err = formats.Enrichment(t.Template, u, out)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	name, args := proc.Command(line)
	t.Logger.Debug("running tool", slog.String("tool", t.ToolName), slog.String("cmd", line))
	res, err := proc.Run(ctx, name, args)
	if err != nil {
		if res != nil && strings.TrimSpace(res.Stderr) != "" {
			return fmt.Errorf("%s: %w: %s", endpoint, err, strings.TrimSpace(res.Stderr))
		}
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	return nil
}
