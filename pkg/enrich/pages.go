package enrich

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spaolacci/murmur3"
	"golang.org/x/net/html"

	"github.com/portsweep/portsweep/pkg/defaults"
	"github.com/portsweep/portsweep/pkg/httpclient"
	"github.com/portsweep/portsweep/pkg/iohelper"
	"github.com/portsweep/portsweep/pkg/jsonutil"
	"github.com/portsweep/portsweep/pkg/ratelimit"
	"github.com/portsweep/portsweep/pkg/retry"
	"github.com/portsweep/portsweep/pkg/workerpool"
)

// Page is one row of the page-pull index.
type Page struct {
	Endpoint    string `json:"endpoint"`
	URL         string `json:"url"`
	Status      int    `json:"status,omitempty"`
	Title       string `json:"title,omitempty"`
	Bytes       int    `json:"bytes"`
	Truncated   bool   `json:"truncated,omitempty"`
	File        string `json:"file,omitempty"`
	FaviconHash *int32 `json:"favicon_mmh3,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Pages fetches each endpoint's root page and favicon, saving the raw HTML
// and an index.json under Dir.
type Pages struct {
	Dir         string
	Client      *http.Client
	Limiter     *ratelimit.Limiter
	Retry       retry.Config
	Concurrency int
	Logger      *slog.Logger
}

// NewPages returns a page puller writing to dir with default transport,
// retry and pacing.
func NewPages(dir string) *Pages {
	return &Pages{
		Dir:         dir,
		Client:      httpclient.Default(),
		Limiter:     ratelimit.NewPerHost(defaults.ConcurrencyLow),
		Retry:       retry.DefaultConfig(),
		Concurrency: defaults.ConcurrencyLow,
		Logger:      slog.Default(),
	}
}

func (p *Pages) Name() string { return NamePages }

func (p *Pages) Run(ctx context.Context, endpoints []string) error {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return err
	}

	pool := workerpool.New(p.Concurrency)
	pages := workerpool.Map(pool, endpoints, func(ep string) Page {
		return p.pull(ctx, ep)
	})
	pool.Close()

	errs := make([]error, len(pages))
	for i, pg := range pages {
		if pg.Error != "" {
			errs[i] = fmt.Errorf("%s: %s", pg.Endpoint, pg.Error)
		}
	}
	if err := jsonutil.WriteFile(filepath.Join(p.Dir, "index.json"), pages); err != nil {
		return err
	}
	return partial(errs, len(endpoints))
}

func (p *Pages) pull(ctx context.Context, endpoint string) Page {
	pg := Page{Endpoint: endpoint}
	u, err := URLFor(endpoint)
	if err != nil {
		pg.Error = err.Error()
		return pg
	}
	pg.URL = u
	stem, _ := FileStem(endpoint)

	status, body, truncated, err := p.fetch(ctx, u, iohelper.MaxPageSize)
	if err != nil {
		pg.Error = err.Error()
		return pg
	}
	pg.Status = status
	pg.Bytes = len(body)
	pg.Truncated = truncated
	pg.Title = Title(body)

	file := filepath.Join(p.Dir, stem+".html")
	if err := os.WriteFile(file, body, 0o644); err != nil {
		pg.Error = err.Error()
		return pg
	}
	pg.File = filepath.Base(file)

	favURL, _ := url.JoinPath(u, "favicon.ico")
	if st, icon, _, err := p.fetch(ctx, favURL, iohelper.MaxFaviconSize); err == nil && st == http.StatusOK && len(icon) > 0 {
		h := FaviconHash(icon)
		pg.FaviconHash = &h
	} else if err != nil {
		p.Logger.Debug("favicon fetch failed", slog.String("url", favURL), slog.String("error", err.Error()))
	}
	return pg
}

// fetch GETs u with retries on transport errors, 429 and 5xx.
func (p *Pages) fetch(ctx context.Context, u string, limit int64) (status int, body []byte, truncated bool, err error) {
	host := u
	if parsed, perr := url.Parse(u); perr == nil {
		host = parsed.Host
	}

	err = retry.Do(ctx, p.Retry, func(attempt int) error {
		if err := p.Limiter.WaitForHost(ctx, host); err != nil {
			return retry.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("User-Agent", defaults.UserAgent())

		resp, err := p.Client.Do(req)
		if err != nil {
			return err
		}
		defer iohelper.DrainAndClose(resp.Body)

		status = resp.StatusCode
		if status == http.StatusTooManyRequests || status >= 500 {
			return fmt.Errorf("HTTP %d", status)
		}
		body, truncated, err = iohelper.ReadLimited(resp.Body, limit)
		return err
	})
	return status, body, truncated, err
}

// Title returns the first <title> text in page, whitespace-collapsed.
func Title(page []byte) string {
	z := html.NewTokenizer(bytes.NewReader(page))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) != "title" {
				continue
			}
			if z.Next() != html.TextToken {
				return ""
			}
			return strings.Join(strings.Fields(string(z.Text())), " ")
		}
	}
}

// FaviconHash is the Shodan-style favicon fingerprint: the signed 32-bit
// murmur3 hash of the icon's MIME base64 encoding (76-char lines, each
// newline-terminated).
func FaviconHash(icon []byte) int32 {
	return int32(murmur3.Sum32(mimeBase64(icon)))
}

func mimeBase64(data []byte) []byte {
	enc := base64.StdEncoding.EncodeToString(data)
	var b bytes.Buffer
	for len(enc) > 76 {
		b.WriteString(enc[:76])
		b.WriteByte('\n')
		enc = enc[76:]
	}
	if len(enc) > 0 {
		b.WriteString(enc)
		b.WriteByte('\n')
	}
	return b.Bytes()
}

