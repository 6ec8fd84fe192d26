// Command portsweep sweeps address ranges for open ports, scans each open
// port with nmap, and enriches the web services it finds.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/portsweep/portsweep/pkg/config"
	"github.com/portsweep/portsweep/pkg/defaults"
	"github.com/portsweep/portsweep/pkg/enrich"
	"github.com/portsweep/portsweep/pkg/logging"
	"github.com/portsweep/portsweep/pkg/pipeline"
	"github.com/portsweep/portsweep/pkg/ui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// run is main without the process exit, so tests can drive it.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	ui.SetOutput(stderr)

	if len(args) == 1 {
		switch args[0] {
		case "-version", "--version", "version":
			fmt.Fprintf(stderr, "%s %s\n", defaults.ToolName, defaults.Version)
			return defaults.ExitSuccess
		}
	}

	cfg, err := config.Parse(args)
	if errors.Is(err, flag.ErrHelp) {
		config.Usage(stderr)
		return defaults.ExitSuccess
	}
	if err != nil {
		return exitWithUsage(stderr, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return exitWithUsage(stderr, err.Error())
	}

	ui.SetNoColor(cfg.NoColor)
	ui.SetSilent(cfg.Quiet)
	log := logging.Setup(stderr, logging.Options{Verbose: cfg.Verbose, Quiet: cfg.Quiet})

	ui.PrintBanner()
	ui.PrintConfigBanner(configRows(cfg))

	stopNotice := context.AfterFunc(ctx, func() {
		ui.PrintWarning("Interrupt received, stopping scans and saving partial results...")
	})
	defer stopNotice()

	mode := ui.DefaultOutputMode()
	if cfg.Quiet {
		mode = ui.OutputModeSilent
	}
	res, err := pipeline.Run(ctx, cfg, pipeline.Options{
		Logger:       log,
		ProgressMode: mode,
		ProgressOut:  stderr,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrPreflight) {
			return exitWithError(defaults.ExitUserError, "%v", err)
		}
		return exitWithError(defaults.ExitInternalError, "%v", err)
	}

	m := res.Manifest
	ui.PrintSummary(ui.Summary{
		Targets:   m.Targets,
		Jobs:      m.Jobs,
		Saved:     m.Saved,
		Discarded: m.Discarded,
		Failed:    m.Failed,
		Web:       m.Web,
		Phases:    res.Phases,
		Elapsed:   m.Elapsed(),
		Results:   cfg.ResultsDir,
	})
	printEndpoints(m.Web)
	if m.Converted > 0 {
		ui.PrintInfo(fmt.Sprintf("%d HTML reports in %s", m.Converted, filepath.Join(cfg.ResultsDir, defaults.DirNmapHTTP)))
	}
	if res.Interrupted {
		ui.PrintWarning("Run interrupted; results are partial")
	}
	ui.PrintSuccess("Manifest written to " + res.ManifestPath)
	if res.PDFPath != "" {
		ui.PrintSuccess("PDF summary written to " + res.PDFPath)
	}
	return defaults.ExitSuccess
}

func printEndpoints(web []string) {
	if len(web) == 0 {
		return
	}
	ui.PrintSection("Web endpoints")
	for _, ep := range web {
		url, err := enrich.URLFor(ep)
		if err != nil {
			continue
		}
		ui.PrintEndpoint(ep, url)
	}
}

func configRows(cfg *config.Config) []ui.Option {
	sweep := "masscan " + cfg.MassPorts + " @ " + strconv.Itoa(cfg.MassRate) + " pps"
	if cfg.SkipMass {
		sweep = "skipped (ports " + cfg.MassPorts + ")"
	}
	var actions []string
	if cfg.Screenshot {
		actions = append(actions, "screenshot")
	}
	if cfg.PagePulls {
		actions = append(actions, "pages")
	}
	if cfg.Gobuster() {
		actions = append(actions, "gobuster")
	}
	if cfg.Nikto {
		actions = append(actions, "nikto")
	}
	rows := []ui.Option{
		{Name: "Targets", Value: cfg.IPs},
		{Name: "Sweep", Value: sweep},
		{Name: "Threads", Value: strconv.Itoa(cfg.Concurrency)},
		{Name: "Results", Value: cfg.ResultsDir},
	}
	if cfg.NoExtraScans {
		rows = append(rows, ui.Option{Name: "Extra scans", Value: "off"})
	}
	if len(actions) > 0 {
		rows = append(rows, ui.Option{Name: "Enrichment", Value: strings.Join(actions, ", ")})
	}
	if cfg.MetricsAddr != "" {
		rows = append(rows, ui.Option{Name: "Metrics", Value: cfg.MetricsAddr})
	}
	return rows
}
