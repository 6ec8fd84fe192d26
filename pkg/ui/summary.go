package ui

import (
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Phase is one step of a run as reported in the final summary.
type Phase struct {
	Name     string // e.g. "bulk sweep", "html conversion"
	Status   string // "ok", "failed" or "skipped"
	Detail   string
	Duration time.Duration
}

// Summary is the end-of-run report.
type Summary struct {
	Targets   int
	Jobs      int
	Saved     int
	Discarded int
	Failed    int
	Web       []string
	Phases    []Phase
	Elapsed   time.Duration
	Results   string
}

var titleCaser = cases.Title(language.English)

// PrintSummary prints the run summary: phase table, job counts and web
// endpoints.
func PrintSummary(s Summary) {
	if IsSilent() {
		return
	}
	w := writer()
	PrintSection("Summary")

	for _, p := range s.Phases {
		status := OutcomeStyle(p.Status).Render(fmt.Sprintf("%-8s", p.Status))
		line := fmt.Sprintf("  %s %s", ConfigLabelStyle.Render(titleCaser.String(p.Name)), status)
		if p.Duration > 0 {
			line += " " + StatLabelStyle.Render(formatElapsedCompact(p.Duration))
		}
		if p.Detail != "" {
			line += "  " + p.Detail
		}
		fmt.Fprintln(w, line)
	}
	if len(s.Phases) > 0 {
		fmt.Fprintln(w)
	}

	row := func(label string, v int, outcome string) {
		value := StatValueStyle.Render(fmt.Sprint(v))
		if outcome != "" && v > 0 {
			value = OutcomeStyle(outcome).Render(fmt.Sprint(v))
		}
		fmt.Fprintf(w, "  %s %s\n", ConfigLabelStyle.Render(label), value)
	}
	row("Targets", s.Targets, "")
	row("Jobs", s.Jobs, "")
	row("Saved", s.Saved, "saved")
	row("Discarded", s.Discarded, "discarded")
	row("Failed", s.Failed, "failed")
	row("Web endpoints", len(s.Web), "web")
	fmt.Fprintf(w, "  %s %s\n", ConfigLabelStyle.Render("Elapsed"), StatValueStyle.Render(formatElapsedCompact(s.Elapsed)))
	if s.Results != "" {
		fmt.Fprintf(w, "  %s %s\n", ConfigLabelStyle.Render("Results"), s.Results)
	}
	fmt.Fprintln(w)
}
