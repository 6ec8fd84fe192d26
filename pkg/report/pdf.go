package report

import (
	"fmt"
	"strings"
	"time"

	gofpdf "github.com/go-pdf/fpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// maxPDFEndpoints keeps the summary on one page.
const maxPDFEndpoints = 40

// WritePDF renders a one-page run summary.
func WritePDF(path string, m *Manifest) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("%s run %s", m.Tool, m.RunID), true)
	pdf.SetAutoPageBreak(false, 15)
	pdf.AddPage()

	title := cases.Title(language.English)

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, title.String(m.Tool)+" Scan Summary", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 5, fmt.Sprintf("Run %s  |  version %s", m.RunID, m.Version), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("%s to %s (%s)",
		m.Started.Format(time.RFC3339), m.Finished.Format(time.RFC3339), m.Elapsed().Round(time.Second)),
		"", 1, "L", false, 0, "")
	pdf.Ln(4)
	pdf.SetTextColor(0, 0, 0)

	section := func(name string) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, title.String(name), "B", 1, "L", false, 0, "")
		pdf.Ln(1)
		pdf.SetFont("Helvetica", "", 10)
	}
	row := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(45, 6, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, value, "", 1, "L", false, 0, "")
	}

	section("settings")
	row("Addresses", truncate(m.Settings.Addresses, 80))
	row("Ports", truncate(m.Settings.Ports, 80))
	row("Bulk sweep", onOff(!m.Settings.SkipSweep))
	row("Concurrency", fmt.Sprint(m.Settings.Concurrency))
	row("Secondary probes", onOff(!m.Settings.NoExtra))
	pdf.Ln(3)

	section("scan results")
	row("Targets", fmt.Sprint(m.Targets))
	row("Jobs", fmt.Sprint(m.Jobs))
	row("Saved", fmt.Sprint(m.Saved))
	row("Discarded", fmt.Sprint(m.Discarded))
	row("Failed", fmt.Sprint(m.Failed))
	row("HTML reports", fmt.Sprint(m.Converted))
	pdf.Ln(3)

	section("web endpoints")
	if len(m.Web) == 0 {
		pdf.CellFormat(0, 6, "None discovered.", "", 1, "L", false, 0, "")
	}
	for i, ep := range m.Web {
		if i == maxPDFEndpoints {
			pdf.CellFormat(0, 5, fmt.Sprintf("... and %d more (see manifest.json)", len(m.Web)-i), "", 1, "L", false, 0, "")
			break
		}
		pdf.CellFormat(0, 5, ep, "", 1, "L", false, 0, "")
	}

	if len(m.Enrichment) > 0 {
		pdf.Ln(3)
		section("enrichment")
		for _, a := range m.Enrichment {
			status := "ok"
			if a.Error != "" {
				status = "failed: " + truncate(a.Error, 70)
			}
			row(title.String(a.Name), status)
		}
	}

	return pdf.OutputFileAndClose(path)
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
