package ui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	Primary   = lipgloss.Color("#2E86DE") // Blue - brand color
	Secondary = lipgloss.Color("#00D4AA") // Cyan/Teal

	Success = lipgloss.Color("#00D26A") // Bright green
	Warning = lipgloss.Color("#FFB800") // Amber
	Error   = lipgloss.Color("#FF3838") // Red
	Muted   = lipgloss.Color("#6B7280") // Gray
	Bright  = lipgloss.Color("#FAFAFA")

	// Scan outcome colors
	Saved     = lipgloss.Color("#00D26A") // Green - artifact written
	Discarded = lipgloss.Color("#6B7280") // Gray - filtered port
	Failed    = lipgloss.Color("#FF3838") // Red
	Web       = lipgloss.Color("#4D96FF") // Blue - web endpoint
)

// Pre-configured styles
var (
	BannerStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	VersionStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	SectionStyle = lipgloss.NewStyle().
			Foreground(Bright).
			Bold(true).
			MarginTop(1)

	ConfigLabelStyle = lipgloss.NewStyle().
				Foreground(Muted).
				Width(18)

	ConfigValueStyle = lipgloss.NewStyle().
				Foreground(Bright)

	StatLabelStyle = lipgloss.NewStyle().
			Foreground(Muted)

	StatValueStyle = lipgloss.NewStyle().
			Foreground(Bright).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	DividerStyle = lipgloss.NewStyle().
			Foreground(Muted)

	URLStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Underline(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(Primary)
)

// OutcomeStyle returns the style for a scan outcome ("saved", "discarded",
// "failed") or phase status ("ok", "skipped").
func OutcomeStyle(outcome string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch outcome {
	case "saved", "ok":
		return base.Foreground(Saved)
	case "discarded", "skipped":
		return base.Foreground(Discarded)
	case "failed":
		return base.Foreground(Failed)
	case "web":
		return base.Foreground(Web)
	default:
		return base.Foreground(Muted)
	}
}
