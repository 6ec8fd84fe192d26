package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/portsweep/portsweep/pkg/defaults"
)

// Global UI state
var (
	silentMode  bool
	noColorMode bool
	out         io.Writer = os.Stderr
	uiMu        sync.RWMutex
)

// SetSilent enables or disables silent mode (suppresses informational output)
func SetSilent(silent bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	silentMode = silent
}

// IsSilent returns whether silent mode is enabled
func IsSilent() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return silentMode
}

// SetNoColor disables colored output
func SetNoColor(noColor bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	noColorMode = noColor
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsNoColor returns whether color is disabled
func IsNoColor() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return noColorMode
}

// SetOutput redirects Print* output (stderr by default).
func SetOutput(w io.Writer) {
	uiMu.Lock()
	defer uiMu.Unlock()
	out = w
}

func writer() io.Writer {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return out
}

const bannerArt = `
                    __                              
    ____  ____  _____/ /________      _____  ___  ____ 
   / __ \/ __ \/ ___/ __/ ___/ | /| / / _ \/ _ \/ __ \
  / /_/ / /_/ / /  / /_(__  )| |/ |/ /  __/  __/ /_/ /
 / .___/\____/_/   \__/____/ |__/|__/\___/\___/ .___/ 
/_/                                          /_/      
`

const bannerSeparator = "________________________________________________"

// PrintBanner prints the application banner with version info
func PrintBanner() {
	if IsSilent() {
		return
	}
	w := writer()
	for _, line := range strings.Split(bannerArt, "\n") {
		if line != "" {
			fmt.Fprintln(w, BannerStyle.Render(line))
		}
	}
	fmt.Fprintf(w, "                       v%s\n\n", VersionStyle.Render(defaults.Version))
}

// Option is one row of the configuration banner.
type Option struct {
	Name  string
	Value string
}

// PrintConfigBanner prints the run settings, in order, before execution.
// Empty values are skipped.
func PrintConfigBanner(options []Option) {
	if IsSilent() {
		return
	}
	w := writer()
	for _, o := range options {
		if o.Value == "" {
			continue
		}
		fmt.Fprintf(w, " :: %s : %s\n", ConfigLabelStyle.Render(o.Name), ConfigValueStyle.Render(o.Value))
	}
	fmt.Fprintf(w, "%s\n\n", DividerStyle.Render(bannerSeparator))
}

// PrintDivider prints a stylized divider
func PrintDivider() {
	fmt.Fprintln(writer(), DividerStyle.Render(strings.Repeat("-", 60)))
}

// PrintSection prints a section header
func PrintSection(title string) {
	if IsSilent() {
		return
	}
	w := writer()
	fmt.Fprintln(w)
	fmt.Fprintln(w, SectionStyle.Render("> "+title))
	PrintDivider()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	if IsSilent() {
		return
	}
	fmt.Fprintln(writer(), SuccessStyle.Render("  [+] "+message))
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	if IsSilent() {
		return
	}
	fmt.Fprintf(writer(), "  %s %s\n", SpinnerStyle.Render("*"), message)
}

// PrintWarning prints a warning message. Shown even in silent mode.
func PrintWarning(message string) {
	fmt.Fprintln(writer(), WarningStyle.Render("  [!] "+SanitizeString(message)))
}

// PrintError prints an error message. Shown even in silent mode.
func PrintError(message string) {
	fmt.Fprintln(writer(), ErrorStyle.Render("  [X] "+SanitizeString(message)))
}

// PrintEndpoint prints a discovered web endpoint as it is found.
func PrintEndpoint(endpoint, url string) {
	if IsSilent() {
		return
	}
	fmt.Fprintf(writer(), "  %s %s %s\n", OutcomeStyle("web").Render("[web]"), endpoint, URLStyle.Render(url))
}
