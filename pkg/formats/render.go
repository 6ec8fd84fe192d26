package formats

import (
	"fmt"
	"strings"
)

// Sites counts the substitution sites in tmpl. %s, %d and %v are sites;
// %% is a literal percent sign. Any other % sequence is copied verbatim.
func Sites(tmpl string) int {
	n := 0
	for i := 0; i < len(tmpl)-1; i++ {
		if tmpl[i] != '%' {
			continue
		}
		switch tmpl[i+1] {
		case 's', 'd', 'v':
			n++
			i++
		case '%':
			i++
		}
	}
	return n
}

// Render fills the sites of tmpl with args in order.
func Render(tmpl string, args ...any) (string, error) {
	if got := Sites(tmpl); got != len(args) {
		return "", fmt.Errorf("%w: %q has %d sites, got %d values", ErrPlaceholderMismatch, tmpl, got, len(args))
	}

	var b strings.Builder
	b.Grow(len(tmpl) + 16*len(args))
	next := 0
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c != '%' || i == len(tmpl)-1 {
			b.WriteByte(c)
			continue
		}
		switch tmpl[i+1] {
		case 's', 'd', 'v':
			fmt.Fprint(&b, args[next])
			next++
			i++
		case '%':
			b.WriteByte('%')
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// Primary renders a primary scan command for port.
func Primary(tmpl, port string) (string, error) {
	return Render(tmpl, port)
}

// Extra renders a secondary probe command: port first, then script.
func Extra(tmpl, port, script string) (string, error) {
	return Render(tmpl, port, script)
}

// Bulk renders the bulk sweep command.
func Bulk(tmpl, ports, targetFile string, rate int, outputPrefix string) (string, error) {
	return Render(tmpl, ports, targetFile, rate, outputPrefix)
}

// Enrichment renders a tool command taking a URL and an output path.
func Enrichment(tmpl, url, outPath string) (string, error) {
	return Render(tmpl, url, outPath)
}

// EnrichmentWithOption renders a tool command taking a URL, one extra
// option value (a wordlist, say) and an output path.
func EnrichmentWithOption(tmpl, url, option, outPath string) (string, error) {
	return Render(tmpl, url, option, outPath)
}
