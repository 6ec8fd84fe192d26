// Package portspec validates and expands comma-separated port
// specifications such as "22,80,8000-8100".
package portspec

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/portsweep/portsweep/pkg/defaults"
)

// Validate checks every segment of spec and returns the normalized form:
// canonical decimal segments joined by commas, in input order. A single trailing
// comma is tolerated and dropped. Ports are never clamped or skipped; the
// first bad segment fails the whole spec.
func Validate(spec string) (string, error) {
	segments, err := split(spec)
	if err != nil {
		return "", err
	}
	for i, seg := range segments {
		lo, hi, err := bounds(seg)
		if err != nil {
			return "", err
		}
		// re-rendered so "+80" and "080" come out as "80"
		if strings.Contains(seg, "-") {
			segments[i] = strconv.Itoa(lo) + "-" + strconv.Itoa(hi)
		} else {
			segments[i] = strconv.Itoa(lo)
		}
	}
	return strings.Join(segments, ","), nil
}

// Expand returns the ascending, deduplicated set of ports named by spec.
func Expand(spec string) ([]int, error) {
	segments, err := split(spec)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]struct{})
	for _, seg := range segments {
		lo, hi, err := bounds(seg)
		if err != nil {
			return nil, err
		}
		for p := lo; p <= hi; p++ {
			seen[p] = struct{}{}
		}
	}

	ports := make([]int, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	slices.Sort(ports)
	return ports, nil
}

func split(spec string) ([]string, error) {
	spec = strings.TrimSpace(spec)
	spec = strings.TrimSuffix(spec, ",")
	if strings.TrimSpace(spec) == "" {
		return nil, fmt.Errorf("%w: empty port spec", ErrInvalidPort)
	}

	parts := strings.Split(spec, ",")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPort, spec)
		}
		parts[i] = p
	}
	return parts, nil
}

// bounds parses a bare port or an "a-b" range into an inclusive interval.
func bounds(seg string) (int, int, error) {
	if !strings.Contains(seg, "-") {
		p, err := parsePort(seg)
		return p, p, err
	}

	first, last, _ := strings.Cut(seg, "-")
	lo, err := parsePort(strings.TrimSpace(first))
	if err != nil {
		return 0, 0, err
	}
	hi, err := parsePort(strings.TrimSpace(last))
	if err != nil {
		return 0, 0, err
	}
	if lo > hi {
		return 0, 0, fmt.Errorf("%w: range %q start greater than end", ErrInvalidPort, seg)
	}
	return lo, hi, nil
}

func parsePort(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidPort, s)
	}
	if v < defaults.PortMin || v > defaults.PortMax {
		return 0, fmt.Errorf("%w: %d outside %d-%d", ErrInvalidPort, v, defaults.PortMin, defaults.PortMax)
	}
	return v, nil
}
