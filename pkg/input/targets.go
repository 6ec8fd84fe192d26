// Package input turns user-supplied address specifications into concrete
// scan targets and persists them for the bulk sweep.
package input

import (
	"bufio"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
)

// MaxExpansion caps the number of addresses a single range or CIDR token
// may expand to (a /8 in IPv4 terms).
const MaxExpansion = 1 << 24

// ExpandAddresses returns every individual address named by spec, in input
// order. spec is either the path of a readable file with one token per
// line, or a comma-separated token list. A token is a CIDR block
// ("10.0.0.0/24"), an inclusive range ("10.0.0.1-10.0.0.9") or a single
// address. Any malformed token fails the whole expansion.
func ExpandAddresses(spec string) ([]netip.Addr, error) {
	tokens, err := readTokens(spec)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, ErrNoAddresses
	}

	var out []netip.Addr
	for _, tok := range tokens {
		addrs, err := expandToken(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, addrs...)
	}
	return out, nil
}

// readTokens resolves spec to its token list. Blank lines and '#'
// comments are skipped in files; empty comma segments are kept so they
// fail validation.
func readTokens(spec string) ([]string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, ErrNoAddresses
	}

	if info, err := os.Stat(spec); err == nil && info.Mode().IsRegular() {
		lines, err := readLines(spec)
		if err != nil {
			return nil, err
		}
		var tokens []string
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			tokens = append(tokens, line)
		}
		return tokens, nil
	}

	parts := strings.Split(spec, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func expandToken(tok string) ([]netip.Addr, error) {
	switch {
	case strings.Contains(tok, "/"):
		return expandCIDR(tok)
	case strings.Contains(tok, "-"):
		return expandRange(tok)
	default:
		addr, err := netip.ParseAddr(tok)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, tok)
		}
		return []netip.Addr{addr}, nil
	}
}

// expandCIDR returns every address in the block, network and broadcast
// addresses included, regardless of host bits set in tok.
func expandCIDR(tok string) ([]netip.Addr, error) {
	prefix, err := netip.ParsePrefix(tok)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, tok)
	}
	prefix = prefix.Masked()

	hostBits := prefix.Addr().BitLen() - prefix.Bits()
	if hostBits > 24 {
		return nil, fmt.Errorf("%w: %q", ErrExpansionTooLarge, tok)
	}

	count := 1 << hostBits
	out := make([]netip.Addr, 0, count)
	addr := prefix.Addr()
	for i := 0; i < count; i++ {
		out = append(out, addr)
		addr = addr.Next()
	}
	return out, nil
}

// expandRange returns start..end inclusive in ascending order.
func expandRange(tok string) ([]netip.Addr, error) {
	bounds := strings.SplitN(tok, "-", 2)
	start, err := netip.ParseAddr(strings.TrimSpace(bounds[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, tok)
	}
	end, err := netip.ParseAddr(strings.TrimSpace(bounds[1]))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, tok)
	}
	if start.BitLen() != end.BitLen() {
		return nil, fmt.Errorf("%w: %q mixes address families", ErrInvalidAddress, tok)
	}
	if start.Compare(end) > 0 {
		return nil, fmt.Errorf("%w: %q start is after end", ErrInvalidAddress, tok)
	}

	var out []netip.Addr
	for addr := start; ; addr = addr.Next() {
		if len(out) == MaxExpansion {
			return nil, fmt.Errorf("%w: %q", ErrExpansionTooLarge, tok)
		}
		out = append(out, addr)
		if addr == end {
			break
		}
	}
	return out, nil
}

// WriteTargetFile replaces path with one address per line. The file is
// written beside its final location and renamed into place, so a
// pre-existing list is never appended to or left half-written.
func WriteTargetFile(path string, addrs []netip.Addr) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".targets-*")
	if err != nil {
		return err
	}
	w := bufio.NewWriter(tmp)
	for _, a := range addrs {
		fmt.Fprintln(w, a.String())
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Strings renders addrs in their canonical text form.
func Strings(addrs []netip.Addr) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}
