package report

import (
	"io"

	"github.com/Ullaakut/nmap/v3"
)

// ParseNmapXML decodes one nmap XML document.
func ParseNmapXML(r io.Reader) (*nmap.Run, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var run nmap.Run
	if err := nmap.Parse(data, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// PrimaryAddress returns the first IP address of h, falling back to any
// address at all.
func PrimaryAddress(h nmap.Host) string {
	for _, a := range h.Addresses {
		if a.AddrType == "ipv4" || a.AddrType == "ipv6" {
			return a.Addr
		}
	}
	if len(h.Addresses) > 0 {
		return h.Addresses[0].Addr
	}
	return "unknown host"
}

// HostNames returns the DNS names nmap resolved for h.
func HostNames(h nmap.Host) []string {
	out := make([]string, 0, len(h.Hostnames))
	for _, n := range h.Hostnames {
		if n.Name != "" {
			out = append(out, n.Name)
		}
	}
	return out
}
