// Package formats loads the command templates for every external tool the
// pipeline drives and renders them with run-specific values.
//
// A formats file lists scanners, each an object whose "scanner" member
// names it and whose remaining members, in file order, are the parts of
// the command joined by single spaces:
//
//	{"scanners": [{"scanner": "nmap", "service": "-sV", "ports": "-p %s"}]}
//
// yields the nmap template "-sV -p %s".
package formats

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-json-experiment/json/jsontext"
	"gopkg.in/yaml.v3"

	"github.com/portsweep/portsweep/pkg/jsonutil"
	"github.com/portsweep/portsweep/templates"
)

// Scanner names the pipeline looks up.
const (
	Masscan   = "masscan"
	Nmap      = "nmap"
	NmapExtra = "nmap_extra"
	Gobuster  = "gobuster"
	Nikto     = "nikto"
)

const scannerKey = "scanner"

// Formats maps scanner names to command templates.
type Formats struct {
	templates map[string]string
}

// New builds a Formats from an explicit name → template map.
func New(m map[string]string) *Formats {
	f := &Formats{templates: make(map[string]string, len(m))}
	for k, v := range m {
		f.templates[k] = v
	}
	return f
}

// Load reads a formats file. Files ending in .yaml or .yml are parsed as
// YAML, everything else as JSON.
func Load(path string) (*Formats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// Default returns the formats bundled with the binary.
func Default() *Formats {
	data, err := templates.FS.ReadFile("formats.json")
	if err != nil {
		panic(fmt.Sprintf("formats: embedded formats.json: %v", err))
	}
	f, err := ParseJSON(data)
	if err != nil {
		panic(fmt.Sprintf("formats: embedded formats.json: %v", err))
	}
	return f
}

// Template returns the command template registered under name.
func (f *Formats) Template(name string) (string, error) {
	t, ok := f.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownScanner, name)
	}
	return t, nil
}

// Names returns the registered scanner names, sorted.
func (f *Formats) Names() []string {
	names := make([]string, 0, len(f.templates))
	for k := range f.templates {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ParseJSON parses the JSON form of a formats file, preserving member order.
func ParseJSON(data []byte) (*Formats, error) {
	top, err := jsonutil.OrderedFields(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormats, err)
	}

	f := &Formats{templates: make(map[string]string)}
	for _, field := range top {
		if field.Key != "scanners" {
			continue
		}
		var entries []jsontext.Value
		if err := jsonutil.Unmarshal(field.Value, &entries); err != nil {
			return nil, fmt.Errorf("%w: scanners: %v", ErrInvalidFormats, err)
		}
		for i, raw := range entries {
			members, err := jsonutil.OrderedFields(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: scanners[%d]: %v", ErrInvalidFormats, i, err)
			}
			var kv [][2]string
			for _, m := range members {
				var s string
				if err := jsonutil.Unmarshal(m.Value, &s); err != nil {
					return nil, fmt.Errorf("%w: scanners[%d].%s: %v", ErrInvalidFormats, i, m.Key, err)
				}
				kv = append(kv, [2]string{m.Key, s})
			}
			if err := f.add(i, kv); err != nil {
				return nil, err
			}
		}
	}
	if len(f.templates) == 0 {
		return nil, fmt.Errorf("%w: no scanners defined", ErrInvalidFormats)
	}
	return f, nil
}

// ParseYAML parses the YAML form of a formats file, preserving key order.
func ParseYAML(data []byte) (*Formats, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormats, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping", ErrInvalidFormats)
	}

	f := &Formats{templates: make(map[string]string)}
	root := doc.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "scanners" {
			continue
		}
		seq := root.Content[i+1]
		if seq.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("%w: scanners must be a list", ErrInvalidFormats)
		}
		for n, entry := range seq.Content {
			if entry.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("%w: scanners[%d] must be a mapping", ErrInvalidFormats, n)
			}
			var kv [][2]string
			for j := 0; j+1 < len(entry.Content); j += 2 {
				val := entry.Content[j+1]
				if val.Kind != yaml.ScalarNode {
					return nil, fmt.Errorf("%w: scanners[%d].%s must be a string", ErrInvalidFormats, n, entry.Content[j].Value)
				}
				kv = append(kv, [2]string{entry.Content[j].Value, val.Value})
			}
			if err := f.add(n, kv); err != nil {
				return nil, err
			}
		}
	}
	if len(f.templates) == 0 {
		return nil, fmt.Errorf("%w: no scanners defined", ErrInvalidFormats)
	}
	return f, nil
}

// add joins every non-name member of one scanner entry into its template.
func (f *Formats) add(index int, kv [][2]string) error {
	var name string
	parts := make([]string, 0, len(kv))
	for _, p := range kv {
		if p[0] == scannerKey {
			name = p[1]
			continue
		}
		parts = append(parts, p[1])
	}
	if name == "" {
		return fmt.Errorf("%w: scanners[%d] has no %q member", ErrInvalidFormats, index, scannerKey)
	}
	f.templates[name] = strings.Join(parts, " ")
	return nil
}
