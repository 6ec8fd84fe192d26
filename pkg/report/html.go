package report

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/sprig/v3"
	"github.com/Ullaakut/nmap/v3"

	"github.com/portsweep/portsweep/templates"
)

var (
	pageOnce sync.Once
	pageTmpl *template.Template
	pageErr  error
)

func pageTemplate() (*template.Template, error) {
	pageOnce.Do(func() {
		funcs := sprig.FuncMap()
		funcs["primaryAddress"] = PrimaryAddress
		funcs["hostNames"] = HostNames
		pageTmpl, pageErr = template.New("nmap.html.tmpl").
			Funcs(funcs).
			ParseFS(templates.FS, "report/nmap.html.tmpl")
	})
	return pageTmpl, pageErr
}

type pageData struct {
	Name string
	Run  *nmap.Run
}

// RenderHTML renders one parsed scan as a standalone HTML page.
func RenderHTML(name string, run *nmap.Run) ([]byte, error) {
	t, err := pageTemplate()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, pageData{Name: name, Run: run}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ConvertAll renders every *.xml file in srcDir to dstDir/<name>.html. A
// file that fails to parse or render does not stop the others; all
// failures come back joined, next to the count of pages written.
func ConvertAll(srcDir, dstDir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(srcDir, "*.xml"))
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, nil
	}
	sort.Strings(matches)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return 0, err
	}

	var errs []error
	converted := 0
	for _, src := range matches {
		if err := convertOne(src, dstDir); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(src), err))
			continue
		}
		converted++
	}
	return converted, errors.Join(errs...)
}

func convertOne(src, dstDir string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	run, err := ParseNmapXML(f)
	if err != nil {
		return err
	}

	name := strings.TrimSuffix(filepath.Base(src), ".xml")
	page, err := RenderHTML(name, run)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dstDir, name+".html"), page, 0o644)
}
