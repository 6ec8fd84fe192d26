// Package report turns scan artifacts into browsable output: nmap XML is
// rendered to standalone HTML pages, and each run is summarised in a JSON
// manifest and an optional one-page PDF.
package report
