// Package templates embeds the bundled defaults shipped with the binary:
// the scanner command formats and the HTML report layout.
//
// Usage:
//
//	data, _ := templates.FS.ReadFile("formats.json")
package templates

import "embed"

// FS contains formats.json and the report/*.tmpl layouts.
//
//go:embed formats.json report/*.tmpl
var FS embed.FS
