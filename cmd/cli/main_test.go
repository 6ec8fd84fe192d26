package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portsweep/portsweep/pkg/config"
	"github.com/portsweep/portsweep/pkg/defaults"
	"github.com/portsweep/portsweep/pkg/ui"
)

// run touches package-level ui state, so these tests are not parallel.

func TestRun_Help(t *testing.T) {
	var out bytes.Buffer
	code := run(context.Background(), []string{"-h"}, &out)
	assert.Equal(t, defaults.ExitSuccess, code)
	assert.Contains(t, out.String(), "Usage: portsweep")
	assert.Contains(t, out.String(), "-mass-ports")
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	code := run(context.Background(), []string{"-version"}, &out)
	assert.Equal(t, defaults.ExitSuccess, code)
	assert.Equal(t, "portsweep "+defaults.Version+"\n", out.String())
}

func TestRun_UserErrors(t *testing.T) {
	results := filepath.Join(t.TempDir(), "results")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no addresses", []string{"-results", results}, "IPs"},
		{"verbose and quiet", []string{"-v", "-q", "-results", results, "10.0.0.1"}, "mutually exclusive"},
		{"bad port", []string{"-mP", "70000", "-results", results, "10.0.0.1"}, "70000"},
		{"reversed range", []string{"-mP", "90-80", "-results", results, "10.0.0.1"}, "90-80"},
		{"zero threads", []string{"-nT", "0", "-results", results, "10.0.0.1"}, "nmap-threads"},
		{"unknown flag", []string{"-bogus", "10.0.0.1"}, "bogus"},
		{"two positionals", []string{"10.0.0.1", "10.0.0.2"}, "unexpected"},
		{"missing wordlist", []string{"-gB", "/nonexistent/list.txt", "-results", results, "10.0.0.1"}, "wordlist"},
		{"bad address", []string{"-sM", "-results", results, "10.0.0.999"}, "10.0.0.999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			code := run(context.Background(), tt.args, &out)
			assert.Equal(t, defaults.ExitUserError, code)
			assert.Contains(t, out.String(), tt.want)
			assert.NoDirExists(t, results)
		})
	}
	ui.SetSilent(false)
}

func TestConfigRows(t *testing.T) {
	cfg, err := config.Parse([]string{"-sM", "-mP", "80,443", "-pP", "-rN", "-nE", "10.0.0.0/30"})
	require.NoError(t, err)

	rows := configRows(cfg)
	got := map[string]string{}
	for _, r := range rows {
		got[r.Name] = r.Value
	}
	assert.Equal(t, "10.0.0.0/30", got["Targets"])
	assert.Equal(t, "skipped (ports 80,443)", got["Sweep"])
	assert.Equal(t, "20", got["Threads"])
	assert.Equal(t, "pages, nikto", got["Enrichment"])
	assert.Equal(t, "off", got["Extra scans"])
	_, hasMetrics := got["Metrics"]
	assert.False(t, hasMetrics)
}

func TestPrintEndpoints(t *testing.T) {
	var out bytes.Buffer
	ui.SetOutput(&out)
	ui.SetNoColor(true)
	t.Cleanup(func() { ui.SetNoColor(false) })

	printEndpoints([]string{"10.0.0.1:443", "10.0.0.1:8080"})
	assert.Contains(t, out.String(), "Web endpoints")
	assert.Contains(t, out.String(), "https://10.0.0.1:443")
	assert.Contains(t, out.String(), "http://10.0.0.1:8080")

	out.Reset()
	printEndpoints(nil)
	assert.Empty(t, out.String())
}

func TestMain(m *testing.M) {
	code := m.Run()
	ui.SetOutput(os.Stderr)
	os.Exit(code)
}
