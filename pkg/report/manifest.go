package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/portsweep/portsweep/pkg/defaults"
	"github.com/portsweep/portsweep/pkg/jsonutil"
)

// Manifest summarises one run for machines and for the PDF page.
type Manifest struct {
	RunID    string    `json:"run_id"`
	Tool     string    `json:"tool"`
	Version  string    `json:"version"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	Settings Settings `json:"settings"`

	Targets   int `json:"targets"`
	Jobs      int `json:"jobs"`
	Saved     int `json:"saved"`
	Discarded int `json:"discarded"`
	Failed    int `json:"failed"`
	Converted int `json:"converted"`

	Web        []string       `json:"web_endpoints"`
	Enrichment []ActionRecord `json:"enrichment,omitempty"`
	Errors     []string       `json:"errors,omitempty"`
}

// Settings echoes the options that shaped the run.
type Settings struct {
	Addresses   string `json:"addresses"`
	Ports       string `json:"ports"`
	SkipSweep   bool   `json:"skip_sweep"`
	Rate        int    `json:"rate"`
	Concurrency int    `json:"concurrency"`
	NoExtra     bool   `json:"no_extra_scans"`
	ResultsDir  string `json:"results_dir"`
}

// ActionRecord is the result of one enrichment action.
type ActionRecord struct {
	Name    string  `json:"name"`
	Error   string  `json:"error,omitempty"`
	Seconds float64 `json:"seconds"`
}

// NewManifest starts a manifest with a fresh run id.
func NewManifest(started time.Time) *Manifest {
	return &Manifest{
		RunID:   uuid.NewString(),
		Tool:    defaults.ToolName,
		Version: defaults.Version,
		Started: started,
	}
}

// Elapsed is the run's wall time.
func (m *Manifest) Elapsed() time.Duration {
	if m.Finished.IsZero() {
		return 0
	}
	return m.Finished.Sub(m.Started)
}

// WriteManifest writes m as indented JSON, replacing path atomically.
func WriteManifest(path string, m *Manifest) error {
	if m.Web == nil {
		m.Web = []string{}
	}
	return jsonutil.WriteFile(path, m)
}
