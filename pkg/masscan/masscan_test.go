package masscan

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portsweep/portsweep/pkg/testutil"
)

const sample = `#masscan
open tcp 80 10.0.0.1 1700000000
open tcp 443 10.0.0.1 1700000001
open tcp 80 10.0.0.1 1700000002
banner tcp 80 10.0.0.1 1700000003 http Server: nginx
open tcp 22 10.0.0.2 1700000004
# end
`

func TestParseList(t *testing.T) {
	t.Parallel()

	jobs, err := ParseList(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1:80", "10.0.0.1:443", "10.0.0.2:22"}, jobs)
}

func TestParseList_Malformed(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"open tcp 80",
		"open tcp http 10.0.0.1 1",
		"open tcp 70000 10.0.0.1 1",
		"open tcp 80 10.0.0.999 1",
	} {
		_, err := ParseList(strings.NewReader(in))
		assert.Error(t, err, in)
	}
}

func TestParseList_Empty(t *testing.T) {
	t.Parallel()

	jobs, err := ParseList(strings.NewReader("#masscan\n# end\n"))
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestOutputPath(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, filepath.Join("results", "masscan", "mass_results_2026-01-02_03-04"), OutputPath("results", ts))
}

func TestSweep_RunsToolAndParses(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// stand-in: writes fixed -oL content and echoes its argv to a side
	// file. It lives outside dir, where Sweep creates masscan/.
	tool := testutil.WriteExecutable(t, t.TempDir(), "masscan", `
echo "$@" > "`+dir+`/argv"
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-oL" ]; then out="$2"; fi
  shift
done
printf 'open tcp 8080 10.0.0.3 1\nopen tcp 21 10.0.0.4 2\n' > "$out"`)

	jobs, err := Sweep(context.Background(), Config{
		Template:   tool + " -p %s -iL %s --rate %d -oL %s",
		Ports:      "1-1024",
		TargetFile: "targets.txt",
		Rate:       500,
		ResultsDir: dir,
		Now:        func() time.Time { return time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC) },
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.3:8080", "10.0.0.4:21"}, jobs)

	argv, err := os.ReadFile(filepath.Join(dir, "argv"))
	require.NoError(t, err)
	assert.Equal(t, "-p 1-1024 -iL targets.txt --rate 500 -oL "+filepath.Join(dir, "masscan", "mass_results_2026-01-02_03-04")+"\n", string(argv))
}

func TestSweep_NoOutputMeansNoJobs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tool := testutil.WriteExecutable(t, t.TempDir(), "masscan", "exit 0")

	jobs, err := Sweep(context.Background(), Config{
		Template:   tool + " -p %s -iL %s --rate %d -oL %s",
		Ports:      "80",
		TargetFile: "t",
		Rate:       1,
		ResultsDir: dir,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestSweep_ToolFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tool := testutil.WriteExecutable(t, t.TempDir(), "masscan", "echo 'FAIL: permission denied' >&2; exit 1")

	_, err := Sweep(context.Background(), Config{
		Template:   tool + " -p %s -iL %s --rate %d -oL %s",
		Ports:      "80",
		TargetFile: "t",
		Rate:       1,
		ResultsDir: dir,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	assert.ErrorIs(t, err, ErrSweepFailed)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestSweep_Timeout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tool := testutil.WriteExecutable(t, t.TempDir(), "masscan", "exec sleep 5")

	start := time.Now()
	_, err := Sweep(context.Background(), Config{
		Template:   tool + " -p %s -iL %s --rate %d -oL %s",
		Ports:      "80",
		TargetFile: "t",
		Rate:       1,
		ResultsDir: dir,
		Timeout:    100 * time.Millisecond,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	assert.ErrorIs(t, err, ErrSweepFailed)
	assert.Less(t, time.Since(start), 4*time.Second)
}
