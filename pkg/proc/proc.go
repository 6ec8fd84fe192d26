// Package proc launches external tools as child processes in their own
// process group, tracks every live child, and can tear them all down at
// once when the run is interrupted.
package proc

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ErrEmptyCommand is returned when a rendered command has no program name.
var ErrEmptyCommand = errors.New("proc: empty command")

var (
	liveMu sync.Mutex
	live   = make(map[int]*exec.Cmd)
)

func track(cmd *exec.Cmd) {
	liveMu.Lock()
	live[cmd.Process.Pid] = cmd
	liveMu.Unlock()
}

func untrack(cmd *exec.Cmd) {
	liveMu.Lock()
	delete(live, cmd.Process.Pid)
	liveMu.Unlock()
}

// KillAll terminates every tracked child together with its process group
// and returns how many were signalled.
func KillAll() int {
	liveMu.Lock()
	defer liveMu.Unlock()

	n := 0
	for pid, cmd := range live {
		killGroup(pid)
		_ = cmd.Process.Kill()
		n++
	}
	live = make(map[int]*exec.Cmd)
	return n
}

// syncBuffer is a bytes.Buffer safe for concurrent Write and String.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Process is a running or finished child.
type Process struct {
	cmd    *exec.Cmd
	stdout syncBuffer
	stderr syncBuffer
	done   chan struct{}
	err    error
	start  time.Time
	end    time.Time
}

// Start launches name with args. Cancelling ctx kills the child's whole
// process group.
func Start(ctx context.Context, name string, args []string) (*Process, error) {
	if name == "" {
		return nil, ErrEmptyCommand
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = sysProcAttr()
	cmd.Cancel = func() error {
		killGroup(cmd.Process.Pid)
		return cmd.Process.Kill()
	}
	cmd.WaitDelay = time.Second

	p := &Process{cmd: cmd, done: make(chan struct{})}
	cmd.Stdout = &p.stdout
	cmd.Stderr = &p.stderr

	p.start = time.Now()
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	track(cmd)

	go func() {
		p.err = cmd.Wait()
		p.end = time.Now()
		untrack(cmd)
		close(p.done)
	}()
	return p, nil
}

// IsRunning reports whether the child has not yet exited.
func (p *Process) IsRunning() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the child exits and returns its exit error.
func (p *Process) Wait() error {
	<-p.done
	return p.err
}

// Err returns the exit error once the child has finished, nil before.
func (p *Process) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Stdout returns everything the child has written to standard output.
func (p *Process) Stdout() string { return p.stdout.String() }

// Stderr returns everything the child has written to standard error.
func (p *Process) Stderr() string { return p.stderr.String() }

// Pid returns the child's process id.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Duration is the wall time between start and exit, or so far.
func (p *Process) Duration() time.Duration {
	select {
	case <-p.done:
		return p.end.Sub(p.start)
	default:
		return time.Since(p.start)
	}
}

// Result is the outcome of a blocking Run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Run starts name and waits for it. A non-zero exit is returned as the
// error alongside the populated Result.
func Run(ctx context.Context, name string, args []string) (*Result, error) {
	p, err := Start(ctx, name, args)
	if err != nil {
		return nil, err
	}
	err = p.Wait()

	r := &Result{
		Stdout:   p.Stdout(),
		Stderr:   p.Stderr(),
		Duration: p.Duration(),
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		r.ExitCode = exitErr.ExitCode()
	}
	return r, err
}

// Command splits a rendered command line on whitespace. There is no shell
// and no quoting: every field is passed to the program verbatim.
func Command(line string) (string, []string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}
