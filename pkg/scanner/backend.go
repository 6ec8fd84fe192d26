package scanner

import (
	"context"
	"strings"

	"github.com/portsweep/portsweep/pkg/proc"
)

// Handle is a launched scan that can be polled for completion.
type Handle interface {
	IsRunning() bool
	Stdout() string
	Err() error
}

// Backend launches one scan of target with the rendered option string.
type Backend interface {
	Launch(ctx context.Context, target, options string) (Handle, error)
}

// NmapBackend runs nmap as a child process with XML written to stdout.
// It never adds --privileged; raw-socket scan types need the binary itself
// to have the capability.
type NmapBackend struct {
	// Path is the nmap binary, "nmap" when empty.
	Path string
}

// Launch starts `nmap -oX - <options...> <target>`.
func (b NmapBackend) Launch(ctx context.Context, target, options string) (Handle, error) {
	path := b.Path
	if path == "" {
		path = "nmap"
	}
	args := append([]string{"-oX", "-"}, strings.Fields(options)...)
	args = append(args, target)
	p, err := proc.Start(ctx, path, args)
	if err != nil {
		return nil, err
	}
	return p, nil
}
