// Package registry collects the web endpoints discovered by concurrent scan
// workers for the enrichment phase.
package registry

import (
	"errors"
	"log/slog"
	"slices"
	"sync"
)

// ErrFrozen is returned by Add once the registry has been frozen.
var ErrFrozen = errors.New("registry: add after freeze")

// Registry is an append-only list of "target:port" endpoints, safe for
// concurrent use. Duplicates are kept; Unique dedups for consumers.
type Registry struct {
	mu     sync.Mutex
	items  []string
	frozen bool
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used to report adds after freeze.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Add appends endpoint. After Freeze the endpoint is dropped and ErrFrozen
// is returned.
func (r *Registry) Add(endpoint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		r.logger.Error("registry add after freeze", slog.String("endpoint", endpoint))
		return ErrFrozen
	}
	r.items = append(r.items, endpoint)
	return nil
}

// Freeze rejects all further adds. Calling it more than once is harmless.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frozen
}

// Len returns the number of recorded adds, duplicates included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Snapshot returns a copy of the endpoints in insertion order.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.items)
}

// Unique returns the endpoints sorted and deduplicated.
func (r *Registry) Unique() []string {
	out := r.Snapshot()
	slices.Sort(out)
	return slices.Compact(out)
}
