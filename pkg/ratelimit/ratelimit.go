// Package ratelimit paces launches and requests, globally or per host, on
// top of golang.org/x/time/rate token buckets.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Config holds rate limiting configuration.
type Config struct {
	// RequestsPerSecond limits events per second (0 = unlimited).
	RequestsPerSecond int

	// Burst is the bucket size (default 1).
	Burst int

	// PerHost gives every host its own bucket.
	PerHost bool
}

// Limiter is a token bucket, optionally split per host. A nil *Limiter
// never waits.
type Limiter struct {
	cfg    Config
	global *rate.Limiter

	mu    sync.Mutex
	hosts map[string]*rate.Limiter
}

// New creates a Limiter. A zero or negative rate yields an unlimited one.
func New(cfg Config) *Limiter {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	l := &Limiter{cfg: cfg, hosts: make(map[string]*rate.Limiter)}
	l.global = l.bucket()
	return l
}

// NewPerSecond creates a global limiter allowing rps events per second.
func NewPerSecond(rps int) *Limiter {
	return New(Config{RequestsPerSecond: rps})
}

// NewPerHost creates a limiter allowing rps events per second per host.
func NewPerHost(rps int) *Limiter {
	return New(Config{RequestsPerSecond: rps, PerHost: true})
}

func (l *Limiter) bucket() *rate.Limiter {
	if l.cfg.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, l.cfg.Burst)
	}
	return rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)
}

// Wait blocks until the global bucket allows one event or ctx ends.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	return l.global.Wait(ctx)
}

// WaitForHost waits on host's bucket when the limiter is per host, and on
// the global bucket otherwise.
func (l *Limiter) WaitForHost(ctx context.Context, host string) error {
	if l == nil {
		return ctx.Err()
	}
	if !l.cfg.PerHost {
		return l.global.Wait(ctx)
	}

	l.mu.Lock()
	b, ok := l.hosts[host]
	if !ok {
		b = l.bucket()
		l.hosts[host] = b
	}
	l.mu.Unlock()
	return b.Wait(ctx)
}

// HostCount returns how many per-host buckets exist.
func (l *Limiter) HostCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hosts)
}
