// Package retry re-runs transient operations (HTTP page pulls, favicon
// fetches) with capped exponential backoff.
//
// Usage:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func(attempt int) error {
//	    resp, err := client.Do(req)
//	    ...
//	})
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/portsweep/portsweep/pkg/duration"
)

// Config controls retry behaviour.
type Config struct {
	Attempts int           // Total attempts including the first. <= 0 means one.
	Base     time.Duration // Delay before the first retry.
	Max      time.Duration // Cap on any single delay.
	Jitter   bool          // Shave up to 25% off each delay.
}

// DefaultConfig returns 3 attempts backing off from duration.RetryFast to
// duration.RetryMax with jitter.
func DefaultConfig() Config {
	return Config{
		Attempts: 3,
		Base:     duration.RetryFast,
		Max:      duration.RetryMax,
		Jitter:   true,
	}
}

type permanent struct{ err error }

func (p *permanent) Error() string { return p.err.Error() }
func (p *permanent) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying; Do returns the inner error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanent{err: err}
}

// Do calls fn until it succeeds, returns a Permanent error, attempts run
// out, or ctx ends. attempt is 0 on the first call.
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) error {
	return do(ctx, cfg, fn, sleepCtx)
}

func do(ctx context.Context, cfg Config, fn func(int) error, sleep func(context.Context, time.Duration) error) error {
	attempts := max(cfg.Attempts, 1)

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		err = fn(attempt)
		if err == nil {
			return nil
		}
		var p *permanent
		if errors.As(err, &p) {
			return p.err
		}
		if attempt == attempts-1 {
			break
		}
		if serr := sleep(ctx, Backoff(cfg, attempt)); serr != nil {
			return serr
		}
	}
	return err
}

// Backoff returns the delay after the given 0-indexed failed attempt:
// Base * 2^attempt, capped at Max, minus up to 25% jitter.
func Backoff(cfg Config, attempt int) time.Duration {
	d := cfg.Base
	for i := 0; i < attempt && (cfg.Max <= 0 || d < cfg.Max); i++ {
		d *= 2
	}
	if cfg.Max > 0 && d > cfg.Max {
		d = cfg.Max
	}
	if cfg.Jitter && d >= 4 {
		d -= time.Duration(rand.Int64N(int64(d) / 4))
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
