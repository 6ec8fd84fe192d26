// Package runner provides bounded concurrent execution over a list of items.
package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/portsweep/portsweep/pkg/defaults"
	"github.com/portsweep/portsweep/pkg/ratelimit"
)

// Result represents the result of processing a single target
type Result[T any] struct {
	Target   string
	Data     T
	Error    error
	Duration time.Duration
}

// Stats tracks execution statistics
type Stats struct {
	Total      int64
	Completed  int64
	Successful int64
	Failed     int64
	InFlight   int64
	Peak       int64
	StartTime  time.Time
}

// RPS returns the completion rate per second
func (s *Stats) RPS() float64 {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&s.Completed)) / elapsed
}

// Runner executes a task for every target with a hard cap on how many run
// at once.
type Runner[T any] struct {
	// Concurrency is the maximum number of tasks in flight (default 20)
	Concurrency int

	// RateLimit is max launches per second (0 = unlimited)
	RateLimit int

	// Stats tracks execution statistics
	Stats Stats

	// OnProgress is called after each target reaches a terminal state.
	// Calls are serialized and completed increases by one each time.
	OnProgress func(completed, total int64, result Result[T])

	// OnError is called when a target fails (optional)
	OnError func(target string, err error)

	limiter *ratelimit.Limiter
	mu      sync.Mutex
}

// NewRunner creates a new runner with default settings
func NewRunner[T any]() *Runner[T] {
	return &Runner[T]{Concurrency: defaults.ScanConcurrency}
}

// TaskFunc is the function type for processing a single target
type TaskFunc[T any] func(ctx context.Context, target string) (T, error)

// Run executes task for every target and returns once each one is
// terminal. Targets never launched because ctx ended are reported with
// ErrCancelled. Results are in completion order.
func (r *Runner[T]) Run(ctx context.Context, targets []string, task TaskFunc[T]) []Result[T] {
	if len(targets) == 0 {
		return nil
	}

	r.Stats = Stats{
		Total:     int64(len(targets)),
		StartTime: time.Now(),
	}

	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = defaults.ScanConcurrency
	}
	if concurrency > len(targets) {
		concurrency = len(targets)
	}
	sem := make(chan struct{}, concurrency)

	if r.RateLimit > 0 && r.limiter == nil {
		r.limiter = ratelimit.NewPerSecond(r.RateLimit)
	}

	results := make([]Result[T], 0, len(targets))
	var wg sync.WaitGroup

	launched := 0
	for _, target := range targets {
		if ctx.Err() != nil {
			break
		}
		if err := r.limiter.Wait(ctx); err != nil {
			break
		}
		acquired := false
		select {
		case sem <- struct{}{}:
			acquired = true
		case <-ctx.Done():
		}
		if !acquired {
			break
		}

		launched++
		wg.Add(1)
		go func(t string) {
			defer wg.Done()
			defer func() { <-sem }()

			n := atomic.AddInt64(&r.Stats.InFlight, 1)
			for {
				peak := atomic.LoadInt64(&r.Stats.Peak)
				if n <= peak || atomic.CompareAndSwapInt64(&r.Stats.Peak, peak, n) {
					break
				}
			}

			result := r.execute(ctx, t, task)
			atomic.AddInt64(&r.Stats.InFlight, -1)
			r.finish(&results, result)
		}(target)
	}

	wg.Wait()

	for _, t := range targets[launched:] {
		r.finish(&results, Result[T]{Target: t, Error: ErrCancelled})
	}
	return results
}

// execute runs one task, converting a panic into an error.
func (r *Runner[T]) execute(ctx context.Context, target string, task TaskFunc[T]) (res Result[T]) {
	start := time.Now()
	res.Target = target
	defer func() {
		if p := recover(); p != nil {
			res.Error = fmt.Errorf("%w: %v", ErrTaskPanic, p)
		}
		res.Duration = time.Since(start)
	}()

	res.Data, res.Error = task(ctx, target)
	return res
}

// finish records one terminal result and fires the callbacks.
func (r *Runner[T]) finish(results *[]Result[T], result Result[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	*results = append(*results, result)
	completed := atomic.AddInt64(&r.Stats.Completed, 1)
	if result.Error == nil {
		atomic.AddInt64(&r.Stats.Successful, 1)
	} else {
		atomic.AddInt64(&r.Stats.Failed, 1)
		if r.OnError != nil {
			r.OnError(result.Target, result.Error)
		}
	}
	if r.OnProgress != nil {
		r.OnProgress(completed, r.Stats.Total, result)
	}
}
