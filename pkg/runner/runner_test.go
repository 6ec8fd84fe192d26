package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portsweep/portsweep/pkg/testutil"
)

func jobs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("10.0.0.%d:80", i+1)
	}
	return out
}

func TestRunner_Run_BasicConcurrency(t *testing.T) {
	t.Parallel()

	runner := NewRunner[string]()
	runner.Concurrency = 5

	targets := jobs(20)
	var probe testutil.ConcurrencyProbe

	task := func(ctx context.Context, target string) (string, error) {
		probe.Enter()
		defer probe.Leave()
		time.Sleep(30 * time.Millisecond)
		return "result-" + target, nil
	}

	results := runner.Run(context.Background(), targets, task)

	if len(results) != len(targets) {
		t.Errorf("Expected %d results, got %d", len(targets), len(results))
	}
	if probe.Peak() > 5 {
		t.Errorf("Concurrency exceeded: max %d (expected <= 5)", probe.Peak())
	}
	assert.Equal(t, int64(5), runner.Stats.Peak, "pool should fill up")
	assert.Equal(t, int64(len(targets)), runner.Stats.Completed)
	assert.Equal(t, int64(len(targets)), runner.Stats.Successful)
	assert.Zero(t, runner.Stats.InFlight)
}

func TestRunner_Run_ConcurrencyOneIsSerial(t *testing.T) {
	t.Parallel()

	runner := NewRunner[int]()
	runner.Concurrency = 1

	var probe testutil.ConcurrencyProbe
	runner.Run(context.Background(), jobs(10), func(ctx context.Context, target string) (int, error) {
		probe.Enter()
		defer probe.Leave()
		time.Sleep(2 * time.Millisecond)
		return 0, nil
	})
	assert.Equal(t, int64(1), probe.Peak())
}

func TestRunner_Run_ErrorHandling(t *testing.T) {
	t.Parallel()

	runner := NewRunner[string]()
	runner.Concurrency = 3

	targets := []string{"ok", "fail", "ok2", "fail2"}
	task := func(ctx context.Context, target string) (string, error) {
		if target == "fail" || target == "fail2" {
			return "", errors.New("simulated error")
		}
		return "result-" + target, nil
	}

	results := runner.Run(context.Background(), targets, task)
	require.Len(t, results, 4)

	var errorCount int
	for _, r := range results {
		if r.Error != nil {
			errorCount++
		}
	}
	assert.Equal(t, 2, errorCount)
	assert.Equal(t, int64(2), runner.Stats.Failed)
	assert.Equal(t, int64(2), runner.Stats.Successful)
}

func TestRunner_Run_PanicIsolated(t *testing.T) {
	t.Parallel()

	runner := NewRunner[string]()
	runner.Concurrency = 4

	var results []Result[string]
	testutil.AssertNoPanic(t, "run with panicking task", func() {
		results = runner.Run(context.Background(), []string{"a", "boom", "c"}, func(ctx context.Context, target string) (string, error) {
			if target == "boom" {
				panic("kaboom")
			}
			return target, nil
		})
	})

	require.Len(t, results, 3)
	for _, r := range results {
		if r.Target == "boom" {
			assert.ErrorIs(t, r.Error, ErrTaskPanic)
		} else {
			assert.NoError(t, r.Error)
		}
	}
}

func TestRunner_Run_RateLimit(t *testing.T) {
	t.Parallel()

	runner := NewRunner[string]()
	runner.Concurrency = 10
	runner.RateLimit = 20

	start := time.Now()
	runner.Run(context.Background(), jobs(10), func(ctx context.Context, target string) (string, error) {
		return target, nil
	})
	elapsed := time.Since(start)

	// 20/s with a burst of one: nine waits of 50ms after the first launch
	if elapsed < 400*time.Millisecond {
		t.Errorf("Rate limiting not working: took %v, expected >= 400ms", elapsed)
	}
}

func TestRunner_OnProgress(t *testing.T) {
	t.Parallel()

	runner := NewRunner[string]()
	runner.Concurrency = 4

	var mu sync.Mutex
	var seen []int64
	runner.OnProgress = func(completed, total int64, result Result[string]) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, int64(12), total)
		seen = append(seen, completed)
	}

	runner.Run(context.Background(), jobs(12), func(ctx context.Context, target string) (string, error) {
		time.Sleep(time.Millisecond)
		return target, nil
	})

	require.Len(t, seen, 12)
	for i, c := range seen {
		assert.Equal(t, int64(i+1), c, "completed is monotonic")
	}
}

func TestRunner_OnError(t *testing.T) {
	t.Parallel()

	runner := NewRunner[string]()
	var failed atomic.Int64
	runner.OnError = func(target string, err error) {
		failed.Add(1)
	}

	runner.Run(context.Background(), []string{"a", "b", "c"}, func(ctx context.Context, target string) (string, error) {
		if target == "b" {
			return "", errors.New("nope")
		}
		return target, nil
	})
	assert.Equal(t, int64(1), failed.Load())
}

func TestRunner_Stats(t *testing.T) {
	t.Parallel()

	runner := NewRunner[string]()
	runner.Run(context.Background(), jobs(4), func(ctx context.Context, target string) (string, error) {
		return target, nil
	})

	assert.Equal(t, int64(4), runner.Stats.Total)
	assert.Equal(t, int64(4), runner.Stats.Completed)
	assert.Greater(t, runner.Stats.RPS(), 0.0)
}

func TestRunner_EmptyTargets(t *testing.T) {
	t.Parallel()

	runner := NewRunner[string]()
	results := runner.Run(context.Background(), nil, func(ctx context.Context, target string) (string, error) {
		t.Error("task should not run")
		return "", nil
	})
	assert.Nil(t, results)
}

func TestRunner_DefaultConcurrency(t *testing.T) {
	t.Parallel()

	runner := NewRunner[string]()
	assert.Equal(t, 20, runner.Concurrency)
}

func TestRunner_SharedStateRace(t *testing.T) {
	t.Parallel()

	runner := NewRunner[int]()
	runner.Concurrency = 50

	var total atomic.Int64
	runner.OnProgress = func(completed, _ int64, r Result[int]) {
		total.Add(int64(r.Data))
	}
	runner.Run(context.Background(), jobs(500), func(ctx context.Context, target string) (int, error) {
		return 1, nil
	})
	assert.Equal(t, int64(500), total.Load())
	assert.Equal(t, int64(500), runner.Stats.Completed)
}
