// Package workerpool provides a fixed-size goroutine pool for fanning out
// enrichment work (browser captures, page pulls) over discovered endpoints.
package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool runs submitted tasks on a fixed set of workers. It never grows past
// its size, so it doubles as a hard cap on open browser tabs or sockets.
type Pool struct {
	workers int
	tasks   chan func()
	wg      sync.WaitGroup

	panics  atomic.Int64
	closed  atomic.Bool
	closeMu sync.RWMutex
}

// New starts a pool with the given number of workers (GOMAXPROCS if <= 0).
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		workers: workers,
		tasks:   make(chan func(), workers),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

// run executes one task; a panic is counted and the worker keeps going.
func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
		}
	}()
	task()
}

// Submit queues task, blocking while the queue is full. It returns false
// once the pool is closed.
func (p *Pool) Submit(task func()) bool {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed.Load() {
		return false
	}
	p.tasks <- task
	return true
}

// Close stops accepting tasks and waits for queued ones to finish.
func (p *Pool) Close() {
	p.closeMu.Lock()
	if p.closed.Swap(true) {
		p.closeMu.Unlock()
		return
	}
	close(p.tasks)
	p.closeMu.Unlock()
	p.wg.Wait()
}

// Cap returns the worker count.
func (p *Pool) Cap() int { return p.workers }

// Panics returns how many tasks have panicked.
func (p *Pool) Panics() int64 { return p.panics.Load() }

// Map applies fn to each item on the pool and returns results in input
// order. Items submitted after Close keep their zero value.
func Map[T, R any](p *Pool, items []T, fn func(T) R) []R {
	results := make([]R, len(items))
	var wg sync.WaitGroup
	wg.Add(len(items))
	for i, item := range items {
		if !p.Submit(func() {
			defer wg.Done()
			results[i] = fn(item)
		}) {
			wg.Done()
		}
	}
	wg.Wait()
	return results
}
