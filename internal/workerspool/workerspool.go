// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool runs chunks of a data-parallel job (e.g. permuting the axes of a large tensor)
// in a bounded number of goroutines.
package workerspool

import (
	"runtime"
	"sync"
)

// Pool limits how many goroutines are used by concurrent jobs.
type Pool struct {
	// maxParallelism is the limit of goroutines running tasks: 0 disables parallelism,
	// and negative values make it unlimited.
	maxParallelism int
	mu             sync.Mutex
	cond           sync.Cond // Should be signaled whenever numRunning is decreased.
	numRunning     int
}

// New return a new Pool of workers with the default parallelism (runtime.NumCPU()).
func New() *Pool {
	w := &Pool{}
	w.maxParallelism = runtime.NumCPU()
	w.cond = sync.Cond{L: &w.mu}
	return w
}

// IsEnabled returns whether parallelism is enabled (maxParallelism is != 0)
func (w *Pool) IsEnabled() bool {
	return w.maxParallelism != 0
}

// MaxParallelism returns the limit of goroutines running tasks.
// If set to 0 parallelism is disabled.
// If set to -1 parallelism is unlimited.
func (w *Pool) MaxParallelism() int {
	return w.maxParallelism
}

// SetMaxParallelism sets the maxParallelism.
//
// It should only be changed while no jobs are running.
func (w *Pool) SetMaxParallelism(maxParallelism int) {
	w.maxParallelism = maxParallelism
}

// lockedIsFull returns whether all available workers are in use.
//
// It must be called with Pool.mu acquired.
func (w *Pool) lockedIsFull() bool {
	if w.maxParallelism < 0 {
		return false
	}
	return w.numRunning >= w.maxParallelism
}

// waitToStart waits until there is a worker available, and starts task in a goroutine.
func (w *Pool) waitToStart(task func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.lockedIsFull() {
		w.cond.Wait()
	}
	w.numRunning++
	go func() {
		task()
		w.mu.Lock()
		w.numRunning--
		w.cond.Signal()
		w.mu.Unlock()
	}()
}

// ParallelFor splits the range [0, n) in chunks of at least minChunk elements and calls fn(start, end)
// for each of them, using as many workers as available.
//
// It returns only after all chunks are processed. If parallelism is disabled, or n is not larger than
// minChunk, it calls fn(0, n) inline.
func (w *Pool) ParallelFor(n, minChunk int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if minChunk < 1 {
		minChunk = 1
	}
	if !w.IsEnabled() || n <= minChunk {
		fn(0, n)
		return
	}

	numChunks := (n + minChunk - 1) / minChunk
	if w.maxParallelism > 0 && numChunks > w.maxParallelism {
		numChunks = w.maxParallelism
	}
	chunkSize := (n + numChunks - 1) / numChunks

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		w.waitToStart(func() {
			defer wg.Done()
			fn(start, end)
		})
	}
	wg.Wait()
}
