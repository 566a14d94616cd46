// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool bounds the number of goroutines used to run independent tasks, such as the
// propagation of the candidates of a choice node.
package workerspool

import (
	"runtime"
	"sync"
)

// Pool of workers. It is safe for concurrent use, and tasks may themselves use the pool (nested fan-outs).
type Pool struct {
	// maxParallelism is the limit of tasks running in goroutines started by the pool.
	// 0 disables parallelism and a negative value means unlimited.
	maxParallelism int

	mu         sync.Mutex
	numRunning int
}

// New returns a new Pool with the given parallelism. If maxParallelism is 0, all tasks run inline,
// if it is negative parallelism is unlimited.
func New(maxParallelism int) *Pool {
	return &Pool{maxParallelism: maxParallelism}
}

// NewDefault returns a Pool with parallelism runtime.NumCPU().
func NewDefault() *Pool {
	return New(runtime.NumCPU())
}

// IsEnabled returns whether parallelism is enabled (maxParallelism != 0).
func (w *Pool) IsEnabled() bool {
	return w.maxParallelism != 0
}

// IsUnlimited returns whether parallelism is unlimited (maxParallelism < 0).
func (w *Pool) IsUnlimited() bool {
	return w.maxParallelism < 0
}

// MaxParallelism returns the configured parallelism: 0 if disabled, -1 if unlimited.
func (w *Pool) MaxParallelism() int {
	return w.maxParallelism
}

// lockedIsFull returns whether all available workers are in use.
//
// It must be called with Pool.mu acquired.
func (w *Pool) lockedIsFull() bool {
	if w.maxParallelism == 0 {
		return true
	} else if w.maxParallelism < 0 {
		return false
	}
	return w.numRunning >= w.maxParallelism
}

// StartIfAvailable runs the task in a separate goroutine, if there is a worker available.
// It returns true if it found a worker to run the task, false otherwise.
//
// It's up to the caller to synchronize the end of the task execution.
func (w *Pool) StartIfAvailable(task func()) bool {
	if w.IsUnlimited() {
		go task()
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lockedIsFull() {
		return false
	}
	w.numRunning++
	go func() {
		defer w.release()
		task()
	}()
	return true
}

func (w *Pool) release() {
	w.mu.Lock()
	w.numRunning--
	w.mu.Unlock()
}

// ForEach calls fn(i) for i in [0, n) and returns when all calls are finished.
//
// Calls are dispatched to available workers, and the ones that find no free worker run inline in the
// caller's goroutine, so it never blocks waiting for a worker, even when called from within a task.
// With parallelism disabled the calls run sequentially, in order.
func (w *Pool) ForEach(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	if !w.IsEnabled() || n == 1 {
		for ii := range n {
			fn(ii)
		}
		return
	}
	var wg sync.WaitGroup
	for ii := range n {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			fn(ii)
		}
		if !w.StartIfAvailable(task) {
			task()
		}
	}
	wg.Wait()
}
