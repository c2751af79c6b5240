// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package pool provides the worker-pool collaborator used for concurrent
// expansion. The engine only ever calls Submit and Await; callers may supply
// any implementation of Pool.
package pool

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by handles whose task was submitted after Close.
var ErrClosed = errors.New("pool closed")

// Task is one unit of work. It returns its own ordered contribution to the
// output rather than writing into shared state.
type Task func(ctx context.Context) (string, error)

// Handle is the pending result of a submitted Task.
type Handle interface {
	// Await blocks until the task finishes or ctx is done.
	Await(ctx context.Context) (string, error)
}

// Pool runs submitted tasks.
type Pool interface {
	Submit(ctx context.Context, task Task) Handle
}

// job is a submitted task and its result.
type job struct {
	ctx    context.Context
	task   Task
	done   chan struct{}
	result string
	err    error
}

func (j *job) run() {
	defer close(j.done)
	// Queued behind a failure or cancellation: skip the work
	if err := j.ctx.Err(); err != nil {
		j.err = err
		return
	}
	j.result, j.err = j.task(j.ctx)
}

// Await waits for the job's result.
func (j *job) Await(ctx context.Context) (string, error) {
	select {
	case <-j.done:
		return j.result, j.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Workers is a bounded pool of goroutines fed from a queue.
type Workers struct {
	mu     sync.Mutex
	closed bool
	queue  chan *job
	wg     sync.WaitGroup
	size   int
}

// New starts a pool of n workers. n < 1 is treated as 1.
func New(n int) *Workers {
	if n < 1 {
		n = 1
	}
	w := &Workers{
		queue: make(chan *job, n*4),
		size:  n,
	}
	for i := 0; i < n; i++ {
		w.wg.Add(1)
		go w.loop()
	}
	return w
}

func (w *Workers) loop() {
	defer w.wg.Done()
	for j := range w.queue {
		j.run()
	}
}

// Size returns the number of workers.
func (w *Workers) Size() int {
	return w.size
}

// Submit queues task. It blocks while the queue is full; if ctx ends first
// the returned handle reports ctx's error.
func (w *Workers) Submit(ctx context.Context, task Task) Handle {
	j := &job{
		ctx:  ctx,
		task: task,
		done: make(chan struct{}),
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		j.err = ErrClosed
		close(j.done)
		return j
	}
	select {
	case w.queue <- j:
	case <-ctx.Done():
		j.err = ctx.Err()
		close(j.done)
	}
	return j
}

// Close stops accepting work and waits for queued and running tasks, giving
// up after timeout. It reports whether all workers finished.
func (w *Workers) Close(timeout time.Duration) bool {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Inline runs every task synchronously inside Submit.
type Inline struct{}

// Submit runs task on the calling goroutine.
func (Inline) Submit(ctx context.Context, task Task) Handle {
	j := &job{ctx: ctx, task: task, done: make(chan struct{})}
	j.run()
	return j
}
