// Package worker runs CPU-bound jobs (MILP solves) off the caller's
// goroutine and hands back a Future the caller can await with a context.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"eve-industry/internal/logger"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker: pool closed")

// Pool is a fixed set of goroutines draining a job queue.
type Pool struct {
	workers int
	jobs    chan func()
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	done   atomic.Int64
	failed atomic.Int64
}

// NewPool starts a pool with n workers (at least 1) and a queue of the same depth.
func NewPool(n int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{
		workers: n,
		jobs:    make(chan func(), n),
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	logger.Debug("POOL", fmt.Sprintf("started %d workers", n))
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}

// Close stops accepting work and waits for queued jobs to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
	logger.Debug("POOL", fmt.Sprintf("closed after %d jobs (%d failed)", p.done.Load(), p.failed.Load()))
}

// Stats returns completed and failed job counts.
func (p *Pool) Stats() (done, failed int64) {
	return p.done.Load(), p.failed.Load()
}

func (p *Pool) enqueue(ctx context.Context, job func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Future is the pending result of a submitted job.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Done is closed once the job has finished.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the job finishes or ctx ends. Cancelling ctx abandons
// the wait only; the job itself keeps running to completion.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Submit queues fn on the pool. A panic inside fn is recovered and
// reported through the Future's error.
func Submit[T any](ctx context.Context, p *Pool, fn func() (T, error)) (*Future[T], error) {
	f := &Future[T]{done: make(chan struct{})}
	job := func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("worker: job panicked: %v", r)
				p.failed.Add(1)
				logger.Error("POOL", f.err.Error())
			}
		}()
		f.val, f.err = fn()
		p.done.Add(1)
		if f.err != nil {
			p.failed.Add(1)
		}
	}
	if err := p.enqueue(ctx, job); err != nil {
		return nil, err
	}
	return f, nil
}

// Do submits fn and waits for its result.
func Do[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	f, err := Submit(ctx, p, fn)
	if err != nil {
		var zero T
		return zero, err
	}
	return f.Wait(ctx)
}
