package query

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Task is the pending result of ExecuteAsync.
type Task[R any] struct {
	id     uuid.UUID
	done   chan struct{}
	result R
	err    error
}

func newTask[R any]() *Task[R] {
	return &Task[R]{id: uuid.New(), done: make(chan struct{})}
}

func (t *Task[R]) finish(r R, err error) {
	t.result, t.err = r, err
	close(t.done)
}

// ID identifies the task in logs.
func (t *Task[R]) ID() uuid.UUID { return t.id }

// Done is closed once the result is available.
func (t *Task[R]) Done() <-chan struct{} { return t.done }

// Wait blocks until the task completes.
func (t *Task[R]) Wait() (R, error) {
	<-t.done
	return t.result, t.err
}

// Scheduler runs asynchronous query work.
type Scheduler interface {
	Go(fn func())
}

// GoScheduler starts one goroutine per call.
type GoScheduler struct{}

func (GoScheduler) Go(fn func()) { go fn() }

// Pool runs at most size functions at a time. Work beyond that waits in
// submission goroutines.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool returns a Pool with the given concurrency. Values below 1 mean 1.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

func (p *Pool) Go(fn func()) {
	go func() {
		// Acquire with a background context never fails.
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)
		fn()
	}()
}
