// Package repository owns the in-memory scope graph and the exclusive lock
// that guards it.
package repository

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jward/scopegraph/internal/observability"
	"github.com/jward/scopegraph/query"
	"github.com/jward/scopegraph/scope"
)

var _ query.DataRepository = (*Repository)(nil)

// Repository holds the global scope. All reads and writes of the graph happen
// between TryLockGlobalScope and ReleaseGlobalScopeLock. The lock is
// exclusive and not reentrant.
type Repository struct {
	sem    *semaphore.Weighted
	global *scope.Scope
	held   atomic.Bool
	logger *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithGlobalScope seeds the repository with an existing graph.
func WithGlobalScope(g *scope.Scope) Option {
	return func(r *Repository) {
		if g != nil {
			r.global = g
		}
	}
}

func New(opts ...Option) *Repository {
	r := &Repository{
		sem:    semaphore.NewWeighted(1),
		global: scope.NewGlobal(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TryLockGlobalScope acquires the lock, waiting at most timeout, and returns
// the global scope with it. query.WaitForever (any negative duration) waits
// without bound; zero does not wait.
func (r *Repository) TryLockGlobalScope(timeout time.Duration) (*scope.Scope, bool) {
	start := time.Now()
	ok := r.acquire(timeout)
	observability.LockWaitDuration.Observe(time.Since(start).Seconds())
	if !ok {
		observability.LockTimeoutsTotal.Inc()
		r.logger.Debug("global scope lock timeout", "timeout", timeout, "waited", time.Since(start))
		return nil, false
	}
	r.held.Store(true)
	return r.global, true
}

func (r *Repository) acquire(timeout time.Duration) bool {
	switch {
	case timeout < 0:
		return r.sem.Acquire(context.Background(), 1) == nil
	case timeout == 0:
		return r.sem.TryAcquire(1)
	default:
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return r.sem.Acquire(ctx, 1) == nil
	}
}

// ReleaseGlobalScopeLock releases the lock. Releasing a lock that is not held
// panics.
func (r *Repository) ReleaseGlobalScopeLock() {
	r.held.Store(false)
	r.sem.Release(1)
}

// Locked reports whether the lock is currently held. It is a diagnostic and
// may be stale by the time it returns.
func (r *Repository) Locked() bool { return r.held.Load() }
