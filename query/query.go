// Package query runs computations against the scope graph under the
// repository's exclusive global lock.
//
// A query is built once from a repository and an execute function and can be
// run any number of times, synchronously with Execute or on a scheduler with
// ExecuteAsync. Every arity shares one implementation of the lock, timeout and
// cancellation protocol.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jward/scopegraph/internal/observability"
	"github.com/jward/scopegraph/scope"
)

// WaitForever disables the lock-acquisition timeout.
const WaitForever time.Duration = -1

var (
	// ErrNoRepository is returned when a query has no data repository bound.
	ErrNoRepository = errors.New("query: no data repository bound")

	// ErrLockTimeout is returned when the global scope lock was not acquired
	// within the query's timeout.
	ErrLockTimeout = errors.New("query: timed out waiting for global scope lock")

	// ErrCancelled is returned when the context was done at one of the
	// cancellation checkpoints. The context's error is wrapped alongside it.
	ErrCancelled = errors.New("query: cancelled")
)

// DataRepository grants exclusive access to the root of the scope graph.
type DataRepository interface {
	// TryLockGlobalScope waits up to timeout for the lock and returns the
	// current global scope with it. WaitForever waits without bound.
	TryLockGlobalScope(timeout time.Duration) (*scope.Scope, bool)
	// ReleaseGlobalScopeLock releases a lock obtained by TryLockGlobalScope.
	ReleaseGlobalScopeLock()
}

type config struct {
	name      string
	timeout   time.Duration
	scheduler Scheduler
	logger    *slog.Logger
}

// Option configures a query.
type Option func(*config)

// WithLockTimeout bounds how long the query waits for the global lock.
func WithLockTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithScheduler sets where ExecuteAsync runs. The default starts a goroutine
// per call.
func WithScheduler(s Scheduler) Option {
	return func(c *config) {
		if s != nil {
			c.scheduler = s
		}
	}
}

// WithName labels the query in logs and metrics.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// core is the single implementation behind Query0 through Query5. P is the
// bundled parameter value.
type core[P, R any] struct {
	repo DataRepository
	cfg  config
	run  func(root *scope.Scope, params P) (R, error)
}

func newCore[P, R any](repo DataRepository, run func(*scope.Scope, P) (R, error), opts []Option) core[P, R] {
	cfg := config{
		name:      "anonymous",
		timeout:   WaitForever,
		scheduler: GoScheduler{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return core[P, R]{repo: repo, cfg: cfg, run: run}
}

func (c *core[P, R]) lockTimeout() time.Duration { return c.cfg.timeout }

func (c *core[P, R]) execute(params P) (R, error) {
	var zero R
	if c.repo == nil {
		observability.QueriesTotal.WithLabelValues(c.cfg.name, observability.OutcomeMisconfigured).Inc()
		return zero, fmt.Errorf("%w (query %s)", ErrNoRepository, c.cfg.name)
	}
	root, err := c.lock()
	if err != nil {
		return zero, err
	}
	defer c.repo.ReleaseGlobalScopeLock()
	return c.observe(root, params)
}

func (c *core[P, R]) executeAsync(ctx context.Context, params P) *Task[R] {
	task := newTask[R]()
	if c.repo == nil {
		observability.QueriesTotal.WithLabelValues(c.cfg.name, observability.OutcomeMisconfigured).Inc()
		var zero R
		task.finish(zero, fmt.Errorf("%w (query %s)", ErrNoRepository, c.cfg.name))
		return task
	}
	c.cfg.scheduler.Go(func() {
		r, err := c.executeChecked(ctx, task.id, params)
		task.finish(r, err)
	})
	return task
}

// executeChecked checks ctx before taking the lock and again before running
// the query body. The body itself is not interrupted.
func (c *core[P, R]) executeChecked(ctx context.Context, id uuid.UUID, params P) (r R, err error) {
	if err := c.checkpoint(ctx, id, "before lock"); err != nil {
		return r, err
	}
	root, err := c.lock()
	if err != nil {
		return r, err
	}
	defer c.repo.ReleaseGlobalScopeLock()
	defer func() {
		if rec := recover(); rec != nil {
			observability.QueriesTotal.WithLabelValues(c.cfg.name, observability.OutcomeError).Inc()
			err = fmt.Errorf("query %s: panic: %v", c.cfg.name, rec)
		}
	}()
	if err := c.checkpoint(ctx, id, "after lock"); err != nil {
		return r, err
	}
	return c.observe(root, params)
}

func (c *core[P, R]) checkpoint(ctx context.Context, id uuid.UUID, where string) error {
	if ctx == nil || ctx.Err() == nil {
		return nil
	}
	observability.QueriesTotal.WithLabelValues(c.cfg.name, observability.OutcomeCancelled).Inc()
	c.cfg.logger.Debug("query cancelled", "query", c.cfg.name, "task", id, "at", where)
	return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
}

func (c *core[P, R]) lock() (*scope.Scope, error) {
	root, ok := c.repo.TryLockGlobalScope(c.cfg.timeout)
	if !ok {
		observability.QueriesTotal.WithLabelValues(c.cfg.name, observability.OutcomeTimeout).Inc()
		c.cfg.logger.Debug("query lock timeout", "query", c.cfg.name, "timeout", c.cfg.timeout)
		return nil, fmt.Errorf("%w (query %s, timeout %s)", ErrLockTimeout, c.cfg.name, c.cfg.timeout)
	}
	return root, nil
}

func (c *core[P, R]) observe(root *scope.Scope, params P) (R, error) {
	start := time.Now()
	r, err := c.run(root, params)
	observability.QueryDuration.WithLabelValues(c.cfg.name).Observe(time.Since(start).Seconds())
	outcome := observability.OutcomeOK
	if err != nil {
		outcome = observability.OutcomeError
	}
	observability.QueriesTotal.WithLabelValues(c.cfg.name, outcome).Inc()
	return r, err
}

// IsCancelled reports whether err came from a cancellation checkpoint.
func IsCancelled(err error) bool { return errors.Is(err, ErrCancelled) }

// IsLockTimeout reports whether err is a lock acquisition timeout.
func IsLockTimeout(err error) bool { return errors.Is(err, ErrLockTimeout) }
