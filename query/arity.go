package query

import (
	"context"
	"time"

	"github.com/jward/scopegraph/scope"
)

// Tuple2 through Tuple5 bundle positional parameters into the single value
// the shared implementation forwards.
type Tuple2[A, B any] struct {
	V1 A
	V2 B
}

type Tuple3[A, B, C any] struct {
	V1 A
	V2 B
	V3 C
}

type Tuple4[A, B, C, D any] struct {
	V1 A
	V2 B
	V3 C
	V4 D
}

type Tuple5[A, B, C, D, E any] struct {
	V1 A
	V2 B
	V3 C
	V4 D
	V5 E
}

// Query0 is a query without parameters.
type Query0[R any] struct {
	core core[struct{}, R]
}

func New0[R any](repo DataRepository, execute func(root *scope.Scope) (R, error), opts ...Option) *Query0[R] {
	run := func(root *scope.Scope, _ struct{}) (R, error) { return execute(root) }
	return &Query0[R]{core: newCore(repo, run, opts)}
}

// Execute runs the query on the calling goroutine.
func (q *Query0[R]) Execute() (R, error) { return q.core.execute(struct{}{}) }

// ExecuteAsync runs the query on the query's scheduler.
func (q *Query0[R]) ExecuteAsync(ctx context.Context) *Task[R] {
	return q.core.executeAsync(ctx, struct{}{})
}

func (q *Query0[R]) LockTimeout() time.Duration { return q.core.lockTimeout() }

// Query1 takes one parameter.
type Query1[A, R any] struct {
	core core[A, R]
}

func New1[A, R any](repo DataRepository, execute func(root *scope.Scope, a A) (R, error), opts ...Option) *Query1[A, R] {
	return &Query1[A, R]{core: newCore(repo, execute, opts)}
}

func (q *Query1[A, R]) Execute(a A) (R, error) { return q.core.execute(a) }

func (q *Query1[A, R]) ExecuteAsync(ctx context.Context, a A) *Task[R] {
	return q.core.executeAsync(ctx, a)
}

func (q *Query1[A, R]) LockTimeout() time.Duration { return q.core.lockTimeout() }

// Query2 takes two parameters.
type Query2[A, B, R any] struct {
	core core[Tuple2[A, B], R]
}

func New2[A, B, R any](repo DataRepository, execute func(root *scope.Scope, a A, b B) (R, error), opts ...Option) *Query2[A, B, R] {
	run := func(root *scope.Scope, p Tuple2[A, B]) (R, error) { return execute(root, p.V1, p.V2) }
	return &Query2[A, B, R]{core: newCore(repo, run, opts)}
}

func (q *Query2[A, B, R]) Execute(a A, b B) (R, error) {
	return q.core.execute(Tuple2[A, B]{a, b})
}

func (q *Query2[A, B, R]) ExecuteAsync(ctx context.Context, a A, b B) *Task[R] {
	return q.core.executeAsync(ctx, Tuple2[A, B]{a, b})
}

func (q *Query2[A, B, R]) LockTimeout() time.Duration { return q.core.lockTimeout() }

// Query3 takes three parameters.
type Query3[A, B, C, R any] struct {
	core core[Tuple3[A, B, C], R]
}

func New3[A, B, C, R any](repo DataRepository, execute func(root *scope.Scope, a A, b B, c C) (R, error), opts ...Option) *Query3[A, B, C, R] {
	run := func(root *scope.Scope, p Tuple3[A, B, C]) (R, error) { return execute(root, p.V1, p.V2, p.V3) }
	return &Query3[A, B, C, R]{core: newCore(repo, run, opts)}
}

func (q *Query3[A, B, C, R]) Execute(a A, b B, c C) (R, error) {
	return q.core.execute(Tuple3[A, B, C]{a, b, c})
}

func (q *Query3[A, B, C, R]) ExecuteAsync(ctx context.Context, a A, b B, c C) *Task[R] {
	return q.core.executeAsync(ctx, Tuple3[A, B, C]{a, b, c})
}

func (q *Query3[A, B, C, R]) LockTimeout() time.Duration { return q.core.lockTimeout() }

// Query4 takes four parameters.
type Query4[A, B, C, D, R any] struct {
	core core[Tuple4[A, B, C, D], R]
}

func New4[A, B, C, D, R any](repo DataRepository, execute func(root *scope.Scope, a A, b B, c C, d D) (R, error), opts ...Option) *Query4[A, B, C, D, R] {
	run := func(root *scope.Scope, p Tuple4[A, B, C, D]) (R, error) { return execute(root, p.V1, p.V2, p.V3, p.V4) }
	return &Query4[A, B, C, D, R]{core: newCore(repo, run, opts)}
}

func (q *Query4[A, B, C, D, R]) Execute(a A, b B, c C, d D) (R, error) {
	return q.core.execute(Tuple4[A, B, C, D]{a, b, c, d})
}

func (q *Query4[A, B, C, D, R]) ExecuteAsync(ctx context.Context, a A, b B, c C, d D) *Task[R] {
	return q.core.executeAsync(ctx, Tuple4[A, B, C, D]{a, b, c, d})
}

func (q *Query4[A, B, C, D, R]) LockTimeout() time.Duration { return q.core.lockTimeout() }

// Query5 takes five parameters.
type Query5[A, B, C, D, E, R any] struct {
	core core[Tuple5[A, B, C, D, E], R]
}

func New5[A, B, C, D, E, R any](repo DataRepository, execute func(root *scope.Scope, a A, b B, c C, d D, e E) (R, error), opts ...Option) *Query5[A, B, C, D, E, R] {
	run := func(root *scope.Scope, p Tuple5[A, B, C, D, E]) (R, error) {
		return execute(root, p.V1, p.V2, p.V3, p.V4, p.V5)
	}
	return &Query5[A, B, C, D, E, R]{core: newCore(repo, run, opts)}
}

func (q *Query5[A, B, C, D, E, R]) Execute(a A, b B, c C, d D, e E) (R, error) {
	return q.core.execute(Tuple5[A, B, C, D, E]{a, b, c, d, e})
}

func (q *Query5[A, B, C, D, E, R]) ExecuteAsync(ctx context.Context, a A, b B, c C, d D, e E) *Task[R] {
	return q.core.executeAsync(ctx, Tuple5[A, B, C, D, E]{a, b, c, d, e})
}

func (q *Query5[A, B, C, D, E, R]) LockTimeout() time.Duration { return q.core.lockTimeout() }
