package scopegraph

import (
	"github.com/jward/scopegraph/query"
	"github.com/jward/scopegraph/scope"
)

// NewQuery0 through NewQuery5 build custom queries against the Engine's
// graph. A query starts with the Engine's lock timeout, scheduler and logger;
// opts are applied after them. The body receives the global scope and runs
// with the lock held, so it must not keep references to the graph after it
// returns.
//
//	members := scopegraph.NewQuery1(e, func(global *scope.Scope, name string) ([]string, error) {
//		use := scope.NewNamedScopeUse("", strings.Split(name, ".")...)
//		use.SetParentScope(global)
//		types, err := scope.Collect[*scope.Scope](use)
//		if err != nil {
//			return nil, err
//		}
//		var out []string
//		for _, t := range types {
//			for _, c := range t.Children() {
//				out = append(out, c.Name)
//			}
//		}
//		return out, nil
//	})
//	names, err := members.Execute("com.acme.Widget")
func NewQuery0[R any](e *Engine, fn func(global *scope.Scope) (R, error), opts ...query.Option) *query.Query0[R] {
	return query.New0(e.repo, fn, e.customOptions(opts)...)
}

func NewQuery1[A, R any](e *Engine, fn func(global *scope.Scope, a A) (R, error), opts ...query.Option) *query.Query1[A, R] {
	return query.New1(e.repo, fn, e.customOptions(opts)...)
}

func NewQuery2[A, B, R any](e *Engine, fn func(global *scope.Scope, a A, b B) (R, error), opts ...query.Option) *query.Query2[A, B, R] {
	return query.New2(e.repo, fn, e.customOptions(opts)...)
}

func NewQuery3[A, B, C, R any](e *Engine, fn func(global *scope.Scope, a A, b B, c C) (R, error), opts ...query.Option) *query.Query3[A, B, C, R] {
	return query.New3(e.repo, fn, e.customOptions(opts)...)
}

func NewQuery4[A, B, C, D, R any](e *Engine, fn func(global *scope.Scope, a A, b B, c C, d D) (R, error), opts ...query.Option) *query.Query4[A, B, C, D, R] {
	return query.New4(e.repo, fn, e.customOptions(opts)...)
}

func NewQuery5[A, B, C, D, E, R any](e *Engine, fn func(global *scope.Scope, a A, b B, c C, d D, e E) (R, error), opts ...query.Option) *query.Query5[A, B, C, D, E, R] {
	return query.New5(e.repo, fn, e.customOptions(opts)...)
}

func (e *Engine) customOptions(opts []query.Option) []query.Option {
	return append(e.queryOptions("custom"), opts...)
}
