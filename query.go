package scopegraph

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jward/scopegraph/query"
	"github.com/jward/scopegraph/scope"
)

// QueryBuilder runs the common graph queries. Each method takes the global
// scope lock for the duration of the query and returns value snapshots, so
// results stay valid after the graph changes.
//
// Context names are dotted paths from the global scope, such as
// "com.acme.Widget.run"; every segment may name a scope of any kind. The
// empty string names the global scope.
type QueryBuilder struct {
	engine *Engine
}

func (q *QueryBuilder) options(name string) []query.Option {
	return q.engine.queryOptions(name)
}

func splitName(qualified string) []string {
	qualified = strings.TrimSpace(qualified)
	if qualified == "" {
		return nil
	}
	return strings.Split(qualified, ".")
}

// contexts resolves a context name, failing with ErrNotFound when nothing
// matches.
func contexts(root *scope.Scope, qualified string) ([]*scope.Scope, error) {
	found := root.FindPath(splitName(qualified))
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, qualified)
	}
	return found, nil
}

// FindScopes resolves a possibly qualified namespace or type name from the
// global scope. Ambiguous segments fan out, so several scopes may match.
func (q *QueryBuilder) FindScopes(qualified string) ([]ScopeInfo, error) {
	return query.New1(q.engine.repo, findScopes, q.options("find_scopes")...).Execute(qualified)
}

func findScopes(root *scope.Scope, qualified string) ([]ScopeInfo, error) {
	segments := splitName(qualified)
	if len(segments) == 0 {
		return nil, fmt.Errorf("scopegraph: empty scope name")
	}
	use := scope.NewNamedScopeUse("", segments...)
	use.SetParentScope(root)
	found, err := scope.Collect[*scope.Scope](use)
	if err != nil {
		return nil, err
	}
	return scopeInfos(found), nil
}

// FindTypes resolves a type expression such as "Map<String, Widget>" as if it
// were written inside the scope named within. The expression is read with
// that scope's language, which decides the built-in types.
func (q *QueryBuilder) FindTypes(expr, within string) ([]ScopeInfo, error) {
	return q.findTypesQuery().Execute(expr, within)
}

// FindTypesAsync is FindTypes on the Engine's scheduler. ctx is checked
// before and after the lock is taken.
func (q *QueryBuilder) FindTypesAsync(ctx context.Context, expr, within string) *query.Task[[]ScopeInfo] {
	return q.findTypesQuery().ExecuteAsync(ctx, expr, within)
}

func (q *QueryBuilder) findTypesQuery() *query.Query2[string, string, []ScopeInfo] {
	return query.New2(q.engine.repo, findTypes, q.options("find_types")...)
}

func findTypes(root *scope.Scope, expr, within string) ([]ScopeInfo, error) {
	ctxs, err := contexts(root, within)
	if err != nil {
		return nil, err
	}
	var found []*scope.Scope
	for _, at := range ctxs {
		use, err := scope.ParseTypeName(expr, at.Language)
		if err != nil {
			return nil, err
		}
		use.SetParentScope(at)
		matches, err := scope.Collect[*scope.Scope](use)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if !slices.Contains(found, m) {
				found = append(found, m)
			}
		}
	}
	return scopeInfos(found), nil
}

// ResolveVariable finds the variables, fields or parameters called name
// visible from within, nearest first.
func (q *QueryBuilder) ResolveVariable(name, within string) ([]VariableInfo, error) {
	return query.New2(q.engine.repo, resolveVariable, q.options("resolve_variable")...).Execute(name, within)
}

func resolveVariable(root *scope.Scope, name, within string) ([]VariableInfo, error) {
	ctxs, err := contexts(root, within)
	if err != nil {
		return nil, err
	}
	var seen []*scope.Variable
	var out []VariableInfo
	for _, at := range ctxs {
		use := scope.NewVariableUse(name, at.Language)
		use.SetParentScope(at)
		vars, err := scope.Collect[*scope.Variable](use)
		if err != nil {
			return nil, err
		}
		for _, v := range vars {
			if slices.Contains(seen, v) {
				continue
			}
			seen = append(seen, v)
			info := variableInfo(v)
			if v.Type != nil {
				if t, err := v.Type.FindFirstMatchingType(); err == nil && t != nil {
					info.TypeFullName = t.FullName()
				}
			}
			out = append(out, info)
		}
	}
	return out, nil
}

// ResolveCalls resolves every call site inside within and its descendants.
func (q *QueryBuilder) ResolveCalls(within string) ([]CallInfo, error) {
	return query.New1(q.engine.repo, resolveCalls, q.options("resolve_calls")...).Execute(within)
}

func resolveCalls(root *scope.Scope, within string) ([]CallInfo, error) {
	ctxs, err := contexts(root, within)
	if err != nil {
		return nil, err
	}
	var out []CallInfo
	for _, at := range ctxs {
		for s := range at.All() {
			for _, c := range s.MethodCalls() {
				targets, err := scope.Collect[*scope.Scope](c)
				if err != nil {
					return nil, err
				}
				info := CallInfo{
					Name:        c.Name,
					Receiver:    c.CallingObject,
					Arguments:   c.Arguments,
					Constructor: c.IsConstructor,
					Caller:      s.FullName(),
					Location:    c.Location,
					Targets:     make([]string, 0, len(targets)),
				}
				for _, t := range targets {
					info.Targets = append(info.Targets, t.FullName())
				}
				out = append(out, info)
			}
		}
	}
	return out, nil
}

// Unresolved lists the type references and call sites of language that
// resolve to nothing. An empty language means every language. Names of
// generic type parameters in scope count as resolved.
func (q *QueryBuilder) Unresolved(language string) ([]UnresolvedUse, error) {
	return query.New1(q.engine.repo, unresolved, q.options("unresolved")...).Execute(language)
}

func unresolved(root *scope.Scope, language string) ([]UnresolvedUse, error) {
	var out []UnresolvedUse
	for s := range root.All() {
		if language != "" && s.Language != language {
			continue
		}
		for _, v := range slices.Concat(s.Parameters(), s.Variables()) {
			if v.Type != nil {
				out = appendUnresolvedTypes(out, s, v.Type, v.Location)
			}
		}
		for _, c := range s.MethodCalls() {
			if _, ok, err := scope.First[*scope.Scope](c); err == nil && !ok {
				out = append(out, UnresolvedUse{
					Kind:     UseCall,
					Name:     c.Name,
					Scope:    s.FullName(),
					Language: s.Language,
					Location: c.Location,
				})
			}
		}
	}
	return out, nil
}

// appendUnresolvedTypes checks t and, recursively, its type arguments. loc,
// the declaring variable's location, stands in for type arguments rebuilt
// from stored expressions, which keep no position of their own.
func appendUnresolvedTypes(out []UnresolvedUse, s *scope.Scope, t *scope.TypeUse, loc Location) []UnresolvedUse {
	if t.Prefix != nil || !s.DeclaresTypeParam(t.Name) {
		if _, ok, err := scope.First[*scope.Scope](t); err == nil && !ok {
			where := t.Location
			if where.File == "" {
				where = loc
			}
			out = append(out, UnresolvedUse{
				Kind:     UseType,
				Name:     t.String(),
				Scope:    s.FullName(),
				Language: s.Language,
				Location: where,
			})
		}
	}
	for _, p := range t.TypeParameters() {
		out = appendUnresolvedTypes(out, s, p, loc)
	}
	return out
}

// Tree snapshots the subtrees rooted at the scopes qualified names, down to
// depth levels below them. A negative depth means unlimited.
func (q *QueryBuilder) Tree(qualified string, depth int) ([]*TreeNode, error) {
	return query.New2(q.engine.repo, tree, q.options("tree")...).Execute(qualified, depth)
}

func tree(root *scope.Scope, qualified string, depth int) ([]*TreeNode, error) {
	ctxs, err := contexts(root, qualified)
	if err != nil {
		return nil, err
	}
	out := make([]*TreeNode, 0, len(ctxs))
	for _, s := range ctxs {
		out = append(out, treeNode(s, depth))
	}
	return out, nil
}

func treeNode(s *scope.Scope, depth int) *TreeNode {
	n := &TreeNode{ScopeInfo: scopeInfo(s)}
	for _, v := range slices.Concat(s.Parameters(), s.Variables()) {
		n.Variables = append(n.Variables, variableInfo(v))
	}
	if depth == 0 {
		return n
	}
	for _, c := range s.Children() {
		n.Children = append(n.Children, treeNode(c, depth-1))
	}
	return n
}

// Stats counts the graph's contents and the rows stored behind it.
func (q *QueryBuilder) Stats() (*Stats, error) {
	st, err := query.New0(q.engine.repo, graphStats, q.options("stats")...).Execute()
	if err != nil {
		return nil, err
	}
	if st.Stored, err = q.engine.store.Stats(); err != nil {
		return nil, fmt.Errorf("scopegraph: stats: %w", err)
	}
	return st, nil
}

func graphStats(root *scope.Scope) (*Stats, error) {
	st := &Stats{Scopes: make(map[string]int)}
	for s := range root.All() {
		if !s.IsGlobal() {
			st.Scopes[s.Kind.String()]++
		}
		st.Variables += len(s.Variables())
		st.Parameters += len(s.Parameters())
		st.MethodCalls += len(s.MethodCalls())
	}
	st.Files = len(root.Files())
	return st, nil
}
