package runtime

import (
	"context"
	"log/slog"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/scopegraph/scope"
)

// graph binds the host functions of one run to its global scope.
//
// Scopes are handed to scripts as maps:
//
//	{name, kind, full_name, language, accessibility, builtin, arity,
//	 type_params, file, line}
//
// where file and line are those of the primary location, if any.
type graph struct {
	root *scope.Scope
}

// lookup resolves a dotted qualified name from the global scope. Unlike type
// lookup every segment may name a scope of any kind, so methods are
// reachable too. The empty string names the global scope itself.
func (g *graph) lookup(qualified string) []*scope.Scope {
	qualified = strings.TrimSpace(qualified)
	if qualified == "" {
		return []*scope.Scope{g.root}
	}
	return g.root.FindPath(strings.Split(qualified, "."))
}

// findScopeFn creates "find_scope".
//
// find_scope(qualified) → list of scopes
func (g *graph) findScopeFn() *object.Builtin {
	return object.NewBuiltin("find_scope", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("find_scope", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("find_scope: %v", err)
		}
		return scopeList(g.lookup(name))
	})
}

// findTypeFn creates "find_type". The type expression is resolved as if it
// were written inside the context scope, or at global level without one.
//
// find_type(expr, [context]) → list of types
func (g *graph) findTypeFn() *object.Builtin {
	return object.NewBuiltin("find_type", func(ctx context.Context, args ...object.Object) object.Object {
		types, errObj := g.resolveType(ctx, "find_type", args)
		if errObj != nil {
			return errObj
		}
		return scopeList(types)
	})
}

// fullNameFn creates "full_name", the qualified name of the first type an
// expression resolves to.
//
// full_name(expr, [context]) → string or nil
func (g *graph) fullNameFn() *object.Builtin {
	return object.NewBuiltin("full_name", func(ctx context.Context, args ...object.Object) object.Object {
		types, errObj := g.resolveType(ctx, "full_name", args)
		if errObj != nil {
			return errObj
		}
		if len(types) == 0 {
			return object.Nil
		}
		return object.NewString(types[0].FullName())
	})
}

func (g *graph) resolveType(ctx context.Context, fn string, args []object.Object) ([]*scope.Scope, *object.Error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, object.NewArgsRangeError(fn, 1, 2, len(args))
	}
	expr, err := toString(args[0])
	if err != nil {
		return nil, object.Errorf("%s: %v", fn, err)
	}
	at := g.root
	if len(args) == 2 {
		qualified, err := toString(args[1])
		if err != nil {
			return nil, object.Errorf("%s: context: %v", fn, err)
		}
		found := g.lookup(qualified)
		if len(found) == 0 {
			return nil, object.Errorf("%s: no scope named %q", fn, qualified)
		}
		at = found[0]
	}

	use, err := scope.ParseTypeName(expr, at.Language)
	if err != nil {
		return nil, object.Errorf("%s: %v", fn, err)
	}
	use.SetParentScope(at)
	matches, err := use.FindMatches()
	if err != nil {
		return nil, object.Errorf("%s: %v", fn, err)
	}
	var types []*scope.Scope
	for t := range matches {
		if err := ctx.Err(); err != nil {
			return nil, object.NewError(err)
		}
		types = append(types, t)
	}
	return types, nil
}

// childrenFn creates "children", the direct children of every scope with
// the qualified name.
//
// children(qualified) → list of scopes
func (g *graph) childrenFn() *object.Builtin {
	return object.NewBuiltin("children", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("children", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("children: %v", err)
		}
		var kids []*scope.Scope
		for _, s := range g.lookup(name) {
			kids = append(kids, s.Children()...)
		}
		return scopeList(kids)
	})
}

// variablesFn creates "variables". Parameters come first and are flagged.
//
// variables(qualified) → list of {name, type, accessibility, parameter, file, line}
func (g *graph) variablesFn() *object.Builtin {
	return object.NewBuiltin("variables", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("variables", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("variables: %v", err)
		}
		results := []object.Object{}
		for _, s := range g.lookup(name) {
			for _, p := range s.Parameters() {
				results = append(results, variableObject(p, true))
			}
			for _, v := range s.Variables() {
				results = append(results, variableObject(v, false))
			}
		}
		return object.NewList(results)
	})
}

func scopeList(scopes []*scope.Scope) *object.List {
	results := make([]object.Object, 0, len(scopes))
	for _, s := range scopes {
		results = append(results, scopeObject(s))
	}
	return object.NewList(results)
}

func scopeObject(s *scope.Scope) *object.Map {
	params := make([]object.Object, 0, len(s.TypeParams))
	for _, p := range s.TypeParams {
		params = append(params, object.NewString(p))
	}
	m := map[string]object.Object{
		"name":          object.NewString(s.Name),
		"kind":          object.NewString(s.Kind.String()),
		"full_name":     object.NewString(s.FullName()),
		"language":      object.NewString(s.Language),
		"accessibility": object.NewString(s.Accessibility),
		"builtin":       object.NewBool(s.Builtin),
		"arity":         object.NewInt(int64(s.Arity())),
		"type_params":   object.NewList(params),
	}
	if loc, ok := s.PrimaryLocation(); ok {
		m["file"] = object.NewString(loc.File)
		m["line"] = object.NewInt(int64(loc.StartLine))
	}
	return object.NewMap(m)
}

func variableObject(v *scope.Variable, param bool) *object.Map {
	m := map[string]object.Object{
		"name":          object.NewString(v.Name),
		"type":          object.Nil,
		"accessibility": object.NewString(v.Accessibility),
		"parameter":     object.NewBool(param),
		"file":          object.NewString(v.Location.File),
		"line":          object.NewInt(int64(v.Location.StartLine)),
	}
	if v.Type != nil {
		m["type"] = object.NewString(v.Type.String())
	}
	return object.NewMap(m)
}

// newLogModule exposes log.debug/info/warn/error to scripts. Arguments after
// the message are slog key/value pairs.
func newLogModule(l *slog.Logger) *object.Module {
	level := func(name string, lvl slog.Level) *object.Builtin {
		return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) < 1 {
				return object.NewArgsRangeError(name, 1, 64, len(args))
			}
			msg, err := toString(args[0])
			if err != nil {
				msg = args[0].Inspect()
			}
			attrs := make([]any, 0, len(args)-1)
			for _, a := range args[1:] {
				if s, ok := a.(*object.String); ok {
					attrs = append(attrs, s.Value())
					continue
				}
				attrs = append(attrs, a.Interface())
			}
			l.Log(ctx, lvl, msg, attrs...)
			return object.Nil
		})
	}
	return object.NewBuiltinsModule("log", map[string]object.Object{
		"debug": level("debug", slog.LevelDebug),
		"info":  level("info", slog.LevelInfo),
		"warn":  level("warn", slog.LevelWarn),
		"error": level("error", slog.LevelError),
	})
}
