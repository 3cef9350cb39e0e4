package scope

import (
	"iter"
	"slices"
)

// Resolver is implemented by every use kind. D is the kind of definition the
// use resolves to.
type Resolver[D any] interface {
	// FindMatches returns the candidate definitions in resolution order. The
	// sequence is lazy and reads the graph while it is consumed, so it must be
	// drained while the graph is stable.
	FindMatches() (iter.Seq[D], error)
	Matches(candidate D) bool
}

var (
	_ Resolver[*Scope]    = (*NamedScopeUse)(nil)
	_ Resolver[*Scope]    = (*TypeUse)(nil)
	_ Resolver[*Scope]    = (*MethodCall)(nil)
	_ Resolver[*Variable] = (*VariableUse)(nil)
)

// First returns the first match of r.
func First[D any](r Resolver[D]) (D, bool, error) {
	var zero D
	seq, err := r.FindMatches()
	if err != nil {
		return zero, false, err
	}
	for d := range seq {
		return d, true, nil
	}
	return zero, false, nil
}

// Collect drains every match of r.
func Collect[D any](r Resolver[D]) ([]D, error) {
	seq, err := r.FindMatches()
	if err != nil {
		return nil, err
	}
	return slices.Collect(seq), nil
}

// Use holds what every name reference has in common: the spelled name, where
// it appears, the enclosing scope it is resolved from, and the import aliases
// that may redirect it.
type Use struct {
	Name     string
	Location Location
	Language string

	parent  *Scope
	aliases []*Alias
}

func (u *Use) ParentScope() *Scope { return u.parent }

func (u *Use) SetParentScope(s *Scope) { u.parent = s }

// ParentScopes yields the enclosing scope and then its ancestors, nearest
// first. It yields nothing for an unbound use.
func (u *Use) ParentScopes() iter.Seq[*Scope] {
	return func(yield func(*Scope) bool) {
		if u.parent == nil {
			return
		}
		for s := range u.parent.ParentScopesAndSelf() {
			if !yield(s) {
				return
			}
		}
	}
}

func (u *Use) Aliases() []*Alias { return u.aliases }

// AddAlias records a only if it applies to u.
func (u *Use) AddAlias(a *Alias) {
	if a != nil && a.AppliesTo(u) {
		u.aliases = append(u.aliases, a)
	}
}

// AddAliases adds each applicable alias, skipping nil entries.
func (u *Use) AddAliases(aliases []*Alias) {
	for _, a := range aliases {
		u.AddAlias(a)
	}
}

// findInScopes is the default resolution walk. It visits the enclosing scope
// and its ancestors nearest first, then the namespaces exposed by applicable
// aliases in insertion order, and yields every candidate accepted by matches.
// Candidates inside one scope keep declaration order. A scope is searched at
// most once.
func findInScopes[D any](u *Use, candidates func(*Scope) iter.Seq[D], matches func(D) bool) (iter.Seq[D], error) {
	if u.parent == nil {
		return nil, ErrNoParentScope
	}
	parent := u.parent
	aliases := slices.Clone(u.aliases)

	return func(yield func(D) bool) {
		searched := make(map[*Scope]bool)
		search := func(s *Scope) bool {
			if searched[s] {
				return true
			}
			searched[s] = true
			for c := range candidates(s) {
				if matches(c) && !yield(c) {
					return false
				}
			}
			return true
		}

		for s := range parent.ParentScopesAndSelf() {
			if !search(s) {
				return
			}
		}

		global := parent.Global()
		if global == nil {
			return
		}
		for _, a := range aliases {
			path, ok := a.searchPath()
			if !ok {
				continue
			}
			for _, ns := range global.Lookup(path) {
				if !search(ns) {
					return
				}
			}
		}
	}, nil
}

// renamedTargets yields the scopes bound by rename aliases of u, filtered by
// keep.
func renamedTargets(u *Use, keep func(*Scope) bool) iter.Seq[*Scope] {
	return func(yield func(*Scope) bool) {
		if u.parent == nil {
			return
		}
		global := u.parent.Global()
		if global == nil {
			return
		}
		for _, a := range u.aliases {
			if !a.IsRename() || a.LocalName != u.Name {
				continue
			}
			for _, s := range global.Lookup(a.Target) {
				if keep(s) && !yield(s) {
					return
				}
			}
		}
	}
}

func concat[D any](seqs ...iter.Seq[D]) iter.Seq[D] {
	return func(yield func(D) bool) {
		for _, seq := range seqs {
			for d := range seq {
				if !yield(d) {
					return
				}
			}
		}
	}
}

func childrenWhere(keep func(*Scope) bool) func(*Scope) iter.Seq[*Scope] {
	return func(s *Scope) iter.Seq[*Scope] {
		return func(yield func(*Scope) bool) {
			for _, c := range s.children {
				if keep(c) && !yield(c) {
					return
				}
			}
		}
	}
}
