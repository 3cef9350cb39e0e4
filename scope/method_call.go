package scope

import "iter"

// UnknownArity marks a method whose parameter list was not extracted. Calls
// match it on name alone.
const UnknownArity = -1

// MethodCall is a call site. Calls resolve to method scopes by name and
// argument count.
type MethodCall struct {
	Use
	Arguments int
	// CallingObject is the receiver expression as written ("list" in
	// list.add(x)), or empty for an unqualified call.
	CallingObject string
	IsConstructor bool

	// offered keeps every alias seen, since receiver and constructor lookups
	// resolve names other than the method's own.
	offered []*Alias
}

func (c *MethodCall) AddAlias(a *Alias) {
	if a == nil {
		return
	}
	c.offered = append(c.offered, a)
	c.Use.AddAlias(a)
}

func (c *MethodCall) AddAliases(aliases []*Alias) {
	for _, a := range aliases {
		c.AddAlias(a)
	}
}

func NewMethodCall(name string, arguments int, language string) *MethodCall {
	return &MethodCall{Use: Use{Name: name, Language: language}, Arguments: arguments}
}

// Matches accepts a method scope with the call's name and, when both sides
// know it, the same arity.
func (c *MethodCall) Matches(s *Scope) bool {
	if s == nil || s.Kind != KindMethod || s.Name != c.Name {
		return false
	}
	if c.Arguments == UnknownArity || s.Arity() == UnknownArity {
		return true
	}
	return s.Arity() == c.Arguments
}

// Arity is the number of declared parameters, or UnknownArity for scopes
// other than methods.
func (s *Scope) Arity() int {
	if s.Kind != KindMethod {
		return UnknownArity
	}
	return len(s.parameters)
}

func isMethod(s *Scope) bool { return s.Kind == KindMethod }

// FindMatches resolves the call. Constructor calls look in the constructed
// type. Calls on a receiver look in the types of the variables (or the
// type) the receiver names; this and self mean the enclosing types.
// Unqualified calls search the enclosing scopes.
func (c *MethodCall) FindMatches() (iter.Seq[*Scope], error) {
	if c.parent == nil {
		return nil, ErrNoParentScope
	}
	switch {
	case c.IsConstructor:
		return c.methodsOf(c.typesNamed(c.Name)), nil
	case c.CallingObject == "this" || c.CallingObject == "self":
		return c.methodsOf(c.enclosingTypes()), nil
	case c.CallingObject != "":
		return c.methodsOf(c.receiverTypes()), nil
	}
	return findInScopes(&c.Use, childrenWhere(isMethod), c.Matches)
}

func (c *MethodCall) methodsOf(types iter.Seq[*Scope]) iter.Seq[*Scope] {
	return func(yield func(*Scope) bool) {
		for t := range types {
			for _, m := range t.children {
				if c.Matches(m) && !yield(m) {
					return
				}
			}
		}
	}
}

func (c *MethodCall) enclosingTypes() iter.Seq[*Scope] {
	return func(yield func(*Scope) bool) {
		for s := range c.ParentScopes() {
			if s.Kind == KindType && !yield(s) {
				return
			}
		}
	}
}

func (c *MethodCall) typesNamed(name string) iter.Seq[*Scope] {
	t := NewTypeUse(name, c.Language)
	t.SetParentScope(c.parent)
	t.AddAliases(c.offered)
	seq, err := t.FindMatches()
	if err != nil {
		return func(func(*Scope) bool) {}
	}
	return seq
}

// receiverTypes resolves the calling object first as a variable and, when no
// variable by that name is visible, as a type name.
func (c *MethodCall) receiverTypes() iter.Seq[*Scope] {
	return func(yield func(*Scope) bool) {
		v := NewVariableUse(c.CallingObject, c.Language)
		v.SetParentScope(c.parent)
		vars, err := v.FindMatches()
		if err != nil {
			return
		}
		found := false
		for d := range vars {
			found = true
			if d.Type == nil {
				continue
			}
			types, err := d.Type.FindMatches()
			if err != nil {
				continue
			}
			for t := range types {
				if !yield(t) {
					return
				}
			}
		}
		if found {
			return
		}
		for t := range c.typesNamed(c.CallingObject) {
			if !yield(t) {
				return
			}
		}
	}
}
