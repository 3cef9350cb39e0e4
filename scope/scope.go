package scope

import (
	"fmt"
	"iter"
	"slices"
	"strings"
)

// Kind classifies a scope definition.
type Kind int

const (
	KindGlobal Kind = iota
	KindNamespace
	KindType
	KindMethod
	KindBlock
)

var kindNames = [...]string{
	KindGlobal:    "global",
	KindNamespace: "namespace",
	KindType:      "type",
	KindMethod:    "method",
	KindBlock:     "block",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("scope: unknown kind %q", s)
}

// Location is a source span. Lines and columns are 0-based, matching
// tree-sitter points.
type Location struct {
	File      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.StartLine, l.StartCol)
}

// Contains reports whether the 0-based position falls within the span.
func (l Location) Contains(line, col int) bool {
	if line < l.StartLine || line > l.EndLine {
		return false
	}
	if line == l.StartLine && col < l.StartCol {
		return false
	}
	if line == l.EndLine && col > l.EndCol {
		return false
	}
	return true
}

// Variable is a declared variable, field or parameter.
type Variable struct {
	Name          string
	Type          *TypeUse
	Accessibility string
	Location      Location

	scope *Scope
}

// Scope returns the scope that declares the variable.
func (v *Variable) Scope() *Scope { return v.scope }

// Scope is a node in the scope graph: the global scope, a namespace, a type,
// a method or a block. Children are owned through the children slice; the
// parent pointer is a back reference only.
type Scope struct {
	// ID is assigned by persistence and is zero for scopes that were never saved.
	ID            int64
	Name          string
	Kind          Kind
	Language      string
	Accessibility string
	TypeParams    []string
	Builtin       bool

	parent     *Scope
	children   []*Scope
	locations  []Location
	variables  []*Variable
	parameters []*Variable
	calls      []*MethodCall
}

// NewGlobal returns an empty global scope.
func NewGlobal() *Scope {
	return &Scope{Kind: KindGlobal}
}

// New returns a detached scope.
func New(name string, kind Kind, language string) *Scope {
	return &Scope{Name: name, Kind: kind, Language: language}
}

func (s *Scope) Parent() *Scope { return s.parent }

func (s *Scope) IsGlobal() bool { return s.Kind == KindGlobal }

// Children returns the child scopes in insertion order. The slice must not be
// modified.
func (s *Scope) Children() []*Scope { return s.children }

// ChildrenNamed returns the children whose name equals name, in order.
func (s *Scope) ChildrenNamed(name string) []*Scope {
	var out []*Scope
	for _, c := range s.children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Child returns the first child with the given name and kind.
func (s *Scope) Child(name string, kind Kind) *Scope {
	for _, c := range s.children {
		if c.Name == name && c.Kind == kind {
			return c
		}
	}
	return nil
}

// AddChild attaches c as the last child of s. A child that already has a
// parent is moved. Attaching an ancestor of s panics because the graph must
// stay a tree.
func (s *Scope) AddChild(c *Scope) {
	for p := s; p != nil; p = p.parent {
		if p == c {
			panic(fmt.Sprintf("scope: adding %q under %q would create a cycle", c.Name, s.Name))
		}
	}
	if c.parent != nil {
		c.parent.removeChild(c)
	}
	c.parent = s
	s.children = append(s.children, c)
}

func (s *Scope) removeChild(c *Scope) {
	if i := slices.Index(s.children, c); i >= 0 {
		s.children = slices.Delete(s.children, i, i+1)
	}
	c.parent = nil
}

// ParentScopes yields the ancestors of s, nearest first.
func (s *Scope) ParentScopes() iter.Seq[*Scope] {
	return func(yield func(*Scope) bool) {
		for p := s.parent; p != nil; p = p.parent {
			if !yield(p) {
				return
			}
		}
	}
}

// ParentScopesAndSelf yields s followed by its ancestors.
func (s *Scope) ParentScopesAndSelf() iter.Seq[*Scope] {
	return func(yield func(*Scope) bool) {
		for p := s; p != nil; p = p.parent {
			if !yield(p) {
				return
			}
		}
	}
}

// Global returns the nearest global scope at or above s, or nil when s is
// detached.
func (s *Scope) Global() *Scope {
	for p := range s.ParentScopesAndSelf() {
		if p.IsGlobal() {
			return p
		}
	}
	return nil
}

// FullName joins the non-empty names from the outermost ancestor down to s.
func (s *Scope) FullName() string {
	var parts []string
	for p := range s.ParentScopesAndSelf() {
		if p.Name != "" {
			parts = append(parts, p.Name)
		}
	}
	slices.Reverse(parts)
	return strings.Join(parts, ".")
}

// All yields s and every descendant in pre-order.
func (s *Scope) All() iter.Seq[*Scope] {
	return func(yield func(*Scope) bool) {
		s.walk(yield)
	}
}

func (s *Scope) walk(yield func(*Scope) bool) bool {
	if !yield(s) {
		return false
	}
	for _, c := range s.children {
		if !c.walk(yield) {
			return false
		}
	}
	return true
}

// Lookup follows a qualified path of namespace or type names from s and
// returns every scope reached. Ambiguous segments fan out.
func (s *Scope) Lookup(path []string) []*Scope {
	current := []*Scope{s}
	for _, seg := range path {
		var next []*Scope
		for _, sc := range current {
			for _, c := range sc.children {
				if c.Name == seg && isQualifier(c) {
					next = append(next, c)
				}
			}
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

// FindPath is Lookup without the kind restriction: every segment may name a
// child of any kind, so methods and blocks are reachable. An empty path
// returns s.
func (s *Scope) FindPath(path []string) []*Scope {
	current := []*Scope{s}
	for _, seg := range path {
		var next []*Scope
		for _, sc := range current {
			next = append(next, sc.ChildrenNamed(seg)...)
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

func isQualifier(s *Scope) bool {
	return s.Kind == KindNamespace || s.Kind == KindType
}

// DeclaresTypeParam reports whether s or an enclosing scope declares a
// generic type parameter called name.
func (s *Scope) DeclaresTypeParam(name string) bool {
	for p := range s.ParentScopesAndSelf() {
		if slices.Contains(p.TypeParams, name) {
			return true
		}
	}
	return false
}

func (s *Scope) AddLocation(loc Location) {
	s.locations = append(s.locations, loc)
}

// Locations returns every span the scope occupies. Namespaces and partial
// types may span several files.
func (s *Scope) Locations() []Location { return s.locations }

// PrimaryLocation returns the first recorded location.
func (s *Scope) PrimaryLocation() (Location, bool) {
	if len(s.locations) == 0 {
		return Location{}, false
	}
	return s.locations[0], true
}

// AddVariable declares v in s. The variable's type use is bound to s.
func (s *Scope) AddVariable(v *Variable) {
	v.scope = s
	if v.Type != nil {
		v.Type.SetParentScope(s)
	}
	s.variables = append(s.variables, v)
}

func (s *Scope) Variables() []*Variable { return s.variables }

// AddParameter declares a method parameter.
func (s *Scope) AddParameter(v *Variable) {
	v.scope = s
	if v.Type != nil {
		v.Type.SetParentScope(s)
	}
	s.parameters = append(s.parameters, v)
}

func (s *Scope) Parameters() []*Variable { return s.parameters }

// AddMethodCall records a call site made from within s.
func (s *Scope) AddMethodCall(c *MethodCall) {
	c.SetParentScope(s)
	s.calls = append(s.calls, c)
}

func (s *Scope) MethodCalls() []*MethodCall { return s.calls }

// Files returns the distinct files contributing to s and its descendants,
// sorted.
func (s *Scope) Files() []string {
	seen := make(map[string]bool)
	for sc := range s.All() {
		for _, loc := range sc.locations {
			if loc.File != "" {
				seen[loc.File] = true
			}
		}
	}
	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	slices.Sort(files)
	return files
}

func (s *Scope) String() string {
	if s.IsGlobal() {
		return "<global>"
	}
	return fmt.Sprintf("%s %s", s.Kind, s.FullName())
}
