package scope

import (
	"iter"
	"strings"
)

// NamedScopeUse is a possibly qualified reference to a namespace or type,
// such as A.B.C. Each segment is a NamedScopeUse linked through Child; the
// head is the outermost segment.
type NamedScopeUse struct {
	Use
	Child *NamedScopeUse
}

// NewNamedScopeUse builds a chain from the given segments, outermost first.
// It returns nil when no segments are given.
func NewNamedScopeUse(language string, segments ...string) *NamedScopeUse {
	var head, tail *NamedScopeUse
	for _, seg := range segments {
		n := &NamedScopeUse{Use: Use{Name: seg, Language: language}}
		if head == nil {
			head = n
		} else {
			tail.Child = n
		}
		tail = n
	}
	return head
}

// Matches compares names only.
func (u *NamedScopeUse) Matches(s *Scope) bool {
	return s != nil && s.Name == u.Name
}

// FindMatches resolves the use. A single segment is looked up through the
// enclosing scopes and aliases like any other use. A qualified chain is
// resolved from the global scope one segment at a time; when a segment is
// ambiguous every candidate is followed.
func (u *NamedScopeUse) FindMatches() (iter.Seq[*Scope], error) {
	if u.Child == nil {
		base, err := findInScopes(&u.Use, childrenWhere(isQualifier), u.Matches)
		if err != nil {
			return nil, err
		}
		return concat(base, renamedTargets(&u.Use, isQualifier)), nil
	}

	if u.parent == nil {
		return nil, ErrNoParentScope
	}
	global := u.parent.Global()
	if global == nil {
		return nil, &DetachedScopeError{Scope: u.parent}
	}

	return func(yield func(*Scope) bool) {
		current := []*Scope{global}
		for seg := u; seg != nil && len(current) > 0; seg = seg.Child {
			var next []*Scope
			for _, s := range current {
				for _, c := range s.children {
					if isQualifier(c) && seg.Matches(c) {
						next = append(next, c)
					}
				}
			}
			current = next
		}
		for _, s := range current {
			if !yield(s) {
				return
			}
		}
	}, nil
}

// Segments returns the names along the chain.
func (u *NamedScopeUse) Segments() []string {
	var out []string
	for seg := u; seg != nil; seg = seg.Child {
		out = append(out, seg.Name)
	}
	return out
}

// FullName joins the segment names with ".".
func (u *NamedScopeUse) FullName() string {
	return strings.Join(u.Segments(), ".")
}

// Last returns the innermost segment.
func (u *NamedScopeUse) Last() *NamedScopeUse {
	seg := u
	for seg.Child != nil {
		seg = seg.Child
	}
	return seg
}

// CreateScope builds a detached chain of namespaces mirroring the use, each
// carrying the use's location and language, and returns the outermost one.
func (u *NamedScopeUse) CreateScope() *Scope {
	head := New(u.Name, KindNamespace, u.Language)
	head.AddLocation(u.Location)
	cur := head
	for seg := u.Child; seg != nil; seg = seg.Child {
		s := New(seg.Name, KindNamespace, u.Language)
		s.AddLocation(u.Location)
		cur.AddChild(s)
		cur = s
	}
	return head
}

func (u *NamedScopeUse) String() string { return u.FullName() }
