package scope

// Merge grafts the contents of other into s. Namespace children with the same
// name are merged recursively; every other child is appended in order.
// Locations, variables and method calls of other move to s. other is left
// empty.
func (s *Scope) Merge(other *Scope) {
	s.locations = append(s.locations, other.locations...)
	for _, v := range other.variables {
		s.AddVariable(v)
	}
	for _, c := range other.calls {
		s.AddMethodCall(c)
	}

	children := other.children
	other.children = nil
	other.locations = nil
	other.variables = nil
	other.calls = nil

	for _, child := range children {
		child.parent = nil
		if child.Kind == KindNamespace {
			if existing := s.Child(child.Name, KindNamespace); existing != nil {
				existing.Merge(child)
				continue
			}
		}
		s.AddChild(child)
	}
}

// RemoveFile drops everything path contributed to the subtree rooted at s.
// Children left without locations and without children are detached.
func (s *Scope) RemoveFile(path string) {
	s.locations = filter(s.locations, func(l Location) bool { return l.File != path })
	s.variables = filter(s.variables, func(v *Variable) bool { return v.Location.File != path })
	s.calls = filter(s.calls, func(c *MethodCall) bool { return c.Location.File != path })

	kept := s.children[:0]
	for _, c := range s.children {
		c.RemoveFile(path)
		if len(c.locations) == 0 && len(c.children) == 0 && !c.Builtin {
			c.parent = nil
			continue
		}
		kept = append(kept, c)
	}
	clear(s.children[len(kept):])
	s.children = kept
}

func filter[T any](in []T, keep func(T) bool) []T {
	out := in[:0]
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	clear(in[len(out):])
	return out
}
