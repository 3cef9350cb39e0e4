package scope

// Unit is one file's contribution to the graph: the scope tree parsed from it,
// rooted at a global scope, and the file's import aliases.
type Unit struct {
	Path     string
	Language string
	Root     *Scope
	Aliases  []*Alias
}

// Count returns the number of scopes in the unit, excluding its root.
func (u *Unit) Count() int {
	n := -1
	for range u.Root.All() {
		n++
	}
	return n
}
