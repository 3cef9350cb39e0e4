package scope

import "strings"

// Alias is an import directive that makes names from another namespace
// visible to uses in a file.
//
//	import java.util.*;        Target [java util], Namespace
//	import java.util.List;     Target [java util List]
//	using L = System.Linq;     Target [System Linq], LocalName L
//	import st "example/store"  Target [store], LocalName st
type Alias struct {
	Target []string
	// LocalName renames the target. Empty means the target's own name.
	LocalName string
	// Namespace imports every member of Target rather than Target itself.
	Namespace bool
	Language  string
	Location  Location
}

// Name is the name the alias introduces into the file. Namespace imports
// introduce no single name and return "".
func (a *Alias) Name() string {
	if a.LocalName != "" {
		return a.LocalName
	}
	if a.Namespace || len(a.Target) == 0 {
		return ""
	}
	return a.Target[len(a.Target)-1]
}

// IsRename reports whether the alias binds its target under a different name.
func (a *Alias) IsRename() bool {
	return a.LocalName != "" && (len(a.Target) == 0 || a.LocalName != a.Target[len(a.Target)-1])
}

// AppliesTo reports whether the alias can affect the resolution of u.
// Language-tagged aliases only apply to uses of the same language.
// Namespace imports apply to every use; named imports only to uses that
// spell the imported name.
func (a *Alias) AppliesTo(u *Use) bool {
	if u == nil {
		return false
	}
	if a.Language != "" && u.Language != "" && a.Language != u.Language {
		return false
	}
	if a.Namespace && a.LocalName == "" {
		return true
	}
	return u.Name == a.Name()
}

// searchPath returns the namespace whose members the alias exposes to the
// ordinary lookup, or false when the alias has to be resolved directly.
func (a *Alias) searchPath() ([]string, bool) {
	switch {
	case a.Namespace && a.LocalName == "":
		return a.Target, true
	case a.IsRename() || len(a.Target) == 0:
		return nil, false
	default:
		return a.Target[:len(a.Target)-1], true
	}
}

func (a *Alias) String() string {
	target := strings.Join(a.Target, ".")
	switch {
	case a.IsRename():
		return a.LocalName + " = " + target
	case a.Namespace:
		return target + ".*"
	default:
		return target
	}
}

// ApplyAliases offers aliases to every use declared in the subtree rooted at
// root: variable and parameter types and method calls.
func ApplyAliases(root *Scope, aliases []*Alias) {
	if len(aliases) == 0 {
		return
	}
	for s := range root.All() {
		for _, v := range s.parameters {
			if v.Type != nil {
				v.Type.AddAliases(aliases)
			}
		}
		for _, v := range s.variables {
			if v.Type != nil {
				v.Type.AddAliases(aliases)
			}
		}
		for _, c := range s.calls {
			c.AddAliases(aliases)
		}
	}
}
