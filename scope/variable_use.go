package scope

import "iter"

// VariableUse is a reference to a variable, field or parameter by name.
type VariableUse struct {
	Use
}

func NewVariableUse(name, language string) *VariableUse {
	return &VariableUse{Use: Use{Name: name, Language: language}}
}

func (v *VariableUse) Matches(d *Variable) bool {
	return d != nil && d.Name == v.Name
}

// FindMatches searches parameters then declared variables of each enclosing
// scope, nearest first.
func (v *VariableUse) FindMatches() (iter.Seq[*Variable], error) {
	return findInScopes(&v.Use, declaredVariables, v.Matches)
}

func declaredVariables(s *Scope) iter.Seq[*Variable] {
	return func(yield func(*Variable) bool) {
		for _, p := range s.parameters {
			if !yield(p) {
				return
			}
		}
		for _, d := range s.variables {
			if !yield(d) {
				return
			}
		}
	}
}
