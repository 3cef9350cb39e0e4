package scope

import (
	"errors"
	"fmt"
)

var (
	// ErrNoParentScope is returned when a use is resolved before it has been
	// bound to an enclosing scope.
	ErrNoParentScope = errors.New("scope: use has no parent scope")

	// ErrDetached matches any DetachedScopeError.
	ErrDetached = errors.New("scope: detached from global scope")
)

// DetachedScopeError reports a qualified lookup from a scope that has no
// global ancestor.
type DetachedScopeError struct {
	Scope *Scope
}

func (e *DetachedScopeError) Error() string {
	name := "<nil>"
	if e.Scope != nil {
		name = e.Scope.FullName()
	}
	return fmt.Sprintf("scope: %q has no global ancestor", name)
}

func (e *DetachedScopeError) Is(target error) bool {
	return target == ErrDetached
}
