package scopegraph

import (
	"errors"
	"slices"

	"github.com/jward/scopegraph/internal/monitor"
	"github.com/jward/scopegraph/internal/parse"
	"github.com/jward/scopegraph/query"
	"github.com/jward/scopegraph/scope"
	"github.com/jward/scopegraph/internal/store"
)

// Public type aliases for internal types that appear in the Engine API.

type Store = store.Store
type File = store.File
type Location = scope.Location
type ParseError = parse.ParseError
type Event = monitor.Event

var (
	// ErrLockTimeout is returned when a query gave up waiting for the global
	// scope lock.
	ErrLockTimeout = query.ErrLockTimeout
	// ErrCancelled is returned when an asynchronous query's context was done
	// before its body started.
	ErrCancelled = query.ErrCancelled
	// ErrNoRepository is returned by a query that has no repository bound.
	ErrNoRepository = query.ErrNoRepository
	// ErrDetachedScope matches resolution attempts from scopes outside the
	// graph.
	ErrDetachedScope = scope.ErrDetached
	// ErrNotFound is returned when a context scope name matches nothing.
	ErrNotFound = errors.New("scopegraph: no scope with that name")
)

// ScopeInfo is a snapshot of a scope, safe to use after the lock is
// released.
type ScopeInfo struct {
	Name          string     `json:"name"`
	Kind          string     `json:"kind"`
	FullName      string     `json:"full_name"`
	Language      string     `json:"language,omitempty"`
	Accessibility string     `json:"accessibility,omitempty"`
	Builtin       bool       `json:"builtin,omitempty"`
	Arity         int        `json:"arity"`
	TypeParams    []string   `json:"type_params,omitempty"`
	Locations     []Location `json:"locations,omitempty"`
}

func scopeInfo(s *scope.Scope) ScopeInfo {
	return ScopeInfo{
		Name:          s.Name,
		Kind:          s.Kind.String(),
		FullName:      s.FullName(),
		Language:      s.Language,
		Accessibility: s.Accessibility,
		Builtin:       s.Builtin,
		Arity:         s.Arity(),
		TypeParams:    slices.Clone(s.TypeParams),
		Locations:     slices.Clone(s.Locations()),
	}
}

func scopeInfos(scopes []*scope.Scope) []ScopeInfo {
	out := make([]ScopeInfo, 0, len(scopes))
	for _, s := range scopes {
		out = append(out, scopeInfo(s))
	}
	return out
}

// VariableInfo is a snapshot of a variable, field or parameter.
type VariableInfo struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`

	// TypeFullName is the qualified name of the first type Type resolves
	// to. It is only filled by ResolveVariable.
	TypeFullName  string   `json:"type_full_name,omitempty"`
	Scope         string   `json:"scope"`
	Accessibility string   `json:"accessibility,omitempty"`
	Parameter     bool     `json:"parameter,omitempty"`
	Location      Location `json:"location"`
}

func variableInfo(v *scope.Variable) VariableInfo {
	info := VariableInfo{
		Name:          v.Name,
		Accessibility: v.Accessibility,
		Location:      v.Location,
	}
	if v.Type != nil {
		info.Type = v.Type.String()
	}
	if s := v.Scope(); s != nil {
		info.Scope = s.FullName()
		info.Parameter = slices.Contains(s.Parameters(), v)
	}
	return info
}

// CallInfo is a call site and the methods it resolves to.
type CallInfo struct {
	Name        string   `json:"name"`
	Receiver    string   `json:"receiver,omitempty"`
	Arguments   int      `json:"arguments"`
	Constructor bool     `json:"constructor,omitempty"`
	Caller      string   `json:"caller"`
	Location    Location `json:"location"`
	Targets     []string `json:"targets"`
}

// UnresolvedUse is a type reference or call site that resolves to nothing.
type UnresolvedUse struct {
	Kind     string   `json:"kind"`
	Name     string   `json:"name"`
	Scope    string   `json:"scope"`
	Language string   `json:"language,omitempty"`
	Location Location `json:"location"`
}

const (
	UseType = "type"
	UseCall = "call"
)

// TreeNode is a snapshot of a subtree of the graph.
type TreeNode struct {
	ScopeInfo
	Variables []VariableInfo `json:"variables,omitempty"`
	Children  []*TreeNode    `json:"children,omitempty"`
}

// Stats summarises the live graph and the database behind it.
type Stats struct {
	// Scopes counts graph scopes by kind, excluding the global scope.
	Scopes      map[string]int `json:"scopes"`
	Variables   int            `json:"variables"`
	Parameters  int            `json:"parameters"`
	MethodCalls int            `json:"method_calls"`
	Files       int            `json:"files"`
	Stored      *store.Stats   `json:"stored,omitempty"`
}
