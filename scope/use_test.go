package scope

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect[D any](t *testing.T, r Resolver[D]) []D {
	t.Helper()
	got, err := Collect(r)
	require.NoError(t, err)
	return got
}

// =============================================================================
// Alias
// =============================================================================

func TestAlias_AppliesTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		alias Alias
		use   Use
		want  bool
	}{
		{"namespace import applies to anything", Alias{Target: []string{"java", "util"}, Namespace: true}, Use{Name: "List"}, true},
		{"named import matching", Alias{Target: []string{"java", "util", "List"}}, Use{Name: "List"}, true},
		{"named import other name", Alias{Target: []string{"java", "util", "List"}}, Use{Name: "Map"}, false},
		{"rename matches local name", Alias{Target: []string{"System", "Linq"}, LocalName: "L"}, Use{Name: "L"}, true},
		{"rename ignores target name", Alias{Target: []string{"System", "Linq"}, LocalName: "L"}, Use{Name: "Linq"}, false},
		{"language mismatch", Alias{Target: []string{"a"}, Namespace: true, Language: "java"}, Use{Name: "X", Language: "csharp"}, false},
		{"untagged use", Alias{Target: []string{"a"}, Namespace: true, Language: "java"}, Use{Name: "X"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.alias.AppliesTo(&tt.use))
		})
	}
}

func TestAlias_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "java.util.*", (&Alias{Target: []string{"java", "util"}, Namespace: true}).String())
	assert.Equal(t, "java.util.List", (&Alias{Target: []string{"java", "util", "List"}}).String())
	assert.Equal(t, "L = System.Linq", (&Alias{Target: []string{"System", "Linq"}, LocalName: "L"}).String())
}

func TestAddAliases_FiltersAndSkipsNil(t *testing.T) {
	t.Parallel()
	u := &Use{Name: "List"}
	list := &Alias{Target: []string{"java", "util", "List"}}
	mp := &Alias{Target: []string{"java", "util", "Map"}}
	all := &Alias{Target: []string{"java", "io"}, Namespace: true}

	u.AddAliases([]*Alias{list, nil, mp, all})

	assert.Equal(t, []*Alias{list, all}, u.Aliases())
}

// =============================================================================
// Default resolution walk
// =============================================================================

func TestFindMatches_NoParentScope(t *testing.T) {
	t.Parallel()
	_, err := NewVariableUse("x", "java").FindMatches()
	assert.ErrorIs(t, err, ErrNoParentScope)

	_, err = NewNamedScopeUse("java", "A").FindMatches()
	assert.ErrorIs(t, err, ErrNoParentScope)
}

func TestVariableUse_NearestScopeFirst(t *testing.T) {
	t.Parallel()
	_, a, b, c := buildGraph(t)
	outer := &Variable{Name: "x"}
	a.AddVariable(outer)
	inner := &Variable{Name: "x"}
	c.AddVariable(inner)
	other := &Variable{Name: "y"}
	b.AddVariable(other)

	u := NewVariableUse("x", "java")
	u.SetParentScope(c)

	assert.Equal(t, []*Variable{inner, outer}, collect[*Variable](t, u))
}

func TestVariableUse_ParametersBeforeLocals(t *testing.T) {
	t.Parallel()
	_, _, _, c := buildGraph(t)
	m := New("run", KindMethod, "java")
	c.AddChild(m)
	local := &Variable{Name: "n"}
	m.AddVariable(local)
	param := &Variable{Name: "n"}
	m.AddParameter(param)

	u := NewVariableUse("n", "java")
	u.SetParentScope(m)

	assert.Equal(t, []*Variable{param, local}, collect[*Variable](t, u))
}

func TestVariableUse_LazySequence(t *testing.T) {
	t.Parallel()
	_, a, _, c := buildGraph(t)
	u := NewVariableUse("x", "java")
	u.SetParentScope(c)

	seq, err := u.FindMatches()
	require.NoError(t, err)

	// Declarations added after FindMatches are still visible: nothing is
	// evaluated until the sequence is consumed.
	v := &Variable{Name: "x"}
	a.AddVariable(v)
	assert.Equal(t, []*Variable{v}, slices.Collect(seq))
}

func TestFindMatches_NamespaceAliasSearchedAfterParents(t *testing.T) {
	t.Parallel()
	global, _, b, c := buildGraph(t)
	util := ns("util", "u.java")
	global.AddChild(util)
	remote := typ("C", "u.java")
	util.AddChild(remote)

	m := New("run", KindMethod, "java")
	c.AddChild(m)
	u := NewTypeUse("C", "java")
	u.AddAlias(&Alias{Target: []string{"util"}, Namespace: true})
	u.SetParentScope(m)

	got := collect[*Scope](t, u)
	assert.Equal(t, []*Scope{c, remote}, got)
	assert.Same(t, b, got[0].Parent())
}

func TestFindMatches_AliasDoesNotRepeatSearchedScope(t *testing.T) {
	t.Parallel()
	_, _, b, c := buildGraph(t)
	u := NewTypeUse("C", "java")
	u.AddAlias(&Alias{Target: []string{"A", "B"}, Namespace: true})
	u.SetParentScope(b)

	assert.Equal(t, []*Scope{c}, collect[*Scope](t, u))
}

// =============================================================================
// NamedScopeUse
// =============================================================================

func TestNamedScopeUse_Qualified(t *testing.T) {
	t.Parallel()
	_, _, b, c := buildGraph(t)
	use := NewNamedScopeUse("java", "A", "B")
	use.SetParentScope(c)

	assert.Equal(t, []*Scope{b}, collect[*Scope](t, use))
	assert.Equal(t, "A.B", use.FullName())
	assert.Equal(t, "A.B", use.String())
	assert.Equal(t, "B", use.Last().Name)
}

func TestNamedScopeUse_QualifiedFansOut(t *testing.T) {
	t.Parallel()
	global := NewGlobal()
	a1 := ns("A", "1.java")
	a2 := ns("A", "2.java")
	global.AddChild(a1)
	global.AddChild(a2)
	b1 := ns("B", "1.java")
	b2 := ns("B", "2.java")
	a1.AddChild(b1)
	a2.AddChild(b2)

	use := NewNamedScopeUse("java", "A", "B")
	use.SetParentScope(b1)

	assert.Equal(t, []*Scope{b1, b2}, collect[*Scope](t, use))
}

func TestNamedScopeUse_QualifiedMissingSegment(t *testing.T) {
	t.Parallel()
	_, _, _, c := buildGraph(t)
	use := NewNamedScopeUse("java", "A", "X", "C")
	use.SetParentScope(c)

	assert.Empty(t, collect[*Scope](t, use))
}

func TestNamedScopeUse_Detached(t *testing.T) {
	t.Parallel()
	d := ns("D", "d.java")
	use := NewNamedScopeUse("java", "A", "B")
	use.SetParentScope(d)

	_, err := use.FindMatches()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDetached)
	var detached *DetachedScopeError
	require.True(t, errors.As(err, &detached))
	assert.Same(t, d, detached.Scope)
}

func TestNamedScopeUse_UnqualifiedWalksParents(t *testing.T) {
	t.Parallel()
	_, _, b, c := buildGraph(t)
	use := NewNamedScopeUse("java", "B")
	use.SetParentScope(c)

	assert.Equal(t, []*Scope{b}, collect[*Scope](t, use))
}

func TestNamedScopeUse_RenameAlias(t *testing.T) {
	t.Parallel()
	_, _, b, c := buildGraph(t)
	use := NewNamedScopeUse("go", "ab")
	use.AddAlias(&Alias{Target: []string{"A", "B"}, LocalName: "ab"})
	use.SetParentScope(c)

	assert.Equal(t, []*Scope{b}, collect[*Scope](t, use))
}

func TestNamedScopeUse_Matches(t *testing.T) {
	t.Parallel()
	use := NewNamedScopeUse("java", "A")
	assert.True(t, use.Matches(ns("A", "x")))
	assert.True(t, use.Matches(typ("A", "x")))
	assert.False(t, use.Matches(ns("B", "x")))
	assert.False(t, use.Matches(nil))
}

func TestNamedScopeUse_CreateScope(t *testing.T) {
	t.Parallel()
	use := NewNamedScopeUse("csharp", "A", "B", "C")
	use.Location = Location{File: "x.cs", StartLine: 3}

	head := use.CreateScope()

	assert.Equal(t, "A", head.Name)
	assert.Nil(t, head.Parent())
	require.Len(t, head.Children(), 1)
	b := head.Children()[0]
	require.Len(t, b.Children(), 1)
	c := b.Children()[0]
	assert.Equal(t, "A.B.C", c.FullName())
	for _, s := range []*Scope{head, b, c} {
		assert.Equal(t, KindNamespace, s.Kind)
		assert.Equal(t, "csharp", s.Language)
		assert.Equal(t, []Location{use.Location}, s.Locations())
	}
}

func TestNewNamedScopeUse_Empty(t *testing.T) {
	t.Parallel()
	assert.Nil(t, NewNamedScopeUse("java"))
}

// =============================================================================
// MethodCall
// =============================================================================

func method(name string, params ...string) *Scope {
	m := New(name, KindMethod, "java")
	for _, p := range params {
		m.AddParameter(&Variable{Name: p})
	}
	return m
}

func TestMethodCall_NameAndArity(t *testing.T) {
	t.Parallel()
	_, _, _, c := buildGraph(t)
	one := method("put", "k")
	two := method("put", "k", "v")
	c.AddChild(one)
	c.AddChild(two)
	body := New("", KindBlock, "java")
	two.AddChild(body)

	call := NewMethodCall("put", 2, "java")
	body.AddMethodCall(call)
	assert.Equal(t, []*Scope{two}, collect[*Scope](t, call))

	unknown := NewMethodCall("put", UnknownArity, "java")
	body.AddMethodCall(unknown)
	assert.Equal(t, []*Scope{one, two}, collect[*Scope](t, unknown))
}

func TestMethodCall_Receiver(t *testing.T) {
	t.Parallel()
	global, _, _, c := buildGraph(t)
	put := method("put", "k")
	c.AddChild(put)

	other := typ("Main", "m.java")
	global.AddChild(other)
	run := method("run")
	other.AddChild(run)
	run.AddVariable(&Variable{Name: "box", Type: mustParse(t, "A.B.C")})

	call := NewMethodCall("put", 1, "java")
	call.CallingObject = "box"
	run.AddMethodCall(call)

	assert.Equal(t, []*Scope{put}, collect[*Scope](t, call))
}

func TestMethodCall_StaticReceiverUsesAliases(t *testing.T) {
	t.Parallel()
	global, _, _, c := buildGraph(t)
	sort := method("sort", "xs")
	c.AddChild(sort)

	main := typ("Main", "m.java")
	global.AddChild(main)
	run := method("run")
	main.AddChild(run)

	call := NewMethodCall("sort", 1, "java")
	call.CallingObject = "C"
	run.AddMethodCall(call)
	call.AddAliases([]*Alias{{Target: []string{"A", "B", "C"}}})

	assert.Empty(t, call.Aliases())
	assert.Equal(t, []*Scope{sort}, collect[*Scope](t, call))
}

func TestMethodCall_ThisAndConstructor(t *testing.T) {
	t.Parallel()
	_, _, b, c := buildGraph(t)
	ctor := method("C", "x")
	helper := method("helper")
	c.AddChild(ctor)
	c.AddChild(helper)

	self := NewMethodCall("helper", 0, "java")
	self.CallingObject = "this"
	ctor.AddMethodCall(self)
	assert.Equal(t, []*Scope{helper}, collect[*Scope](t, self))

	ctorCall := NewMethodCall("C", 1, "java")
	ctorCall.IsConstructor = true
	b.AddMethodCall(ctorCall)
	assert.Equal(t, []*Scope{ctor}, collect[*Scope](t, ctorCall))
}

func TestApplyAliases(t *testing.T) {
	t.Parallel()
	_, _, _, c := buildGraph(t)
	field := &Variable{Name: "items", Type: mustParse(t, "List<Entry>")}
	c.AddVariable(field)
	call := NewMethodCall("emptyList", 0, "java")
	c.AddMethodCall(call)

	list := &Alias{Target: []string{"java", "util", "List"}}
	entry := &Alias{Target: []string{"java", "util", "Map", "Entry"}}
	ApplyAliases(c, []*Alias{list, entry})

	assert.Equal(t, []*Alias{list}, field.Type.Aliases())
	assert.Equal(t, []*Alias{entry}, field.Type.TypeParameters()[0].Aliases())
	assert.Empty(t, call.Aliases())
}
