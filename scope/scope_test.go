package scope

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ns builds a namespace scope with a location in file.
func ns(name, file string) *Scope {
	s := New(name, KindNamespace, "java")
	s.AddLocation(Location{File: file})
	return s
}

func typ(name, file string) *Scope {
	s := New(name, KindType, "java")
	s.AddLocation(Location{File: file})
	return s
}

// buildGraph returns global { A { B { C(type) } } }.
func buildGraph(t *testing.T) (global, a, b, c *Scope) {
	t.Helper()
	global = NewGlobal()
	a = ns("A", "a.java")
	b = ns("B", "a.java")
	c = typ("C", "a.java")
	global.AddChild(a)
	a.AddChild(b)
	b.AddChild(c)
	return global, a, b, c
}

// =============================================================================
// Tree structure
// =============================================================================

func TestKind_RoundTrip(t *testing.T) {
	t.Parallel()
	for _, k := range []Kind{KindGlobal, KindNamespace, KindType, KindMethod, KindBlock} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("module")
	assert.Error(t, err)
}

func TestAddChild_SetsParentAndOrder(t *testing.T) {
	t.Parallel()
	global := NewGlobal()
	x := ns("X", "x.java")
	y := ns("Y", "y.java")
	global.AddChild(x)
	global.AddChild(y)

	assert.Equal(t, []*Scope{x, y}, global.Children())
	assert.Same(t, global, x.Parent())
	assert.Same(t, global, y.Parent())
}

func TestAddChild_MovesFromPreviousParent(t *testing.T) {
	t.Parallel()
	global, a, b, _ := buildGraph(t)

	global.AddChild(b)

	assert.Empty(t, a.Children())
	assert.Same(t, global, b.Parent())
	assert.Equal(t, "B.C", b.Children()[0].FullName())
}

func TestAddChild_CyclePanics(t *testing.T) {
	t.Parallel()
	_, a, _, c := buildGraph(t)
	assert.Panics(t, func() { c.AddChild(a) })
	assert.Panics(t, func() { a.AddChild(a) })
}

func TestParentScopes_NearestFirst(t *testing.T) {
	t.Parallel()
	global, a, b, c := buildGraph(t)

	assert.Equal(t, []*Scope{b, a, global}, slices.Collect(c.ParentScopes()))
	assert.Equal(t, []*Scope{c, b, a, global}, slices.Collect(c.ParentScopesAndSelf()))
	assert.Empty(t, slices.Collect(global.ParentScopes()))
}

func TestGlobal(t *testing.T) {
	t.Parallel()
	global, _, _, c := buildGraph(t)
	assert.Same(t, global, c.Global())

	detached := ns("D", "d.java")
	detached.AddChild(typ("E", "d.java"))
	assert.Nil(t, detached.Children()[0].Global())
}

func TestFullName(t *testing.T) {
	t.Parallel()
	global, _, _, c := buildGraph(t)
	assert.Equal(t, "A.B.C", c.FullName())
	assert.Equal(t, "", global.FullName())

	block := New("", KindBlock, "java")
	c.AddChild(block)
	assert.Equal(t, "A.B.C", block.FullName())
}

func TestLookup_FansOut(t *testing.T) {
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

	assert.Equal(t, []*Scope{b1, b2}, global.Lookup([]string{"A", "B"}))
	assert.Nil(t, global.Lookup([]string{"A", "Z"}))
	assert.Equal(t, []*Scope{global}, global.Lookup(nil))
}

func TestFindPath_ReachesMethods(t *testing.T) {
	t.Parallel()
	global, _, _, c := buildGraph(t)
	m := New("run", KindMethod, "java")
	c.AddChild(m)

	assert.Nil(t, global.Lookup([]string{"A", "B", "C", "run"}))
	assert.Equal(t, []*Scope{m}, global.FindPath([]string{"A", "B", "C", "run"}))
	assert.Nil(t, global.FindPath([]string{"A", "run"}))
	assert.Equal(t, []*Scope{global}, global.FindPath(nil))
}

func TestAll_PreOrder(t *testing.T) {
	t.Parallel()
	global, a, b, c := buildGraph(t)
	d := ns("D", "d.java")
	global.AddChild(d)

	assert.Equal(t, []*Scope{global, a, b, c, d}, slices.Collect(global.All()))
}

func TestLocation_Contains(t *testing.T) {
	t.Parallel()
	loc := Location{File: "f", StartLine: 2, StartCol: 4, EndLine: 5, EndCol: 1}

	tests := []struct {
		line, col int
		want      bool
	}{
		{2, 4, true},
		{2, 3, false},
		{3, 0, true},
		{5, 1, true},
		{5, 2, false},
		{1, 9, false},
		{6, 0, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, loc.Contains(tt.line, tt.col), "line %d col %d", tt.line, tt.col)
	}
}

func TestAddVariable_BindsTypeUse(t *testing.T) {
	t.Parallel()
	_, _, b, _ := buildGraph(t)
	tu := NewTypeUse("C", "java")
	v := &Variable{Name: "x", Type: tu}
	b.AddVariable(v)

	assert.Same(t, b, v.Scope())
	assert.Same(t, b, tu.ParentScope())
}

// =============================================================================
// Merge & RemoveFile
// =============================================================================

func TestMerge_NamespacesCombine(t *testing.T) {
	t.Parallel()
	global, a, b, c := buildGraph(t)

	other := NewGlobal()
	a2 := ns("A", "b.java")
	b2 := ns("B", "b.java")
	d := typ("D", "b.java")
	other.AddChild(a2)
	a2.AddChild(b2)
	b2.AddChild(d)

	global.Merge(other)

	require.Len(t, global.Children(), 1)
	assert.Same(t, a, global.Children()[0])
	assert.Equal(t, []*Scope{c, d}, b.Children())
	assert.Same(t, b, d.Parent())
	assert.Len(t, b.Locations(), 2)
	assert.Empty(t, other.Children())
}

func TestMerge_TypesWithSameNameKeptApart(t *testing.T) {
	t.Parallel()
	global, _, b, c := buildGraph(t)

	other := NewGlobal()
	a2 := ns("A", "b.java")
	b2 := ns("B", "b.java")
	c2 := typ("C", "b.java")
	other.AddChild(a2)
	a2.AddChild(b2)
	b2.AddChild(c2)

	global.Merge(other)

	assert.Equal(t, []*Scope{c, c2}, b.ChildrenNamed("C"))
}

func TestMerge_VariablesRebound(t *testing.T) {
	t.Parallel()
	global := NewGlobal()
	pkg := ns("store", "a.go")
	global.AddChild(pkg)

	other := NewGlobal()
	pkg2 := ns("store", "b.go")
	other.AddChild(pkg2)
	v := &Variable{Name: "Default", Type: NewTypeUse("Store", "go"), Location: Location{File: "b.go"}}
	pkg2.AddVariable(v)
	call := NewMethodCall("init", 0, "go")
	call.Location = Location{File: "b.go"}
	pkg2.AddMethodCall(call)

	global.Merge(other)

	assert.Same(t, pkg, v.Scope())
	assert.Same(t, pkg, v.Type.ParentScope())
	assert.Same(t, pkg, call.ParentScope())
	assert.Equal(t, []*Variable{v}, pkg.Variables())
}

func TestRemoveFile(t *testing.T) {
	t.Parallel()
	global, a, b, c := buildGraph(t)

	other := NewGlobal()
	a2 := ns("A", "b.java")
	b2 := ns("B", "b.java")
	d := typ("D", "b.java")
	other.AddChild(a2)
	a2.AddChild(b2)
	b2.AddChild(d)
	d.AddVariable(&Variable{Name: "f", Location: Location{File: "b.java"}})
	global.Merge(other)

	global.RemoveFile("a.java")

	assert.Equal(t, []*Scope{a}, global.Children())
	assert.Equal(t, []*Scope{d}, b.Children())
	assert.Nil(t, c.Parent())
	assert.Equal(t, []string{"b.java"}, global.Files())

	global.RemoveFile("b.java")
	assert.Empty(t, global.Children())
	assert.Nil(t, a.Parent())
}
