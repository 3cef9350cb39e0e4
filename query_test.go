package scopegraph

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/scopegraph/query"
)

func newIndexedEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e := newTestEngine(t, opts...)
	indexFixture(t, e)
	return e
}

func callNamed(t *testing.T, calls []CallInfo, name string) CallInfo {
	t.Helper()
	for _, c := range calls {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no call %q", name)
	return CallInfo{}
}

// =============================================================================
// FindScopes / FindTypes
// =============================================================================

func TestFindScopes_Namespaces(t *testing.T) {
	t.Parallel()
	e := newIndexedEngine(t)

	found, err := e.Query().FindScopes("com.acme")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "namespace", found[0].Kind)
	assert.Equal(t, "com.acme", found[0].FullName)

	// Methods are not named scopes.
	found, err = e.Query().FindScopes("com.acme.Widget.run")
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = e.Query().FindScopes("  ")
	assert.Error(t, err)
}

func TestFindTypes_ThroughImport(t *testing.T) {
	t.Parallel()
	e := newIndexedEngine(t)

	found, err := e.Query().FindTypes("Widget", "com.acme.ui.Gadget.draw")
	require.NoError(t, err)
	assert.Equal(t, []string{"com.acme.Widget"}, fullNames(found))

	found, err = e.Query().FindTypes("com.acme.ui.Gadget", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"com.acme.ui.Gadget"}, fullNames(found))
}

func TestFindTypes_Builtin(t *testing.T) {
	t.Parallel()
	e := newIndexedEngine(t)

	found, err := e.Query().FindTypes("int", "com.acme.Widget")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.True(t, found[0].Builtin)
}

func TestFindTypes_UnknownContext(t *testing.T) {
	t.Parallel()
	e := newIndexedEngine(t)

	_, err := e.Query().FindTypes("Widget", "com.nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindTypesAsync(t *testing.T) {
	t.Parallel()
	e := newIndexedEngine(t, WithAsyncWorkers(2))

	found, err := e.Query().FindTypesAsync(context.Background(), "Widget", "com.acme.ui.Gadget").Wait()
	require.NoError(t, err)
	assert.Equal(t, []string{"com.acme.Widget"}, fullNames(found))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Query().FindTypesAsync(ctx, "Widget", "com.acme.ui.Gadget").Wait()
	assert.ErrorIs(t, err, ErrCancelled)
}

// =============================================================================
// Variables and calls
// =============================================================================

func TestResolveVariable_FieldFromMethod(t *testing.T) {
	t.Parallel()
	e := newIndexedEngine(t)

	vars, err := e.Query().ResolveVariable("widget", "com.acme.ui.Gadget.draw")
	require.NoError(t, err)
	require.Len(t, vars, 1)
	v := vars[0]
	assert.Equal(t, "Widget", v.Type)
	assert.Equal(t, "com.acme.Widget", v.TypeFullName)
	assert.Equal(t, "com.acme.ui.Gadget", v.Scope)
	assert.Equal(t, "private", v.Accessibility)
	assert.False(t, v.Parameter)
}

func TestResolveVariable_Parameter(t *testing.T) {
	t.Parallel()
	e := newIndexedEngine(t)

	vars, err := e.Query().ResolveVariable("mode", "com.acme.Widget.run")
	require.NoError(t, err)
	require.Len(t, vars, 1)
	assert.True(t, vars[0].Parameter)
	assert.Empty(t, vars[0].TypeFullName, "String is not indexed")

	// Locals of another method are out of reach.
	vars, err = e.Query().ResolveVariable("tmp", "com.acme.Widget.helper")
	require.NoError(t, err)
	assert.Empty(t, vars)
}

func TestResolveCalls(t *testing.T) {
	t.Parallel()
	e := newIndexedEngine(t)

	calls, err := e.Query().ResolveCalls("com.acme.ui.Gadget")
	require.NoError(t, err)
	require.Len(t, calls, 2)

	run := callNamed(t, calls, "run")
	assert.Equal(t, "widget", run.Receiver)
	assert.Equal(t, 1, run.Arguments)
	assert.Equal(t, "com.acme.ui.Gadget.draw", run.Caller)
	assert.Equal(t, []string{"com.acme.Widget.run"}, run.Targets)

	assert.Empty(t, callNamed(t, calls, "unknown").Targets)

	calls, err = e.Query().ResolveCalls("com.acme.Widget")
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"com.acme.Widget.helper"}, calls[0].Targets)
}

func TestUnresolved(t *testing.T) {
	t.Parallel()
	e := newIndexedEngine(t)

	uses, err := e.Query().Unresolved("java")
	require.NoError(t, err)

	got := make(map[string]string)
	for _, u := range uses {
		got[u.Name] = u.Kind
		assert.NotEmpty(t, u.Location.File)
	}
	assert.Equal(t, map[string]string{
		"String":  UseType,
		"Missing": UseType,
		"unknown": UseCall,
	}, got)

	uses, err = e.Query().Unresolved("go")
	require.NoError(t, err)
	assert.Empty(t, uses)
}

// =============================================================================
// Tree / Stats
// =============================================================================

func TestTree_Depth(t *testing.T) {
	t.Parallel()
	e := newIndexedEngine(t)

	trees, err := e.Query().Tree("com.acme", 0)
	require.NoError(t, err)
	require.Len(t, trees, 1)
	assert.Empty(t, trees[0].Children)

	trees, err = e.Query().Tree("com.acme", -1)
	require.NoError(t, err)
	require.Len(t, trees, 1)
	var names []string
	for _, c := range trees[0].Children {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"Widget", "ui"}, names)

	trees, err = e.Query().Tree("com.acme.Widget.run", 0)
	require.NoError(t, err)
	require.Len(t, trees, 1)
	require.Len(t, trees[0].Variables, 2)
	assert.Equal(t, "mode", trees[0].Variables[0].Name, "parameters come first")
	assert.True(t, trees[0].Variables[0].Parameter)
	assert.Equal(t, "tmp", trees[0].Variables[1].Name)
}

func TestStats(t *testing.T) {
	t.Parallel()
	e := newIndexedEngine(t)

	st, err := e.Query().Stats()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"namespace": 3, "type": 2, "method": 3}, st.Scopes)
	assert.Equal(t, 2, st.Parameters)
	assert.Equal(t, 3, st.MethodCalls)
	assert.Equal(t, 2, st.Files)
	require.NotNil(t, st.Stored)
	assert.Equal(t, 2, st.Stored.Files)
	assert.Equal(t, 2, st.Stored.Languages["java"])
}

// =============================================================================
// Locking
// =============================================================================

func TestQuery_LockTimeout(t *testing.T) {
	t.Parallel()
	e := newIndexedEngine(t, WithLockTimeout(20*time.Millisecond))

	_, ok := e.repo.TryLockGlobalScope(query.WaitForever)
	require.True(t, ok)

	_, err := e.Query().FindScopes("com.acme.Widget")
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.True(t, query.IsLockTimeout(err))

	e.repo.ReleaseGlobalScopeLock()
	found, err := e.Query().FindScopes("com.acme.Widget")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestIndexFiles_WaitsForLock(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithLockTimeout(20*time.Millisecond))
	widget := writeSource(t, filepath.Join(t.TempDir(), "Widget.java"), widgetJava)
	_, ok := e.repo.TryLockGlobalScope(query.WaitForever)
	require.True(t, ok)

	done := make(chan error, 1)
	go func() {
		done <- e.IndexFiles(context.Background(), []string{widget})
	}()

	select {
	case err := <-done:
		t.Fatalf("IndexFiles returned while the lock was held: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	e.repo.ReleaseGlobalScopeLock()
	require.NoError(t, <-done)
}
