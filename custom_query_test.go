package scopegraph_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/scopegraph"
	"github.com/jward/scopegraph/query"
	"github.com/jward/scopegraph/scope"
)

const (
	widgetSource = `package com.acme;

public class Widget {
    private int count;

    public void run(String mode) {
        helper(count);
    }

    private void helper(int x) {
    }
}
`
	gadgetSource = `package com.acme.ui;

import com.acme.Widget;

public class Gadget {
    private Widget widget;

    public void draw() {
        widget.run("fast");
    }
}
`
)

func openIndexed(t *testing.T, opts ...scopegraph.Option) *scopegraph.Engine {
	t.Helper()
	e, err := scopegraph.New(filepath.Join(t.TempDir(), "test.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	dir := t.TempDir()
	widget := filepath.Join(dir, "Widget.java")
	gadget := filepath.Join(dir, "Gadget.java")
	require.NoError(t, os.WriteFile(widget, []byte(widgetSource), 0o644))
	require.NoError(t, os.WriteFile(gadget, []byte(gadgetSource), 0o644))
	require.NoError(t, e.IndexFiles(context.Background(), []string{widget, gadget}))
	return e
}

func lookup(global *scope.Scope, qualified string) ([]*scope.Scope, error) {
	use := scope.NewNamedScopeUse("", strings.Split(qualified, ".")...)
	use.SetParentScope(global)
	return scope.Collect[*scope.Scope](use)
}

// =============================================================================
// Custom queries
// =============================================================================

func TestNewQuery1_Members(t *testing.T) {
	t.Parallel()
	e := openIndexed(t)

	members := scopegraph.NewQuery1(e, func(global *scope.Scope, name string) ([]string, error) {
		types, err := lookup(global, name)
		if err != nil {
			return nil, err
		}
		var out []string
		for _, typ := range types {
			for _, c := range typ.Children() {
				out = append(out, c.Name)
			}
		}
		return out, nil
	})

	names, err := members.Execute("com.acme.Widget")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"run", "helper"}, names)
}

func TestNewQuery2_FirstMatchingType(t *testing.T) {
	t.Parallel()
	e := openIndexed(t)

	resolve := scopegraph.NewQuery2(e, func(global *scope.Scope, expr, within string) (string, error) {
		at, err := lookup(global, within)
		if err != nil || len(at) == 0 {
			return "", err
		}
		use := scope.NewTypeUse(expr, at[0].Language)
		use.SetParentScope(at[0])
		typ, err := use.FindFirstMatchingType()
		if err != nil || typ == nil {
			return "", err
		}
		return typ.FullName(), nil
	})

	got, err := resolve.ExecuteAsync(context.Background(), "Widget", "com.acme.ui.Gadget").Wait()
	require.NoError(t, err)
	assert.Equal(t, "com.acme.Widget", got)
}

func TestNewQuery_InheritsEngineLockTimeout(t *testing.T) {
	t.Parallel()
	e := openIndexed(t, scopegraph.WithLockTimeout(20*time.Millisecond))

	entered := make(chan struct{})
	release := make(chan struct{})
	hold := scopegraph.NewQuery0(e, func(*scope.Scope) (struct{}, error) {
		close(entered)
		<-release
		return struct{}{}, nil
	}, query.WithLockTimeout(query.WaitForever))
	task := hold.ExecuteAsync(context.Background())
	<-entered

	count := scopegraph.NewQuery0(e, func(global *scope.Scope) (int, error) {
		return len(global.Children()), nil
	})
	_, err := count.Execute()
	assert.ErrorIs(t, err, scopegraph.ErrLockTimeout)

	close(release)
	_, err = task.Wait()
	require.NoError(t, err)

	n, err := count.Execute()
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestNewQuery5_BundlesParameters(t *testing.T) {
	t.Parallel()
	e := openIndexed(t)

	join := scopegraph.NewQuery5(e, func(_ *scope.Scope, a, b, c string, d int, f bool) (string, error) {
		return fmt.Sprintf("%s.%s.%s/%d/%t", a, b, c, d, f), nil
	}, query.WithName("join"))

	got, err := join.Execute("com", "acme", "Widget", 2, true)
	require.NoError(t, err)
	assert.Equal(t, "com.acme.Widget/2/true", got)
	assert.Equal(t, query.WaitForever, join.LockTimeout())
}
