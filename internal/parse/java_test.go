package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/scopegraph/scope"
)

const javaService = `package com.acme.app;

import java.util.List;
import java.util.*;
import static java.lang.Math.max;

public class Service<T> {
    private final List<String> names = new ArrayList<>();
    private Repo repo;

    public Service(Repo repo) {
        this.repo = repo;
    }

    public int count(String prefix, int limit) {
        int total = 0;
        for (String n : names) {
            total += helper(n);
        }
        repo.save(prefix);
        return max(total, limit);
    }

    private int helper(String s) {
        return s.length();
    }

    static class Inner {
    }
}

interface Repo {
    void save(String s);
}
`

func TestJava_Declarations(t *testing.T) {
	t.Parallel()
	u := parseSource(t, "/src/Service.java", javaService)
	assert.Equal(t, "java", u.Language)

	svc := lookup(t, u, "com", "acme", "app", "Service")
	assert.Equal(t, scope.KindType, svc.Kind)
	assert.Equal(t, "public", svc.Accessibility)
	assert.Equal(t, []string{"T"}, svc.TypeParams)
	assert.Equal(t, "com.acme.app.Service", svc.FullName())
	loc, ok := svc.PrimaryLocation()
	require.True(t, ok)
	assert.Equal(t, "/src/Service.java", loc.File)
	assert.Equal(t, 6, loc.StartLine)

	names := variable(t, svc.Variables(), "names")
	assert.Equal(t, "private", names.Accessibility)
	assert.Equal(t, "List<String>", names.Type.String())
	assert.Equal(t, "Repo", variable(t, svc.Variables(), "repo").Type.String())

	assert.Equal(t, 1, method(t, svc, "Service").Arity())
	count := method(t, svc, "count")
	assert.Equal(t, 2, count.Arity())
	assert.Equal(t, "public", count.Accessibility)
	assert.Equal(t, "int", variable(t, count.Variables(), "total").Type.String())
	assert.Equal(t, "String", variable(t, count.Variables(), "n").Type.String())
	assert.Equal(t, "private", method(t, svc, "helper").Accessibility)

	inner := svc.Child("Inner", scope.KindType)
	require.NotNil(t, inner)
	assert.Equal(t, "com.acme.app.Service.Inner", inner.FullName())

	repo := lookup(t, u, "com", "acme", "app", "Repo")
	assert.Equal(t, 1, method(t, repo, "save").Arity())
}

func TestJava_CallsAndConstructors(t *testing.T) {
	t.Parallel()
	u := parseSource(t, "/src/Service.java", javaService)
	svc := lookup(t, u, "com", "acme", "app", "Service")

	ctor := call(t, svc, "ArrayList")
	assert.True(t, ctor.IsConstructor)
	assert.Equal(t, 0, ctor.Arguments)

	count := method(t, svc, "count")
	helper := call(t, count, "helper")
	assert.Empty(t, helper.CallingObject)
	assert.Equal(t, 1, helper.Arguments)
	save := call(t, count, "save")
	assert.Equal(t, "repo", save.CallingObject)
	assert.Equal(t, 2, call(t, count, "max").Arguments)

	assert.Equal(t, "s", call(t, method(t, svc, "helper"), "length").CallingObject)
}

func TestJava_Imports(t *testing.T) {
	t.Parallel()
	u := parseSource(t, "/src/Service.java", javaService)
	require.Len(t, u.Aliases, 3)

	assert.Equal(t, []string{"java", "util", "List"}, u.Aliases[0].Target)
	assert.False(t, u.Aliases[0].Namespace)
	assert.Equal(t, []string{"java", "util"}, u.Aliases[1].Target)
	assert.True(t, u.Aliases[1].Namespace)
	assert.Equal(t, []string{"java", "lang", "Math", "max"}, u.Aliases[2].Target)
	for _, a := range u.Aliases {
		assert.Equal(t, "java", a.Language)
		assert.Equal(t, "/src/Service.java", a.Location.File)
	}
}

func TestJava_ResolvesWithinFile(t *testing.T) {
	t.Parallel()
	u := parseSource(t, "/src/Service.java", javaService)
	svc := lookup(t, u, "com", "acme", "app", "Service")
	repo := lookup(t, u, "com", "acme", "app", "Repo")

	got, err := variable(t, svc.Variables(), "repo").Type.FindFirstMatchingType()
	require.NoError(t, err)
	assert.Same(t, repo, got)

	count := method(t, svc, "count")
	targets, err := scope.Collect[*scope.Scope](call(t, count, "save"))
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Same(t, method(t, repo, "save"), targets[0])

	targets, err = scope.Collect[*scope.Scope](call(t, count, "helper"))
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Same(t, method(t, svc, "helper"), targets[0])
}

func TestJava_EnumAndAnonymousClass(t *testing.T) {
	t.Parallel()
	src := `package p;

enum Color {
    RED, GREEN;

    Color next() { return GREEN; }
}

class Runner {
    void start() {
        Runnable r = new Runnable() {
            public void run() {}
        };
        r.run();
    }
}
`
	u := parseSource(t, "/src/Color.java", src)
	color := lookup(t, u, "p", "Color")
	red := variable(t, color.Variables(), "RED")
	assert.Equal(t, "Color", red.Type.String())
	assert.NotNil(t, color.Child("next", scope.KindMethod))

	start := method(t, lookup(t, u, "p", "Runner"), "start")
	assert.Equal(t, "Runnable", variable(t, start.Variables(), "r").Type.String())
	assert.True(t, call(t, start, "Runnable").IsConstructor)

	var anon *scope.Scope
	for _, c := range start.Children() {
		if c.Kind == scope.KindType && c.Name == "" {
			anon = c
		}
	}
	require.NotNil(t, anon)
	assert.NotNil(t, anon.Child("run", scope.KindMethod))
}
