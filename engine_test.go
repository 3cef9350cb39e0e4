package scopegraph

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/scopegraph/internal/config"
	"github.com/jward/scopegraph/internal/monitor"
	"github.com/jward/scopegraph/query"
)

const widgetJava = `package com.acme;

public class Widget {
    private int count;

    public void run(String mode) {
        int tmp = 0;
        helper(tmp);
    }

    private void helper(int x) {
    }
}
`

const gadgetJava = `package com.acme.ui;

import com.acme.Widget;

public class Gadget {
    private Widget widget;
    private Missing missing;

    public void draw() {
        widget.run("fast");
        unknown();
    }
}
`

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	e, err := New(dbPath, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func writeSource(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// indexFixture indexes Widget.java and Gadget.java from a fresh directory.
func indexFixture(t *testing.T, e *Engine) (dir, widget, gadget string) {
	t.Helper()
	dir = t.TempDir()
	widget = writeSource(t, filepath.Join(dir, "com", "acme", "Widget.java"), widgetJava)
	gadget = writeSource(t, filepath.Join(dir, "com", "acme", "ui", "Gadget.java"), gadgetJava)
	require.NoError(t, e.IndexFiles(context.Background(), []string{widget, gadget}))
	return dir, widget, gadget
}

func fullNames(infos []ScopeInfo) []string {
	var out []string
	for _, i := range infos {
		out = append(out, i.FullName)
	}
	return out
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_InvalidPath(t *testing.T) {
	t.Parallel()
	_, err := New("/nonexistent/dir/db.sqlite")
	require.Error(t, err)
}

func TestClose(t *testing.T) {
	t.Parallel()
	e, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, e.Close())
}

func TestWithLanguages(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithLanguages("go", "java"))
	assert.True(t, e.languages["go"])
	assert.True(t, e.languages["java"])
	assert.False(t, e.languages["csharp"])
}

// =============================================================================
// Indexing
// =============================================================================

func TestIndexFiles_BuildsGraph(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	_, widget, _ := indexFixture(t, e)

	found, err := e.Query().FindScopes("com.acme.Widget")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "type", found[0].Kind)
	assert.Equal(t, "public", found[0].Accessibility)
	require.NotEmpty(t, found[0].Locations)
	assert.Equal(t, widget, found[0].Locations[0].File)

	f, err := e.Store().FileByPath(widget)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "java", f.Language)
	assert.Empty(t, e.ParseErrors())
}

func TestIndexFiles_SerialMatchesParallel(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithParallel(false))
	indexFixture(t, e)

	found, err := e.Query().FindTypes("Widget", "com.acme.ui.Gadget")
	require.NoError(t, err)
	assert.Equal(t, []string{"com.acme.Widget"}, fullNames(found))
}

func TestIndexFiles_SkipsUnsupportedExtensions(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	tmp := writeSource(t, filepath.Join(t.TempDir(), "readme.txt"), "hello")

	require.NoError(t, e.IndexFiles(context.Background(), []string{tmp}))
	f, err := e.Store().FileByPath(tmp)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestIndexFiles_SkipsFilteredLanguages(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithLanguages("java"))
	tmp := writeSource(t, filepath.Join(t.TempDir(), "main.go"), "package main\n")

	require.NoError(t, e.IndexFiles(context.Background(), []string{tmp}))
	f, err := e.Store().FileByPath(tmp)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestIndexFiles_SkipsUnchangedFiles(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	_, widget, _ := indexFixture(t, e)

	before, err := e.Store().FileByPath(widget)
	require.NoError(t, err)
	require.NoError(t, e.IndexFiles(context.Background(), []string{widget}))
	after, err := e.Store().FileByPath(widget)
	require.NoError(t, err)

	// Saving again would have replaced the row.
	assert.Equal(t, before.ID, after.ID)
}

func TestIndexFiles_ReindexesChangedFiles(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	_, widget, _ := indexFixture(t, e)

	writeSource(t, widget, `package com.acme;

public class Widget {
    public void stop() {
    }
}
`)
	require.NoError(t, e.IndexFiles(context.Background(), []string{widget}))

	found, err := e.Query().FindScopes("com.acme.Widget")
	require.NoError(t, err)
	require.Len(t, found, 1, "old declaration must be replaced, not duplicated")

	trees, err := e.Query().Tree("com.acme.Widget", 1)
	require.NoError(t, err)
	require.Len(t, trees, 1)
	var methods []string
	for _, c := range trees[0].Children {
		methods = append(methods, c.Name)
	}
	assert.Equal(t, []string{"stop"}, methods)
	assert.Empty(t, trees[0].Variables)
}

func TestIndexFiles_KeepsFilesWithSyntaxErrors(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	broken := writeSource(t, filepath.Join(t.TempDir(), "Broken.java"), `package com.acme;

public class Broken {
    public void ok() {}
    public void bad( {
}
`)
	require.NoError(t, e.IndexFiles(context.Background(), []string{broken}))

	errs := e.ParseErrors()
	require.Contains(t, errs, broken)
	assert.Equal(t, "java", errs[broken].Parser)

	f, err := e.Store().FileByPath(broken)
	require.NoError(t, err)
	assert.NotNil(t, f)

	// Fixing the file clears the error.
	writeSource(t, broken, "package com.acme;\n\npublic class Broken {}\n")
	require.NoError(t, e.IndexFiles(context.Background(), []string{broken}))
	assert.NotContains(t, e.ParseErrors(), broken)
}

func TestIndexFiles_MissingFileIsReported(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	ok := writeSource(t, filepath.Join(t.TempDir(), "Widget.java"), widgetJava)

	err := e.IndexFiles(context.Background(), []string{filepath.Join(t.TempDir(), "Gone.java"), ok})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read file")

	// The readable file is indexed regardless.
	found, err := e.Query().FindScopes("com.acme.Widget")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestIndexFiles_Cancelled(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	widget := writeSource(t, filepath.Join(t.TempDir(), "Widget.java"), widgetJava)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.IndexFiles(ctx, []string{widget})
	assert.ErrorIs(t, err, context.Canceled)

	f, err := e.Store().FileByPath(widget)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestRemoveFile(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	_, widget, _ := indexFixture(t, e)

	require.NoError(t, e.RemoveFile(context.Background(), widget))

	found, err := e.Query().FindScopes("com.acme.Widget")
	require.NoError(t, err)
	assert.Empty(t, found)
	found, err = e.Query().FindScopes("com.acme.ui.Gadget")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	f, err := e.Store().FileByPath(widget)
	require.NoError(t, err)
	assert.Nil(t, f)

	// Removing again is a no-op.
	require.NoError(t, e.RemoveFile(context.Background(), widget))
}

func TestLoad_RebuildsGraphFromStore(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	first, err := New(dbPath)
	require.NoError(t, err)
	indexFixture(t, first)
	require.NoError(t, first.Close())

	e, err := New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	found, err := e.Query().FindScopes("com.acme.Widget")
	require.NoError(t, err)
	assert.Empty(t, found, "graph starts empty")

	require.NoError(t, e.Load(context.Background()))
	found, err = e.Query().FindScopes("com.acme.Widget")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	// Imports survive the round trip.
	vars, err := e.Query().ResolveVariable("widget", "com.acme.ui.Gadget.draw")
	require.NoError(t, err)
	require.Len(t, vars, 1)
	assert.Equal(t, "com.acme.Widget", vars[0].TypeFullName)

	// Loading twice does not duplicate anything.
	require.NoError(t, e.Load(context.Background()))
	found, err = e.Query().FindScopes("com.acme.Widget")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

// =============================================================================
// Directories and events
// =============================================================================

func TestIndexDirectory_DiscoversAndPrunes(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	widget := writeSource(t, filepath.Join(root, "src", "Widget.java"), widgetJava)
	writeSource(t, filepath.Join(root, "src", "ui", "Gadget.java"), gadgetJava)
	writeSource(t, filepath.Join(root, "readme.txt"), "docs")
	writeSource(t, filepath.Join(root, "vendor", "Lib.java"), "package lib;\nclass Lib {}\n")
	writeSource(t, filepath.Join(root, ".hidden", "Secret.java"), "package s;\nclass Secret {}\n")

	e := newTestEngine(t)
	require.NoError(t, e.IndexDirectory(context.Background(), root))

	files, err := e.Store().Files()
	require.NoError(t, err)
	require.Len(t, files, 2)

	require.NoError(t, os.Remove(widget))
	require.NoError(t, e.IndexDirectory(context.Background(), root))
	files, err = e.Store().Files()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(root, "src", "ui", "Gadget.java"), files[0].Path)

	found, err := e.Query().FindScopes("com.acme.Widget")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestHandleEvent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newTestEngine(t)
	dir := t.TempDir()
	widget := writeSource(t, filepath.Join(dir, "Widget.java"), widgetJava)

	require.NoError(t, e.HandleEvent(ctx, Event{Type: monitor.EventAdded, Path: widget}))
	found, err := e.Query().FindScopes("com.acme.Widget")
	require.NoError(t, err)
	require.Len(t, found, 1)

	renamed := filepath.Join(dir, "Renamed.java")
	require.NoError(t, os.Rename(widget, renamed))
	require.NoError(t, e.HandleEvent(ctx, Event{Type: monitor.EventRenamed, Path: renamed, OldPath: widget}))
	found, err = e.Query().FindScopes("com.acme.Widget")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, renamed, found[0].Locations[0].File)

	require.NoError(t, os.Remove(renamed))
	require.NoError(t, e.HandleEvent(ctx, Event{Type: monitor.EventDeleted, Path: renamed}))
	found, err = e.Query().FindScopes("com.acme.Widget")
	require.NoError(t, err)
	assert.Empty(t, found)

	assert.Error(t, e.HandleEvent(ctx, Event{Type: monitor.EventType(42), Path: renamed}))
}

func TestSourceRoot(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	_, err := e.SourceRoot()
	assert.ErrorIs(t, err, ErrNotFound)

	dir, _, _ := indexFixture(t, e)
	root, err := e.SourceRoot()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "com", "acme"), root)
}

func TestWatch_DefaultsToSourceRoot(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	dir, _, _ := indexFixture(t, e)

	cfg := config.Default().Watch
	cfg.Paths = nil
	cfg.Debounce = 50 * time.Millisecond
	cfg.ScanInterval = 0
	cfg.Archive = filepath.Join(t.TempDir(), "archive.yaml")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Watch(ctx, cfg) }()

	writeSource(t, filepath.Join(dir, "com", "acme", "ui", "Panel.java"), "package com.acme.ui;\n\npublic class Panel {}\n")
	require.Eventually(t, func() bool {
		found, err := e.Query().FindScopes("com.acme.ui.Panel")
		return err == nil && len(found) == 1
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_NothingIndexed(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	cfg := config.Default().Watch
	cfg.Archive = filepath.Join(t.TempDir(), "archive.yaml")

	err := e.Watch(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWatch_IndexesChanges(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeSource(t, filepath.Join(dir, "Widget.java"), widgetJava)

	e := newTestEngine(t)
	cfg := config.Default().Watch
	cfg.Paths = []string{dir}
	cfg.Debounce = 50 * time.Millisecond
	cfg.ScanInterval = 0
	cfg.Archive = filepath.Join(t.TempDir(), "archive.yaml")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Watch(ctx, cfg) }()

	hasScope := func(name string) func() bool {
		return func() bool {
			found, err := e.Query().FindScopes(name)
			return err == nil && len(found) == 1
		}
	}
	require.Eventually(t, hasScope("com.acme.Widget"), 3*time.Second, 20*time.Millisecond)

	writeSource(t, filepath.Join(dir, "Gadget.java"), gadgetJava)
	require.Eventually(t, hasScope("com.acme.ui.Gadget"), 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
	_, err := os.Stat(cfg.Archive)
	assert.NoError(t, err)
}

// =============================================================================
// Scripts
// =============================================================================

func TestRunSource_SeesGraph(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	indexFixture(t, e)

	got, err := e.RunSource(context.Background(), `full_name("Widget", "com.acme.ui.Gadget")`, nil)
	require.NoError(t, err)
	assert.Equal(t, "com.acme.Widget", got)

	got, err = e.RunSource(context.Background(), `len(indexed_files("java"))`, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)
}

func TestRunScript_FromFS(t *testing.T) {
	t.Parallel()
	scripts := t.TempDir()
	writeSource(t, filepath.Join(scripts, "count.risor"), `len(children(target))`)

	e := newTestEngine(t, WithScriptsFS(os.DirFS(scripts)))
	indexFixture(t, e)

	got, err := e.RunScript(context.Background(), "count.risor", map[string]any{"target": "com.acme.Widget"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)
}

func TestRunSource_Cancelled(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.RunSource(ctx, `1 + 1`, nil)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.True(t, query.IsCancelled(err))
}

func TestRunSource_CancelAfterStartFinishesScript(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		v   any
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := e.RunSource(ctx, `
total := 0
for i := 0; i < 2000000; i++ {
	total += 1
}
total
`, nil)
		done <- result{v, err}
	}()

	require.Eventually(t, e.repo.Locked, 2*time.Second, time.Millisecond)
	cancel()

	// Cancelling between the lock and the body is reported by the checkpoint;
	// a script that already started is not interrupted.
	r := <-done
	if r.err != nil {
		assert.ErrorIs(t, r.err, ErrCancelled)
		return
	}
	assert.Equal(t, int64(2000000), r.v)
}
