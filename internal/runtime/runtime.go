package runtime

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/scopegraph/scope"
	"github.com/jward/scopegraph/internal/store"
)

// ScriptExt is the extension of query scripts and their importable modules.
const ScriptExt = ".risor"

// ErrNoGraph is returned when a script is run without a global scope.
var ErrNoGraph = errors.New("runtime: no scope graph")

// Runtime evaluates Risor query scripts against a scope graph. Scripts see
// the graph through host functions bound to the global scope of each run.
type Runtime struct {
	store   *store.Store
	scripts fs.FS // nil reads script paths straight from disk
	logger  *slog.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithFS loads scripts and their imports from fsys.
func WithFS(fsys fs.FS) Option {
	return func(r *Runtime) {
		r.scripts = fsys
	}
}

// WithScriptsDir loads scripts and their imports from dir. It replaces any
// earlier WithFS.
func WithScriptsDir(dir string) Option {
	return func(r *Runtime) {
		r.scripts = os.DirFS(dir)
	}
}

// WithStore exposes the index to scripts as db_query and indexed_files.
func WithStore(s *store.Store) Option {
	return func(r *Runtime) {
		r.store = s
	}
}

// WithLogger sets the logger behind the log module.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Runtime.
func New(opts ...Option) *Runtime {
	r := &Runtime{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript loads and evaluates a script against root. The value of the
// script's last expression is returned as a Go value.
func (r *Runtime) RunScript(ctx context.Context, root *scope.Scope, scriptPath string, extraGlobals map[string]any) (any, error) {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return nil, err
	}
	return r.eval(ctx, root, src, scriptPath, extraGlobals)
}

// RunSource evaluates Risor source code against root.
func (r *Runtime) RunSource(ctx context.Context, root *scope.Scope, source string, extraGlobals map[string]any) (any, error) {
	return r.eval(ctx, root, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, root *scope.Scope, source, label string, extraGlobals map[string]any) (any, error) {
	if root == nil {
		return nil, ErrNoGraph
	}
	globals := r.buildGlobals(root, label, extraGlobals)

	opts := make([]risor.Option, 0, len(globals)+1)
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	result, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return toGo(result), nil
}

// toGo converts a script result into plain Go values. Nil and Risor's nil
// both become nil.
func toGo(obj object.Object) any {
	if obj == nil || obj == object.Nil {
		return nil
	}
	return obj.Interface()
}

// buildImporter lets scripts import modules from the script source. Scripts
// run without one can only import Risor's built-in modules.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	if r.scripts == nil {
		return nil
	}
	return importer.NewFSImporter(importer.FSImporterOptions{
		GlobalNames: slices.Collect(maps.Keys(globals)),
		SourceFS:    r.scripts,
		Extensions:  []string{ScriptExt},
	})
}

// LoadScript reads a script. Paths are relative to the root of the script
// source; a leading slash is ignored. Without a script source the path is
// read from disk as given.
func (r *Runtime) LoadScript(name string) (string, error) {
	if r.scripts == nil {
		data, err := os.ReadFile(name)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script: %w", err)
		}
		return string(data), nil
	}

	name = path.Clean(strings.TrimPrefix(filepath.ToSlash(name), "/"))
	data, err := fs.ReadFile(r.scripts, name)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", name, err)
	}
	return string(data), nil
}

// buildGlobals constructs the globals of one run. Caller supplied globals
// win over the built-in ones.
func (r *Runtime) buildGlobals(root *scope.Scope, label string, extra map[string]any) map[string]any {
	g := &graph{root: root}
	globals := map[string]any{
		"find_scope": g.findScopeFn(),
		"find_type":  g.findTypeFn(),
		"children":   g.childrenFn(),
		"variables":  g.variablesFn(),
		"full_name":  g.fullNameFn(),
		"log":        newLogModule(r.logger.With("script", label)),
	}
	if r.store != nil {
		globals["db_query"] = makeDBQueryFn(r.store)
		globals["indexed_files"] = makeFilesFn(r.store)
	}
	for k, v := range extra {
		globals[k] = v
	}
	return globals
}
