package scopegraph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jward/scopegraph/internal/monitor"
	"github.com/jward/scopegraph/internal/observability"
	"github.com/jward/scopegraph/internal/parse"
	"github.com/jward/scopegraph/query"
	"github.com/jward/scopegraph/internal/repository"
	"github.com/jward/scopegraph/internal/runtime"
	"github.com/jward/scopegraph/scope"
	"github.com/jward/scopegraph/internal/store"
)

// Engine keeps a scope graph in step with a set of source files: it parses
// files into scope trees, persists them to SQLite, merges them into the
// in-memory graph and runs queries and scripts against it.
type Engine struct {
	store   *store.Store
	repo    *repository.Repository
	runtime *runtime.Runtime
	logger  *slog.Logger

	languages   map[string]bool // nil means all languages
	parallel    bool
	workers     int
	lockTimeout time.Duration
	scheduler   query.Scheduler
	scriptsDir  string
	scriptsFS   fs.FS

	// indexMu serialises Load, IndexFiles and RemoveFile so the store and
	// the graph change together.
	indexMu     sync.Mutex
	parseErrors map[string]*parse.ParseError
}

// Option configures an Engine.
type Option func(*Engine)

// WithLanguages restricts which languages the Engine will process.
func WithLanguages(languages ...string) Option {
	return func(e *Engine) {
		e.languages = make(map[string]bool, len(languages))
		for _, lang := range languages {
			e.languages[lang] = true
		}
	}
}

// WithParallel controls parallel parsing. When true (default), IndexFiles
// parses on a bounded worker pool and commits the results from a single
// goroutine. Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.parallel = parallel
	}
}

// WithWorkers bounds the number of files parsed at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLockTimeout sets how long queries wait for the global scope lock.
// query.WaitForever, the default, waits without bound.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.lockTimeout = d
	}
}

// WithAsyncWorkers runs asynchronous queries on a pool of n workers instead
// of one goroutine per query.
func WithAsyncWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.scheduler = query.NewPool(n)
		}
	}
}

// WithScriptsDir sets the directory relative script paths are read from.
func WithScriptsDir(dir string) Option {
	return func(e *Engine) {
		e.scriptsDir = dir
	}
}

// WithScriptsFS configures the Engine to load Risor scripts from the given
// filesystem instead of from disk. This enables embedding scripts via
// go:embed.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scriptsFS = fsys
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine backed by a SQLite database at dbPath. The graph
// starts empty; call Load to bring in what earlier runs stored.
func New(dbPath string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("scopegraph: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("scopegraph: migrate: %w", err)
	}

	e := &Engine{
		store:       s,
		logger:      slog.Default(),
		parallel:    true,
		workers:     4,
		lockTimeout: query.WaitForever,
		scheduler:   query.GoScheduler{},
		parseErrors: make(map[string]*parse.ParseError),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.repo = repository.New(repository.WithLogger(e.logger))

	rtOpts := []runtime.Option{runtime.WithStore(s), runtime.WithLogger(e.logger)}
	if e.scriptsFS != nil {
		rtOpts = append(rtOpts, runtime.WithFS(e.scriptsFS))
	}
	if e.scriptsDir != "" {
		rtOpts = append(rtOpts, runtime.WithScriptsDir(e.scriptsDir))
	}
	e.runtime = runtime.New(rtOpts...)
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Query returns a QueryBuilder over the graph.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{engine: e}
}

// ParseErrors returns the syntax errors of the files indexed so far, keyed
// by path. Files with errors are still indexed with what could be
// recovered.
func (e *Engine) ParseErrors() map[string]*ParseError {
	e.indexMu.Lock()
	defer e.indexMu.Unlock()
	return maps.Clone(e.parseErrors)
}

func (e *Engine) queryOptions(name string) []query.Option {
	return []query.Option{
		query.WithName(name),
		query.WithLockTimeout(e.lockTimeout),
		query.WithScheduler(e.scheduler),
		query.WithLogger(e.logger),
	}
}

// mutate runs fn against the global scope under the repository lock. Writers
// wait without a timeout so an index update is never dropped.
func (e *Engine) mutate(name string, fn func(root *scope.Scope)) error {
	q := query.New0(e.repo, func(root *scope.Scope) (struct{}, error) {
		fn(root)
		recordGraphSize(root)
		return struct{}{}, nil
	}, query.WithName(name), query.WithLogger(e.logger))
	_, err := q.Execute()
	return err
}

func recordGraphSize(root *scope.Scope) {
	n := -1
	for range root.All() {
		n++
	}
	observability.GraphScopes.Set(float64(n))
	observability.IndexedFiles.Set(float64(len(root.Files())))
}

// Load merges every unit stored in the database into the graph, replacing
// whatever the graph held for the same files.
func (e *Engine) Load(ctx context.Context) error {
	e.indexMu.Lock()
	defer e.indexMu.Unlock()

	start := time.Now()
	units, err := e.store.LoadAll()
	if err != nil {
		return fmt.Errorf("scopegraph: load: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err = e.mutate("load", func(root *scope.Scope) {
		for _, u := range units {
			root.RemoveFile(u.Path)
			root.Merge(u.Root)
		}
	})
	if err != nil {
		return fmt.Errorf("scopegraph: load: %w", err)
	}
	e.logger.Info("loaded scope graph", "files", len(units), "duration", time.Since(start))
	return nil
}

// IndexFiles indexes the given file paths.
//
// For each file:
//  1. Detect language from extension
//  2. Skip unsupported or filtered-out languages
//  3. Skip unchanged files (same content hash as stored)
//  4. Parse into a scope tree, in parallel unless WithParallel(false)
//  5. Save the tree, replacing the file's previous data
//  6. Replace the file's part of the graph
//
// Syntax errors do not stop a file from being indexed; see ParseErrors.
// Other errors on individual files are collected and processing continues.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) error {
	e.indexMu.Lock()
	defer e.indexMu.Unlock()

	var errs []error
	var jobs []*parseJob
	for _, path := range paths {
		job, skip, err := e.prepareFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("index %s: %w", path, err))
			continue
		}
		if !skip {
			jobs = append(jobs, job)
		}
	}

	if len(jobs) > 0 {
		var err error
		if e.parallel {
			err = e.parseParallel(ctx, jobs)
		} else {
			err = e.parseSerial(ctx, jobs)
		}
		if err != nil {
			return fmt.Errorf("scopegraph: index: %w", err)
		}
		errs = append(errs, e.commit(jobs)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// prepareFile reads path and decides whether it needs parsing.
// Returns (job, skip, error). skip=true means the file is unchanged or
// unsupported.
func (e *Engine) prepareFile(path string) (*parseJob, bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false, err
	}
	lang, ok := parse.LanguageForFile(abs)
	if !ok {
		return nil, true, nil
	}
	if e.languages != nil && !e.languages[lang] {
		return nil, true, nil
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, false, fmt.Errorf("read file: %w", err)
	}
	f, err := store.NewFile(abs, lang, content)
	if err != nil {
		return nil, false, err
	}

	existing, err := e.store.FileByPath(abs)
	if err != nil {
		return nil, false, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == f.Hash {
		return nil, true, nil
	}
	return &parseJob{file: f, content: content}, false, nil
}

// commit saves the parsed jobs one by one and then swaps them into the graph
// under a single lock hold.
func (e *Engine) commit(jobs []*parseJob) []error {
	var errs []error
	var saved []*parseJob
	for _, job := range jobs {
		path := job.file.Path
		if job.err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", path, job.err))
			continue
		}
		if err := e.store.SaveUnit(job.file, job.unit); err != nil {
			errs = append(errs, fmt.Errorf("save %s: %w", path, err))
			continue
		}
		if job.syntax != nil {
			e.parseErrors[path] = job.syntax
			e.logger.Warn("indexed file with syntax errors", "path", path, "error", job.syntax)
		} else {
			delete(e.parseErrors, path)
		}
		saved = append(saved, job)
	}
	if len(saved) == 0 {
		return errs
	}

	err := e.mutate("index", func(root *scope.Scope) {
		for _, job := range saved {
			root.RemoveFile(job.file.Path)
			root.Merge(job.unit.Root)
		}
	})
	if err != nil {
		errs = append(errs, err)
	}
	e.logger.Debug("indexed files", "files", len(saved))
	return errs
}

// RemoveFile drops path from the database and the graph. Removing a file
// that was never indexed is not an error.
func (e *Engine) RemoveFile(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e.indexMu.Lock()
	defer e.indexMu.Unlock()
	return e.removeLocked([]string{abs})
}

func (e *Engine) removeLocked(paths []string) error {
	for _, p := range paths {
		if _, err := e.store.DeleteFile(p); err != nil {
			return fmt.Errorf("scopegraph: remove %s: %w", p, err)
		}
		delete(e.parseErrors, p)
	}
	return e.mutate("remove", func(root *scope.Scope) {
		for _, p := range paths {
			root.RemoveFile(p)
		}
	})
}

// skipDirs are excluded from directory walks.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"bin":          true,
	"obj":          true,
}

// IndexDirectory indexes every supported file under root and removes files
// the database holds under root that are no longer listed, whether deleted
// or newly ignored. If root is inside a
// git repository, uses git ls-files to respect .gitignore. Falls back to a
// filesystem walk (skipping hidden dirs, node_modules, vendor, bin and obj)
// if git is unavailable.
func (e *Engine) IndexDirectory(ctx context.Context, root string) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	paths, err := e.gitListFiles(ctx, root)
	if err != nil {
		e.logger.Debug("git ls-files unavailable, walking directory", "root", root, "error", err)
		paths, err = e.walkListFiles(root)
		if err != nil {
			return err
		}
	}

	indexErr := e.IndexFiles(ctx, paths)
	if ctx.Err() != nil {
		return indexErr
	}
	if err := e.pruneMissing(root, paths); err != nil {
		return errors.Join(indexErr, err)
	}
	return indexErr
}

// pruneMissing removes stored files under root that are not in present.
func (e *Engine) pruneMissing(root string, present []string) error {
	keep := make(map[string]bool, len(present))
	for _, p := range present {
		keep[p] = true
	}

	e.indexMu.Lock()
	defer e.indexMu.Unlock()
	files, err := e.store.Files()
	if err != nil {
		return fmt.Errorf("scopegraph: list files: %w", err)
	}
	var stale []string
	for _, f := range files {
		if !keep[f.Path] && monitor.Within(f.Path, root) {
			stale = append(stale, f.Path)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	e.logger.Info("removing deleted files", "files", len(stale))
	return e.removeLocked(stale)
}

// SourceRoot returns the deepest directory holding every indexed file. It
// returns ErrNotFound when nothing is indexed.
func (e *Engine) SourceRoot() (string, error) {
	files, err := e.store.Files()
	if err != nil {
		return "", fmt.Errorf("scopegraph: list files: %w", err)
	}
	if len(files) == 0 {
		return "", fmt.Errorf("%w: no indexed files", ErrNotFound)
	}
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	root, ok := monitor.CommonDir(filepath.Dir(paths[0]), paths)
	if !ok {
		return "", fmt.Errorf("scopegraph: indexed files share no directory")
	}
	return root, nil
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) files under root, filtered to supported languages.
func (e *Engine) gitListFiles(ctx context.Context, root string) ([]string, error) {
	// --cached: tracked files, --others: untracked files,
	// --exclude-standard: respect .gitignore, .git/info/exclude, global excludes.
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		absPath := filepath.Join(root, line)
		if _, ok := parse.LanguageForFile(absPath); ok {
			paths = append(paths, absPath)
		}
	}
	return paths, nil
}

// walkListFiles discovers files by walking the filesystem, used as a fallback
// when git is not available.
func (e *Engine) walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := parse.LanguageForFile(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

// RunScript runs a Risor script as a query body: the script sees the graph
// through its host functions while the Engine holds the global scope lock.
// The script's last value is returned as a Go value. ctx is checked before
// and after the lock is taken; once the script starts it runs to the end.
func (e *Engine) RunScript(ctx context.Context, scriptPath string, extras map[string]any) (any, error) {
	body := context.WithoutCancel(ctx)
	q := query.New2(e.repo, func(root *scope.Scope, path string, extras map[string]any) (any, error) {
		return e.runtime.RunScript(body, root, path, extras)
	}, e.queryOptions("script")...)
	return q.ExecuteAsync(ctx, scriptPath, extras).Wait()
}

// RunSource is RunScript for inline source.
func (e *Engine) RunSource(ctx context.Context, source string, extras map[string]any) (any, error) {
	body := context.WithoutCancel(ctx)
	q := query.New2(e.repo, func(root *scope.Scope, source string, extras map[string]any) (any, error) {
		return e.runtime.RunSource(body, root, source, extras)
	}, e.queryOptions("script")...)
	return q.ExecuteAsync(ctx, source, extras).Wait()
}
