package monitor

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Filter decides which directories and files are watched and scanned.
// Exclude patterns are gobwas globs matched against the base name.
type Filter struct {
	skipDirs  []glob.Glob
	skipFiles []glob.Glob
	accept    func(path string) bool
}

// NewFilter compiles the exclude patterns. accept, when non-nil, must also
// approve a file for it to pass.
func NewFilter(excludeDirs, excludeFiles []string, accept func(path string) bool) (*Filter, error) {
	f := &Filter{accept: accept}
	var err error
	if f.skipDirs, err = compileGlobs(excludeDirs); err != nil {
		return nil, err
	}
	if f.skipFiles, err = compileGlobs(excludeFiles); err != nil {
		return nil, err
	}
	return f, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	var out []glob.Glob
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("monitor: pattern %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func matchBase(globs []glob.Glob, path string) bool {
	base := filepath.Base(path)
	for _, g := range globs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

// SkipDir reports whether a directory is excluded.
func (f *Filter) SkipDir(path string) bool {
	return f != nil && matchBase(f.skipDirs, path)
}

// Accept reports whether a file passes the filter.
func (f *Filter) Accept(path string) bool {
	if f == nil {
		return true
	}
	return !matchBase(f.skipFiles, path) && (f.accept == nil || f.accept(path))
}
