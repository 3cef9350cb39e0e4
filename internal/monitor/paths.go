package monitor

import (
	"path/filepath"
	"strings"
)

// Within reports whether path is dir or lies below it. Both must be clean
// and absolute; the comparison is by whole path elements.
func Within(path, dir string) bool {
	if path == dir {
		return true
	}
	if !strings.HasSuffix(dir, string(filepath.Separator)) {
		dir += string(filepath.Separator)
	}
	return strings.HasPrefix(path, dir)
}

// CommonDir returns the deepest directory that is start or one of its
// parents and contains every path. It reports false when no such directory
// exists, as with paths on different volumes.
func CommonDir(start string, paths []string) (string, bool) {
	dir := filepath.Clean(start)
	for {
		if allWithin(paths, dir) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func allWithin(paths []string, dir string) bool {
	for _, p := range paths {
		if !Within(filepath.Clean(p), dir) {
			return false
		}
	}
	return true
}
