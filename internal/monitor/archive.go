// Package monitor keeps the scope graph in step with source files on disk.
//
// An Archive records the last-modified time and content hash of every file
// it has seen and reports additions, changes, deletions and renames as
// Events. A Monitor feeds an Archive from periodic directory scans and
// filesystem notifications and hands the resulting events to a handler.
package monitor

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jward/scopegraph/internal/observability"
	"github.com/jward/scopegraph/internal/store"
)

// EventType classifies an archive event.
type EventType int

const (
	EventAdded EventType = iota
	EventChanged
	EventDeleted
	EventRenamed
)

func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventChanged:
		return "changed"
	case EventDeleted:
		return "deleted"
	case EventRenamed:
		return "renamed"
	}
	return fmt.Sprintf("event(%d)", int(t))
}

// Event reports a change to an archived file. Paths are absolute. OldPath is
// only set for renames.
type Event struct {
	Type    EventType
	Path    string
	OldPath string
}

type entry struct {
	ModTime time.Time `yaml:"mod_time"`
	Hash    string    `yaml:"hash"`
}

type archiveFile struct {
	Version int              `yaml:"version"`
	Files   map[string]entry `yaml:"files"`
}

const archiveVersion = 1

// Archive tracks the files the index was built from. It is safe for
// concurrent use.
type Archive struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	files    map[string]entry
	handlers []func(Event)
}

// ArchiveOption configures an Archive.
type ArchiveOption func(*Archive)

// WithArchiveLogger sets the archive's logger.
func WithArchiveLogger(l *slog.Logger) ArchiveOption {
	return func(a *Archive) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewArchive returns an empty archive persisted at path by Save and Load.
// An empty path keeps the archive in memory only.
func NewArchive(path string, opts ...ArchiveOption) *Archive {
	a := &Archive{
		path:   path,
		logger: slog.Default(),
		files:  make(map[string]entry),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Subscribe registers fn to be called, synchronously, for every event.
func (a *Archive) Subscribe(fn func(Event)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers = append(a.handlers, fn)
}

func (a *Archive) emit(ev Event) {
	observability.ArchiveEventsTotal.WithLabelValues(ev.Type.String()).Inc()
	a.mu.RLock()
	handlers := slices.Clone(a.handlers)
	a.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}

// absPath normalizes a path so relative and absolute spellings of the same
// file share an entry.
func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("monitor: %s: %w", path, err)
	}
	return filepath.Clean(abs), nil
}

func snapshot(path string) (entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return entry{}, err
	}
	if info.IsDir() {
		return entry{}, fmt.Errorf("monitor: %s is a directory", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return entry{}, err
	}
	hash, err := store.HashContent(content)
	if err != nil {
		return entry{}, err
	}
	return entry{ModTime: info.ModTime().UTC(), Hash: hash}, nil
}

// AddOrUpdateFile records the current state of path. It returns the Added or
// Changed event it emitted, or nil when the file is unchanged. A file whose
// modification time moved but whose content did not is updated silently.
func (a *Archive) AddOrUpdateFile(path string) (*Event, error) {
	abs, err := absPath(path)
	if err != nil {
		return nil, err
	}
	cur, err := snapshot(abs)
	if err != nil {
		return nil, fmt.Errorf("monitor: add %s: %w", abs, err)
	}

	a.mu.Lock()
	prev, known := a.files[abs]
	a.files[abs] = cur
	a.mu.Unlock()

	var ev *Event
	switch {
	case !known:
		ev = &Event{Type: EventAdded, Path: abs}
	case prev.Hash != cur.Hash:
		ev = &Event{Type: EventChanged, Path: abs}
	default:
		return nil, nil
	}
	a.emit(*ev)
	return ev, nil
}

// DeleteFile forgets path. It returns the Deleted event, or nil when the
// file was not archived.
func (a *Archive) DeleteFile(path string) (*Event, error) {
	abs, err := absPath(path)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	_, known := a.files[abs]
	delete(a.files, abs)
	a.mu.Unlock()

	if !known {
		return nil, nil
	}
	ev := &Event{Type: EventDeleted, Path: abs}
	a.emit(*ev)
	return ev, nil
}

// RenameFile moves the entry for oldPath to newPath, which must exist.
func (a *Archive) RenameFile(oldPath, newPath string) (*Event, error) {
	oldAbs, err := absPath(oldPath)
	if err != nil {
		return nil, err
	}
	newAbs, err := absPath(newPath)
	if err != nil {
		return nil, err
	}
	cur, err := snapshot(newAbs)
	if err != nil {
		return nil, fmt.Errorf("monitor: rename %s: %w", newAbs, err)
	}

	a.mu.Lock()
	delete(a.files, oldAbs)
	a.files[newAbs] = cur
	a.mu.Unlock()

	ev := &Event{Type: EventRenamed, Path: newAbs, OldPath: oldAbs}
	a.emit(*ev)
	return ev, nil
}

// invalidate undoes what ev recorded, so the next scan reports the change
// again. A deleted path gets back an empty entry, which a scan sees as gone
// or changed.
func (a *Archive) invalidate(ev Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch ev.Type {
	case EventAdded, EventChanged:
		delete(a.files, ev.Path)
	case EventDeleted:
		a.files[ev.Path] = entry{}
	case EventRenamed:
		delete(a.files, ev.Path)
		if ev.OldPath != "" {
			a.files[ev.OldPath] = entry{}
		}
	}
}

// ContainsFile reports whether path is archived.
func (a *Archive) ContainsFile(path string) bool {
	abs, err := absPath(path)
	if err != nil {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.files[abs]
	return ok
}

// IsOutdated reports whether the archive disagrees with the file system
// about path: an archived file that is gone or was modified since, or an
// existing file that is not archived.
func (a *Archive) IsOutdated(path string) bool {
	abs, err := absPath(path)
	if err != nil {
		return false
	}
	a.mu.RLock()
	prev, known := a.files[abs]
	a.mu.RUnlock()

	info, err := os.Stat(abs)
	exists := err == nil && !info.IsDir()
	switch {
	case !known:
		return exists
	case !exists:
		return true
	default:
		return !info.ModTime().UTC().Equal(prev.ModTime)
	}
}

// LastModified returns the modification time recorded for path.
func (a *Archive) LastModified(path string) (time.Time, bool) {
	abs, err := absPath(path)
	if err != nil {
		return time.Time{}, false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.files[abs]
	return e.ModTime, ok
}

// Files returns the archived paths in sorted order.
func (a *Archive) Files() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.files))
	for p := range a.files {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Save writes the archive to its file. The write goes through a temporary
// file so a crash never leaves a truncated archive behind.
func (a *Archive) Save() error {
	if a.path == "" {
		return nil
	}
	a.mu.RLock()
	data, err := yaml.Marshal(archiveFile{Version: archiveVersion, Files: a.files})
	a.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("monitor: encode archive: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return fmt.Errorf("monitor: save archive: %w", err)
	}
	tmp := a.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("monitor: save archive: %w", err)
	}
	if err := os.Rename(tmp, a.path); err != nil {
		return fmt.Errorf("monitor: save archive: %w", err)
	}
	a.logger.Debug("archive saved", "path", a.path, "bytes", len(data))
	return nil
}

// Load replaces the archive's contents with those saved in its file. A
// missing file leaves the archive empty.
func (a *Archive) Load() error {
	if a.path == "" {
		return nil
	}
	data, err := os.ReadFile(a.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("monitor: load archive: %w", err)
	}

	var af archiveFile
	if err := yaml.Unmarshal(data, &af); err != nil {
		return fmt.Errorf("monitor: decode archive %s: %w", a.path, err)
	}
	if af.Version != archiveVersion {
		return fmt.Errorf("monitor: archive %s: unsupported version %d", a.path, af.Version)
	}
	if af.Files == nil {
		af.Files = make(map[string]entry)
	}

	a.mu.Lock()
	a.files = af.Files
	a.mu.Unlock()
	return nil
}
