package monitor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Handler receives archive events. A returned error is logged and does not
// stop the monitor; the event is delivered again by the next scan.
type Handler func(ctx context.Context, ev Event) error

// Monitor scans a set of directories into an Archive, both periodically and
// in response to filesystem notifications, and dispatches the resulting
// events to a Handler.
type Monitor struct {
	archive      *Archive
	filter       *Filter
	debounce     time.Duration
	scanInterval time.Duration
	limiter      *rate.Limiter
	logger       *slog.Logger

	mu   sync.RWMutex
	dirs []string

	// batchMu serialises batches so the handler never runs concurrently.
	batchMu sync.Mutex
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithFilter sets the directory and file filter.
func WithFilter(f *Filter) Option {
	return func(m *Monitor) {
		m.filter = f
	}
}

// WithDebounce sets the quiet period the watcher waits for before
// delivering a batch.
func WithDebounce(d time.Duration) Option {
	return func(m *Monitor) {
		m.debounce = d
	}
}

// WithScanInterval sets how often the directories are rescanned. Zero
// disables periodic scans.
func WithScanInterval(d time.Duration) Option {
	return func(m *Monitor) {
		m.scanInterval = d
	}
}

// WithRateLimit caps the number of batches dispatched per second.
// Zero or less removes the cap.
func WithRateLimit(batchesPerSecond float64) Option {
	return func(m *Monitor) {
		if batchesPerSecond <= 0 {
			m.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		m.limiter = rate.NewLimiter(rate.Limit(batchesPerSecond), 1)
	}
}

// WithLogger sets the monitor's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a Monitor over archive.
func New(archive *Archive, opts ...Option) *Monitor {
	m := &Monitor{
		archive:      archive,
		debounce:     200 * time.Millisecond,
		scanInterval: time.Minute,
		limiter:      rate.NewLimiter(rate.Inf, 1),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Archive returns the monitor's archive.
func (m *Monitor) Archive() *Archive { return m.archive }

// AddDirectory starts monitoring dir. Directories already covered by a
// monitored ancestor are not added again.
func (m *Monitor) AddDirectory(dir string) error {
	abs, err := absPath(dir)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("monitor: add directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("monitor: add directory: %s is not a directory", abs)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.dirs {
		if Within(abs, d) {
			return nil
		}
	}
	m.dirs = append(m.dirs, abs)
	return nil
}

// RemoveDirectory stops monitoring dir and deletes its files from the
// archive. Directories that are not monitored are ignored.
func (m *Monitor) RemoveDirectory(ctx context.Context, dir string, handler Handler) error {
	abs, err := absPath(dir)
	if err != nil {
		return err
	}
	m.mu.Lock()
	i := slices.Index(m.dirs, abs)
	if i < 0 {
		m.mu.Unlock()
		return nil
	}
	m.dirs = slices.Delete(m.dirs, i, i+1)
	m.mu.Unlock()

	var events []Event
	for _, f := range m.archive.Files() {
		if !Within(f, abs) || m.IsMonitoringFile(f) {
			continue
		}
		ev, err := m.archive.DeleteFile(f)
		if err != nil {
			return err
		}
		if ev != nil {
			events = append(events, *ev)
		}
	}
	return m.dispatch(ctx, events, handler)
}

// Directories returns the monitored directories.
func (m *Monitor) Directories() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.dirs)
}

// IsMonitoringFile reports whether path lies within a monitored directory.
func (m *Monitor) IsMonitoringFile(path string) bool {
	abs, err := absPath(path)
	if err != nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.dirs {
		if Within(abs, d) {
			return true
		}
	}
	return false
}

// Scan brings the archive up to date with the monitored directories and
// dispatches the events as one batch: new and changed files first, then
// archived files that no longer exist.
func (m *Monitor) Scan(ctx context.Context, handler Handler) error {
	var events []Event
	seen := make(map[string]bool)
	for _, dir := range m.Directories() {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				m.logger.Warn("scan failed", "path", path, "error", err)
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				if path != dir && m.filter.SkipDir(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if !m.filter.Accept(path) {
				return nil
			}
			seen[path] = true
			ev, err := m.archive.AddOrUpdateFile(path)
			if err != nil {
				m.logger.Warn("failed to archive file", "path", path, "error", err)
				return nil
			}
			if ev != nil {
				events = append(events, *ev)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	for _, f := range m.archive.Files() {
		if seen[f] || !m.IsMonitoringFile(f) {
			continue
		}
		if _, err := os.Stat(f); err == nil {
			continue
		}
		if ev, _ := m.archive.DeleteFile(f); ev != nil {
			events = append(events, *ev)
		}
	}
	return m.dispatch(ctx, events, handler)
}

// apply updates the archive for a batch of changed paths from the watcher.
func (m *Monitor) apply(ctx context.Context, paths []string, handler Handler) error {
	slices.Sort(paths)
	var events []Event
	for _, p := range paths {
		var (
			ev  *Event
			err error
		)
		if _, statErr := os.Stat(p); errors.Is(statErr, fs.ErrNotExist) {
			ev, err = m.archive.DeleteFile(p)
		} else {
			ev, err = m.archive.AddOrUpdateFile(p)
		}
		if err != nil {
			m.logger.Warn("failed to archive file", "path", p, "error", err)
			continue
		}
		if ev != nil {
			events = append(events, *ev)
		}
	}
	return m.dispatch(ctx, events, handler)
}

func (m *Monitor) dispatch(ctx context.Context, events []Event, handler Handler) error {
	if len(events) == 0 || handler == nil {
		return nil
	}
	m.batchMu.Lock()
	defer m.batchMu.Unlock()

	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	for _, ev := range events {
		if err := handler(ctx, ev); err != nil {
			m.archive.invalidate(ev)
			m.logger.Warn("event handler failed", "type", ev.Type.String(), "path", ev.Path, "error", err)
		}
	}
	return nil
}

// Run scans once, then watches the monitored directories until ctx is done,
// rescanning every scan interval. The archive is saved on return.
func (m *Monitor) Run(ctx context.Context, handler Handler) error {
	if err := m.Scan(ctx, handler); err != nil {
		return err
	}

	w, err := NewWatcher(m.debounce, m.filter, func(paths []string) {
		if err := m.apply(ctx, paths, handler); err != nil && ctx.Err() == nil {
			m.logger.Warn("failed to apply changes", "paths", len(paths), "error", err)
		}
	}, m.logger)
	if err != nil {
		return fmt.Errorf("monitor: watcher: %w", err)
	}
	defer w.Close()
	if err := w.Watch(m.Directories()); err != nil {
		return fmt.Errorf("monitor: watch: %w", err)
	}
	m.logger.Info("monitoring", "directories", len(m.Directories()), "files", len(m.archive.Files()))

	var tick <-chan time.Time
	if m.scanInterval > 0 {
		ticker := time.NewTicker(m.scanInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			w.Close()
			return m.archive.Save()
		case <-tick:
			if err := m.Scan(ctx, handler); err != nil && ctx.Err() == nil {
				m.logger.Warn("periodic scan failed", "error", err)
			}
		}
	}
}
