package monitor

import (
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jward/scopegraph/internal/observability"
)

const watchedOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

// Watcher turns fsnotify events under a set of directory trees into
// debounced, sorted batches of file paths. Directories created while
// watching are added, and the files already in them are reported.
//
// Pending paths are dropped on Close; the archive picks them up on the next
// scan.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	filter   *Filter
	logger   *slog.Logger
	onChange func([]string)

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewWatcher starts an event loop that calls onChange on its own goroutine
// with the paths changed during each quiet period of length debounce.
// Nothing is watched until Watch is called.
func NewWatcher(debounce time.Duration, filter *Filter, onChange func([]string), logger *slog.Logger) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:      fsw,
		debounce: debounce,
		filter:   filter,
		logger:   logger,
		onChange: onChange,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Watch adds every directory under roots that the filter keeps.
func (w *Watcher) Watch(roots []string) error {
	for _, root := range roots {
		if _, err := w.addTree(root); err != nil {
			return err
		}
	}
	return nil
}

// addTree watches root and the directories below it, returning the accepted
// files it passed on the way.
func (w *Watcher) addTree(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case !d.IsDir():
			if w.filter.Accept(path) {
				files = append(files, path)
			}
			return nil
		case path != root && w.filter.SkipDir(path):
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
	return files, err
}

func (w *Watcher) loop() {
	defer close(w.done)

	pending := make(map[string]struct{})
	quiet := time.NewTimer(w.debounce)
	quiet.Stop()
	defer quiet.Stop()

	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()
			paths := w.changed(ev)
			for _, p := range paths {
				pending[p] = struct{}{}
			}
			if len(paths) > 0 {
				quiet.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		case <-quiet.C:
			if len(pending) == 0 {
				continue
			}
			batch := slices.Sorted(maps.Keys(pending))
			clear(pending)
			w.onChange(batch)
		}
	}
}

// changed maps one event to the file paths it makes pending.
func (w *Watcher) changed(ev fsnotify.Event) []string {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if w.filter.SkipDir(ev.Name) {
				return nil
			}
			files, err := w.addTree(ev.Name)
			if err != nil {
				w.logger.Warn("failed to watch new directory", "path", ev.Name, "error", err)
			}
			return files
		}
	}
	if ev.Op&watchedOps == 0 || !w.filter.Accept(ev.Name) {
		return nil
	}
	return []string{ev.Name}
}

// Close stops the watcher and waits for the event loop to exit, so a batch
// already being delivered completes first.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stop)
		err = w.fsw.Close()
		<-w.done
	})
	return err
}
