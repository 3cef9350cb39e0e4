package scopegraph

import (
	"context"
	"fmt"

	"github.com/jward/scopegraph/internal/config"
	"github.com/jward/scopegraph/internal/monitor"
	"github.com/jward/scopegraph/internal/parse"
)

// HandleEvent applies one file change reported by a monitor.
func (e *Engine) HandleEvent(ctx context.Context, ev Event) error {
	switch ev.Type {
	case monitor.EventAdded, monitor.EventChanged:
		return e.IndexFiles(ctx, []string{ev.Path})
	case monitor.EventDeleted:
		return e.RemoveFile(ctx, ev.Path)
	case monitor.EventRenamed:
		if err := e.RemoveFile(ctx, ev.OldPath); err != nil {
			return err
		}
		return e.IndexFiles(ctx, []string{ev.Path})
	default:
		return fmt.Errorf("scopegraph: unknown event %s for %s", ev.Type, ev.Path)
	}
}

// accepts reports whether path is a file the Engine indexes.
func (e *Engine) accepts(path string) bool {
	lang, ok := parse.LanguageForFile(path)
	return ok && (e.languages == nil || e.languages[lang])
}

// Watch keeps the graph up to date with the directories in cfg.Paths, or
// SourceRoot when there are none, until ctx is done. Changes are detected
// from file notifications and periodic rescans, and recorded in the archive
// at cfg.Archive so a later run only reindexes what changed in between.
// Watch returns nil on cancellation once the archive is saved.
func (e *Engine) Watch(ctx context.Context, cfg config.Watch) error {
	filter, err := monitor.NewFilter(cfg.ExcludeDirs, cfg.ExcludeFiles, e.accepts)
	if err != nil {
		return fmt.Errorf("scopegraph: watch: %w", err)
	}
	archive := monitor.NewArchive(cfg.Archive, monitor.WithArchiveLogger(e.logger))
	if err := archive.Load(); err != nil {
		return fmt.Errorf("scopegraph: watch: %w", err)
	}

	m := monitor.New(archive,
		monitor.WithFilter(filter),
		monitor.WithDebounce(cfg.Debounce),
		monitor.WithScanInterval(cfg.ScanInterval),
		monitor.WithRateLimit(cfg.MaxBatchesPerSecond),
		monitor.WithLogger(e.logger),
	)
	dirs := cfg.Paths
	if len(dirs) == 0 {
		root, err := e.SourceRoot()
		if err != nil {
			return fmt.Errorf("scopegraph: watch: %w", err)
		}
		dirs = []string{root}
	}
	for _, dir := range dirs {
		if err := m.AddDirectory(dir); err != nil {
			return fmt.Errorf("scopegraph: watch: %w", err)
		}
	}
	return m.Run(ctx, e.HandleEvent)
}
