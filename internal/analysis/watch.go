package analysis

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a rule overlay when its file changes on disk, so a
// running service can pick up catalog tuning without a restart. The
// previous ruleset stays active if a reload fails.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	onReload func(*Ruleset)
	logger   *zap.Logger
	done     chan struct{}
}

// NewWatcher watches the overlay at path and calls onReload with each
// successfully loaded ruleset. Watching the parent directory survives
// the rename-and-replace write pattern editors and atomic writers use.
func NewWatcher(path string, logger *zap.Logger, onReload func(*Ruleset)) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fs watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		path:     path,
		fsw:      fsw,
		onReload: onReload,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			rs, err := LoadRuleset(w.path)
			if err != nil {
				w.logger.Warn("rule overlay reload failed, keeping previous ruleset",
					zap.String("path", w.path), zap.Error(err))
				continue
			}
			w.logger.Info("rule overlay reloaded",
				zap.String("path", w.path), zap.Int("rules", len(rs.rules)))
			w.onReload(rs)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fs watcher error", zap.Error(err))
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}
