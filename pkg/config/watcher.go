package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/platinummonkey/adminkit/pkg/observability"
)

// Watcher re-reads the YAML file when it changes and applies the settings
// that can change at runtime. Only the log level is hot-reloaded; other
// changes need a restart.
type Watcher struct {
	path    string
	logger  *observability.Logger
	watcher *fsnotify.Watcher
	onLevel func(observability.LogLevel)
}

// NewWatcher watches the directory of path so that editors that replace
// the file atomically are noticed.
func NewWatcher(path string, logger *observability.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	return &Watcher{
		path:    path,
		logger:  logger,
		watcher: fw,
		onLevel: logger.SetLevel,
	}, nil
}

// Run processes file events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	cfg := Default()
	if err := cfg.overlayFile(w.path); err != nil {
		w.logger.WithError(err).Warn("config reload failed, keeping current settings")
		return
	}
	cfg.applyEnv()

	level := cfg.Observability.Level()
	w.onLevel(level)
	w.logger.WithField("log_level", level.String()).Info("configuration reloaded")
}
