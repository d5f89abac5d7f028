package reconcile

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"stemlab/logger"
)

// Watcher picks up sample and loop files dropped into the artifact
// directories while the server is running (by hand, by rsync, by another
// process) and upserts them without waiting for the next restart.
type Watcher struct {
	engine  *Engine
	watcher *fsnotify.Watcher
}

// NewWatcher starts watching the sample and loop directories.
func NewWatcher(engine *Engine) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{engine.sampleDir, engine.loopDir} {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return &Watcher{engine: engine, watcher: fsw}, nil
}

// Run processes events until the context is cancelled or the watcher closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.handle(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("artifact watcher error", logger.ErrorField(err))
		}
	}
}

func (w *Watcher) handle(path string) {
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		return
	}
	name := filepath.Base(path)
	dir := filepath.Dir(path)

	var (
		added bool
		err   error
	)
	switch dir {
	case w.engine.loopDir:
		added, err = w.engine.UpsertLoopFile(name)
	case w.engine.sampleDir:
		added, err = w.engine.UpsertSampleFile(name)
	default:
		return
	}
	if err != nil {
		logger.Warn("watcher failed to register artifact",
			logger.String("file", name), logger.ErrorField(err))
		return
	}
	if added {
		logger.Info("registered artifact from watcher", logger.String("file", name))
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
