package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ternarybob/arbor"
)

const defaultDebounce = 500 * time.Millisecond

// configWatcher calls onChange once per burst of writes to any watched config file.
// Parent directories are watched so editors that save by rename are still seen.
type configWatcher struct {
	fsw      *fsnotify.Watcher
	files    map[string]struct{}
	debounce time.Duration
	onChange func()
	logger   arbor.ILogger
}

func newConfigWatcher(paths []string, debounce time.Duration, onChange func(), logger arbor.ILogger) (*configWatcher, error) {
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	files := make(map[string]struct{}, len(paths))
	dirs := make(map[string]struct{})
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("resolve %s: %w", path, err)
		}
		files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	return &configWatcher{
		fsw:      fsw,
		files:    files,
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
	}, nil
}

// Run blocks until ctx is cancelled. The watcher is closed on return.
func (w *configWatcher) Run(ctx context.Context) error {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		w.fsw.Close()
	}()

	fire := func() {
		if ctx.Err() == nil {
			w.onChange()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watch: event channel closed")
			}
			if !w.relevant(evt) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: error channel closed")
			}
			w.logger.Warn().Err(err).Msg("Config watcher error")
		}
	}
}

func (w *configWatcher) relevant(evt fsnotify.Event) bool {
	if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
		return false
	}
	_, ok := w.files[filepath.Clean(evt.Name)]
	return ok
}
