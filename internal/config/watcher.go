package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Store's config whenever its backing file changes on disk.
type Watcher struct {
	store  *Store
	path   string
	fsw    *fsnotify.Watcher
	logger func(format string, args ...any)
	done   chan struct{}
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithReloadLogger routes reload notices and errors through logf instead of
// discarding them.
func WithReloadLogger(logf func(format string, args ...any)) WatchOption {
	return func(w *Watcher) { w.logger = logf }
}

// NewWatcher starts watching store's backing file for writes, reloading the
// store on each one. Call Close to stop watching.
func NewWatcher(store *Store, path string, opts ...WatchOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch config %s: %w", path, err)
	}

	w := &Watcher{
		store:  store,
		path:   path,
		fsw:    fsw,
		logger: func(string, ...any) {},
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			f, err := Load(w.path)
			if err != nil {
				w.logger("config reload failed for %s: %v", w.path, err)
				continue
			}
			w.store.set(f)
			w.logger("config reloaded from %s", w.path)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger("config watcher error: %v", err)
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}
