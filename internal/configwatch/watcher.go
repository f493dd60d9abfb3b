// Package configwatch watches the on-disk config file for changes and
// notifies a callback after a short debounce, so the daemon can pick up
// edits made with an external editor (or `mcpbridge` itself) without
// requiring a restart.
package configwatch

import (
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mcpbridge/mcpbridge/internal/log"
)

// DefaultDebounce absorbs the burst of Write/Create/Rename events most
// editors produce for a single logical save (write-to-temp-then-rename,
// multiple writes for an atomic save, etc).
const DefaultDebounce = 300 * time.Millisecond

// Watcher watches a single file path and calls onChange, debounced, after
// it is written, created, or renamed into place. fsnotify.Watcher only
// tracks one underlying inode across a rename, so Watcher re-adds the
// watch on every event to survive editors that replace the file instead
// of writing into it.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	path      string
	debounce  time.Duration
	done      chan struct{}
}

// New starts watching path, invoking onChange (debounced) after it changes.
// onChange runs on its own goroutine; callers that touch shared state must
// synchronize internally. A missing path is watched once it appears, same
// as any other directory entry change.
func New(path string, onChange func()) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(path); err != nil {
		// The config file may not exist yet; watch its directory instead
		// so a later create is still observed.
		_ = fsWatcher.Add(dirOf(path))
	}

	w := &Watcher{fsWatcher: fsWatcher, path: path, debounce: DefaultDebounce, done: make(chan struct{})}
	go w.run(onChange)
	return w, nil
}

func (w *Watcher) run(onChange func()) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if ev.Name != w.path && ev.Name != dirOf(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// Re-add defensively: a Rename/Remove drops the inode-level
			// watch even when the replacement file lands at the same path.
			_ = w.fsWatcher.Add(w.path)

			if timer == nil {
				timer = time.AfterFunc(w.debounce, onChange)
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Debug().Err(err).Str("path", w.path).Msg("config watcher error")

		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsWatcher.Close()
}

func dirOf(path string) string {
	i := len(path) - 1
	for i >= 0 && path[i] != '/' {
		i--
	}
	if i <= 0 {
		return "."
	}
	return path[:i]
}
