// Package watch recompiles a class-file view on every write, the same
// watch-and-rebuild shape the teacher's runtime/vfs package offers the
// rest of the toolchain, narrowed here to the single file the CLI was
// pointed at.
package watch

import (
	"github.com/fsnotify/fsnotify"
)

// Watcher reports writes to one input file as events on its channel
// until Close is called. Writes that arrive while an event is still
// pending are folded into that event.
type Watcher struct {
	w    *fsnotify.Watcher
	evC  chan struct{}
	path string
}

// New starts watching path for writes. The caller drains Events until
// Close.
func New(path string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := w.Add(path); err != nil {
		w.Close()

		return nil, err
	}

	watcher := &Watcher{w: w, evC: make(chan struct{}, 1), path: path}

	go watcher.loop()

	return watcher, nil
}

func (watcher *Watcher) loop() {
	for ev := range watcher.w.Events {
		if ev.Name == watcher.path && ev.Op&fsnotify.Write != 0 {
			select {
			case watcher.evC <- struct{}{}:
			default:
				// A recompile is already pending; coalesce the burst of
				// writes an editor's save can produce into one rebuild.
			}
		}
	}
}

// Events fires after writes to the watched file, at most one pending
// event at a time.
func (watcher *Watcher) Events() <-chan struct{} { return watcher.evC }

// Close stops watching.
func (watcher *Watcher) Close() error { return watcher.w.Close() }
