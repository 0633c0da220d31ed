package schema

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
)

// ReloadHandler is called after a schema file was reloaded.
type ReloadHandler func(path string, types []string, err error)

// Watcher reloads block definitions into a factory whenever a schema file
// in a watched directory is written or created.
type Watcher struct {
	factory  *blocks.Factory
	watcher  *fsnotify.Watcher
	onReload ReloadHandler

	mu      sync.Mutex
	pending map[string]*time.Timer
	delay   time.Duration
	closed  bool
}

// NewWatcher starts watching dir. Events for the same file are coalesced
// for a short delay since editors often write in several steps.
func NewWatcher(f *blocks.Factory, dir string, onReload ReloadHandler) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	w := &Watcher{
		factory:  f,
		watcher:  fw,
		onReload: onReload,
		pending:  make(map[string]*time.Timer),
		delay:    100 * time.Millisecond,
	}
	go w.watchLoop()
	return w, nil
}

// Close stops the watcher and cancels pending reloads.
func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !IsSchemaFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.schedule(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("schema watcher: watcher error: %v", err)
		}
	}
}

func (w *Watcher) schedule(path string) {
	path, _ = filepath.Abs(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Reset(w.delay)
		return
	}
	w.pending[path] = time.AfterFunc(w.delay, func() { w.reload(path) })
}

func (w *Watcher) reload(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}

	types, err := LoadFile(w.factory, path)
	if err != nil {
		log.Printf("schema watcher: reload %s: %v", path, err)
	} else {
		log.Printf("schema watcher: reloaded %d block types from %s", len(types), filepath.Base(path))
	}
	if w.onReload != nil {
		w.onReload(path, types, err)
	}
}
