// Package watcher monitors the vault roots and broadcasts events via callbacks.
package watcher

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/CageChen/cloverdrive/internal/fs"
	"github.com/CageChen/cloverdrive/internal/logging"
)

// EventType represents the type of file system event
type EventType int

// File system event types.
const (
	EventCreate EventType = iota
	EventWrite
	EventRemove
	EventRename
)

func (t EventType) String() string {
	switch t {
	case EventCreate:
		return "create"
	case EventWrite:
		return "update"
	case EventRemove:
		return "remove"
	case EventRename:
		return "rename"
	}
	return "unknown"
}

// Event represents a file system change event
type Event struct {
	Type EventType
	Root string
	Path string
}

// Callback is a function called when file changes occur
type Callback func(Event)

// Watcher monitors the top level of each root directory. Roots are flat,
// so subdirectories are not descended into.
type Watcher struct {
	watcher   *fsnotify.Watcher
	roots     []string
	callbacks []Callback
	mu        sync.RWMutex
	done      chan struct{}
	log       *zap.Logger
}

// New creates a new file system watcher
func New(roots ...string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher: w,
		roots:   roots,
		done:    make(chan struct{}),
		log:     logging.Named("watcher"),
	}, nil
}

// OnChange registers a callback for file change events
func (w *Watcher) OnChange(cb Callback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start begins watching all roots
func (w *Watcher) Start() error {
	for _, root := range w.roots {
		if err := w.watcher.Add(root); err != nil {
			w.log.Warn("cannot watch root", logging.Path(root), logging.Err(err))
		}
	}

	go w.eventLoop()
	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", logging.Err(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// In-flight copies land under a temp name first; the final rename is reported
	if fs.IsTemp(event.Name) {
		return
	}

	var eventType EventType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = EventCreate
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventWrite
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = EventRemove
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = EventRename
	default:
		return
	}

	e := Event{
		Type: eventType,
		Root: filepath.Dir(event.Name),
		Path: event.Name,
	}
	w.log.Debug("change", logging.String("event", eventType.String()), logging.Path(event.Name))

	w.mu.RLock()
	callbacks := make([]Callback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		cb(e)
	}
}
