// Package watch wakes dashboard pollers early when the file backed run
// store changes. Pollers keep their ticker; events only shorten the wait.
package watch

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/JaiwanShin/ai-marketing-team/pkg/logging"
	"github.com/JaiwanShin/ai-marketing-team/pkg/storage"
)

// EventType represents the kind of store change.
type EventType int

// Event types for store changes.
const (
	EventLogChanged EventType = iota
	EventStatusChanged
	EventArtifactChanged
)

func (t EventType) String() string {
	switch t {
	case EventLogChanged:
		return "log"
	case EventStatusChanged:
		return "status"
	case EventArtifactChanged:
		return "artifact"
	}
	return "unknown"
}

// DefaultDebounce is the quiet period before an event is delivered.
const DefaultDebounce = 100 * time.Millisecond

// Event represents a debounced change in the output directory.
type Event struct {
	Type EventType
	Name string
	Path string
}

// Watcher watches one output directory.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	dir        string
	eventsChan chan Event
	done       chan struct{}
	stopOnce   sync.Once
	delay      time.Duration
	logger     logging.Logger
	debounce   map[string]*time.Timer
	debounceMu sync.Mutex
}

// New creates a watcher for dir. Start fails if dir does not exist.
func New(dir string, delay time.Duration, logger logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsWatcher:  fsWatcher,
		dir:        dir,
		eventsChan: make(chan Event, 64),
		done:       make(chan struct{}),
		delay:      delay,
		logger:     logger,
		debounce:   make(map[string]*time.Timer),
	}, nil
}

// Events returns the channel for receiving events.
func (w *Watcher) Events() <-chan Event {
	return w.eventsChan
}

// Start begins watching.
func (w *Watcher) Start() error {
	if err := w.fsWatcher.Add(w.dir); err != nil {
		return err
	}
	go w.processEvents()
	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsWatcher.Close()

		w.debounceMu.Lock()
		for path, timer := range w.debounce {
			timer.Stop()
			delete(w.debounce, path)
		}
		w.debounceMu.Unlock()
	})
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Output watcher error", logging.Err(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Atomic replaces show up as Create or Rename on the target name.
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}
	eventType, ok := classify(filepath.Base(event.Name))
	if !ok {
		return
	}
	w.debounceEvent(event.Name, func() {
		w.deliver(Event{Type: eventType, Name: filepath.Base(event.Name), Path: event.Name})
	})
}

func (w *Watcher) debounceEvent(path string, fn func()) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, ok := w.debounce[path]; ok {
		timer.Stop()
	}
	w.debounce[path] = time.AfterFunc(w.delay, func() {
		w.debounceMu.Lock()
		delete(w.debounce, path)
		w.debounceMu.Unlock()
		fn()
	})
}

// deliver drops the event when nobody is keeping up; the poll ticker covers it.
func (w *Watcher) deliver(event Event) {
	select {
	case <-w.done:
	case w.eventsChan <- event:
	default:
	}
}

func classify(name string) (EventType, bool) {
	switch {
	case strings.HasPrefix(name, "."), strings.HasSuffix(name, ".tmp"):
		return 0, false
	case name == storage.LogFileName:
		return EventLogChanged, true
	case name == storage.StatusFileName:
		return EventStatusChanged, true
	case filepath.Ext(name) == storage.ArtifactExt:
		return EventArtifactChanged, true
	}
	return 0, false
}
