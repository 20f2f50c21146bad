package filewatcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ajkula/logwatcher/domain/model"
	"github.com/ajkula/logwatcher/domain/port/outbound"
)

var ErrWatcherStopped = errors.New("file watcher is stopped")

type subscription struct {
	id       uint64
	dir      string
	name     string
	handlers outbound.ChangeHandlers
	fw       *FsWatcher
	once     sync.Once
}

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		err = s.fw.unsubscribe(s)
	})
	return err
}

// matches compares names literally; a log named "app[1].log" is not a glob
func (s *subscription) matches(dir, name string) bool {
	return s.dir == dir && s.name == name
}

// FsWatcher watches directories with fsnotify and routes the events of their
// entries to the subscriptions for that exact basename. A single file
// cannot be watched directly across delete/create cycles, hence the
// directory-level watch.
type FsWatcher struct {
	watcher   *fsnotify.Watcher
	logger    outbound.Logger
	subs      map[uint64]*subscription
	dirRefs   map[string]int
	nextID    uint64
	debounce  time.Duration
	debouncer map[string]*time.Timer
	debounced chan string
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	stopped   bool
	closed    chan struct{}
}

// NewFSWatcher starts the event loop. A positive debounce coalesces bursts of
// write events per file into one change notification.
func NewFSWatcher(logger outbound.Logger, debounce time.Duration) (outbound.ChangeNotifier, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	fw := &FsWatcher{
		watcher:   fsWatcher,
		logger:    logger,
		subs:      make(map[uint64]*subscription),
		dirRefs:   make(map[string]int),
		debounce:  debounce,
		debouncer: make(map[string]*time.Timer),
		debounced: make(chan string, 100),
		ctx:       ctx,
		cancel:    cancel,
		closed:    make(chan struct{}),
	}

	go fw.run()

	return fw, nil
}

func (fw *FsWatcher) Subscribe(dir, name string, handlers outbound.ChangeHandlers) (model.Subscription, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.stopped {
		return nil, ErrWatcherStopped
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for %s: %w", dir, err)
	}

	if name == "" || name == "." || strings.ContainsRune(name, filepath.Separator) {
		return nil, fmt.Errorf("invalid file name %q", name)
	}

	// add directory to fsnotify watcher on first use
	if fw.dirRefs[absDir] == 0 {
		if err := fw.watcher.Add(absDir); err != nil {
			return nil, fmt.Errorf("failed to watch directory %s: %w", absDir, err)
		}
		fw.logger.Debug("Watching directory", "dir", absDir)
	}
	fw.dirRefs[absDir]++

	fw.nextID++
	sub := &subscription{
		id:       fw.nextID,
		dir:      absDir,
		name:     name,
		handlers: handlers,
		fw:       fw,
	}
	fw.subs[sub.id] = sub

	return sub, nil
}

func (fw *FsWatcher) unsubscribe(sub *subscription) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, exists := fw.subs[sub.id]; !exists {
		return nil
	}
	delete(fw.subs, sub.id)

	fw.dirRefs[sub.dir]--
	if fw.dirRefs[sub.dir] > 0 {
		return nil
	}
	delete(fw.dirRefs, sub.dir)

	if fw.stopped {
		return nil
	}

	if err := fw.watcher.Remove(sub.dir); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		// the directory itself may be gone already
		fw.logger.Warn("Failed to remove directory watch", "dir", sub.dir, "error", err)
	}
	fw.logger.Debug("Stopped watching directory", "dir", sub.dir)
	return nil
}

func (fw *FsWatcher) Stop() error {
	fw.mu.Lock()

	if fw.stopped {
		fw.mu.Unlock()
		return nil
	}

	// cancel context to stop processing
	fw.cancel()

	// cleanup all debounce timers
	fw.cleanupDebouncers()

	fw.stopped = true
	err := fw.watcher.Close()
	fw.mu.Unlock()

	// wait for the event loop to finish
	<-fw.closed

	if err != nil {
		return fmt.Errorf("failed to close fsnotify watcher: %w", err)
	}
	return nil
}

func (fw *FsWatcher) IsWatching() bool {
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	return !fw.stopped && len(fw.dirRefs) > 0
}

func (fw *FsWatcher) GetWatchedPaths() []string {
	fw.mu.RLock()
	defer fw.mu.RUnlock()

	paths := make([]string, 0, len(fw.dirRefs))
	for path := range fw.dirRefs {
		paths = append(paths, path)
	}
	return paths
}

// run is the single event loop: every subscription handler runs here, one
// at a time
func (fw *FsWatcher) run() {
	defer close(fw.closed)

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)

		case path := <-fw.debounced:
			fw.dispatch(outbound.FileChangeEvent{FilePath: path, EventType: outbound.FileEventModify})

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("File watcher error", "error", err)
		}
	}
}

func (fw *FsWatcher) handleEvent(event fsnotify.Event) {
	changeEvent := convertEvent(event)
	if changeEvent == nil {
		return
	}

	switch changeEvent.EventType {
	case outbound.FileEventModify:
		if fw.debounce > 0 {
			fw.debounceEvent(event.Name)
			return
		}
	case outbound.FileEventDelete:
		// bytes written just before a rotation must be read before the
		// delete resets the offset
		fw.flushDebounce(event.Name)
	}

	fw.dispatch(*changeEvent)
}

func (fw *FsWatcher) dispatch(event outbound.FileChangeEvent) {
	dir := filepath.Dir(event.FilePath)
	name := filepath.Base(event.FilePath)

	fw.mu.RLock()
	matched := make([]*subscription, 0, 1)
	for _, sub := range fw.subs {
		if sub.matches(dir, name) {
			matched = append(matched, sub)
		}
	}
	fw.mu.RUnlock()

	if len(matched) == 0 {
		return
	}

	fw.logger.Debug("File event", "path", event.FilePath, "type", event.EventType)

	for _, sub := range matched {
		var handler func()
		switch event.EventType {
		case outbound.FileEventCreate:
			handler = sub.handlers.OnCreated
		case outbound.FileEventModify:
			handler = sub.handlers.OnChanged
		case outbound.FileEventDelete:
			handler = sub.handlers.OnDeleted
		}
		if handler != nil {
			handler()
		}
	}
}

// debounceEvent restarts the per-file timer; the write is dispatched on the
// event loop once the file has been quiet for the debounce period
func (fw *FsWatcher) debounceEvent(path string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if timer, exists := fw.debouncer[path]; exists {
		timer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(fw.debounce, func() {
		fw.mu.Lock()
		if fw.debouncer[path] != timer {
			// superseded or flushed while waiting for the lock
			fw.mu.Unlock()
			return
		}
		delete(fw.debouncer, path)

		// queue under the lock so a flush sees either the timer or the write
		select {
		case fw.debounced <- path:
			fw.mu.Unlock()
			return
		default:
		}
		fw.mu.Unlock()

		select {
		case fw.debounced <- path:
		case <-fw.ctx.Done():
		}
	})
	fw.debouncer[path] = timer
}

// flushDebounce dispatches a pending or already queued debounced write for
// path right away. Runs on the event loop.
func (fw *FsWatcher) flushDebounce(path string) {
	fw.mu.Lock()
	timer, pending := fw.debouncer[path]
	if pending {
		timer.Stop()
		delete(fw.debouncer, path)
	}
	fw.mu.Unlock()

	// fired timers may have queued writes that the loop has not read yet
drain:
	for {
		select {
		case queued := <-fw.debounced:
			if queued == path {
				pending = true
			} else {
				fw.dispatch(outbound.FileChangeEvent{FilePath: queued, EventType: outbound.FileEventModify})
			}
		default:
			break drain
		}
	}

	if pending {
		fw.dispatch(outbound.FileChangeEvent{FilePath: path, EventType: outbound.FileEventModify})
	}
}

// cleanupDebouncers stops and removes all debounce timers
func (fw *FsWatcher) cleanupDebouncers() {
	for _, timer := range fw.debouncer {
		timer.Stop()
	}
	fw.debouncer = make(map[string]*time.Timer)
}

// convertEvent maps fsnotify operations; a rename moves the file away from
// the watched name, so it counts as a delete
func convertEvent(event fsnotify.Event) *outbound.FileChangeEvent {
	var eventType string

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		eventType = outbound.FileEventDelete
	case event.Has(fsnotify.Create):
		eventType = outbound.FileEventCreate
	case event.Has(fsnotify.Write):
		eventType = outbound.FileEventModify
	default:
		return nil
	}

	return &outbound.FileChangeEvent{
		FilePath:  event.Name,
		EventType: eventType,
	}
}
