package model

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// WatchEventKind is the lifecycle event emitted for a watched file
type WatchEventKind string

const (
	EventFileCreated WatchEventKind = "fileCreated"
	EventFileChanged WatchEventKind = "fileChanged"
	EventFileDeleted WatchEventKind = "fileDeleted"
)

// WatchEvent is delivered to EventSink listeners
type WatchEvent struct {
	ID        string         `json:"id"`
	Kind      WatchEventKind `json:"event"`
	Path      string         `json:"path"`
	Timestamp time.Time      `json:"timestamp"`
}

// EventListener receives watch events
type EventListener func(WatchEvent)

type listenerEntry struct {
	id       uint64
	listener EventListener
}

// EventSink fans lifecycle events of one watched path out to its listeners.
//
// Emit never calls listeners itself: events are queued and delivered by the
// sink's dispatcher goroutine once the emitting call has returned, so a
// listener never observes the reactor mid-mutation and never runs on the
// filesystem callback's stack. Delivery order matches Emit order.
type EventSink struct {
	path      string
	mu        sync.Mutex
	listeners []listenerEntry
	nextID    uint64
	queue     []WatchEvent
	wake      chan struct{}
	done      chan struct{}
	closed    bool
	closeOnce sync.Once
}

func NewEventSink(path string) *EventSink {
	s := &EventSink{
		path: path,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	go s.dispatch()

	return s
}

func (s *EventSink) Path() string {
	return s.path
}

// On registers a listener and returns the function that removes it.
func (s *EventSink) On(listener EventListener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || listener == nil {
		return func() {}
	}

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, listener: listener})

	return func() { s.off(id) }
}

func (s *EventSink) off(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, entry := range s.listeners {
		if entry.id == id {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// ListenerCount returns the number of registered listeners
func (s *EventSink) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// Emit queues an event for deferred delivery.
func (s *EventSink) Emit(kind WatchEventKind) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, WatchEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Path:      s.path,
		Timestamp: time.Now(),
	})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *EventSink) dispatch() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
			for {
				s.mu.Lock()
				if len(s.queue) == 0 || s.closed {
					s.mu.Unlock()
					break
				}
				ev := s.queue[0]
				s.queue = s.queue[1:]
				listeners := make([]listenerEntry, len(s.listeners))
				copy(listeners, s.listeners)
				s.mu.Unlock()

				for _, entry := range listeners {
					entry.listener(ev)
				}
			}
		}
	}
}

// Close drops every listener and pending event and stops the dispatcher.
// Safe to call more than once.
func (s *EventSink) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.listeners = nil
		s.queue = nil
		s.mu.Unlock()
		close(s.done)
	})
}

// Closed reports whether Close has been called
func (s *EventSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
