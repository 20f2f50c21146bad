package model

import (
	"errors"
	"sync"
	"time"
)

// Viewer is the presentation sink a watched file's text is written to
type Viewer interface {
	// Append writes text as-is
	Append(text string)

	// AppendLine writes text followed by a line feed
	AppendLine(text string)

	// Show reveals the viewer; preserveFocus keeps the current focus
	Show(preserveFocus bool)

	// Dispose releases the viewer
	Dispose()
}

// Subscription is an active filesystem change subscription
type Subscription interface {
	Close() error
}

// WatchEntry bundles the state and resources of one tailed path.
// The viewer, subscription and event sink are owned by the entry and
// released together by Release.
type WatchEntry struct {
	Path         string
	Viewer       Viewer
	Subscription Subscription
	Events       *EventSink
	CreatedAt    time.Time

	mu       sync.Mutex
	offset   OffsetTracker
	released bool
}

func NewWatchEntry(path string, viewer Viewer, events *EventSink, initialOffset int64) *WatchEntry {
	return &WatchEntry{
		Path:      path,
		Viewer:    viewer,
		Events:    events,
		CreatedAt: time.Now(),
		offset:    NewOffsetTracker(initialOffset),
	}
}

// Reconcile runs fn with exclusive access to the offset tracker. At most one
// reconciliation per entry is in flight; a concurrent caller waits its turn.
func (e *WatchEntry) Reconcile(fn func(t *OffsetTracker)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.offset)
}

// Offset returns the current cursor
func (e *WatchEntry) Offset() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.offset.Offset()
}

// Release disposes the viewer, closes the change subscription and drops the
// event listeners. Only the first call has any effect.
func (e *WatchEntry) Release() error {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return nil
	}
	e.released = true
	e.mu.Unlock()

	var errs []error
	if e.Viewer != nil {
		e.Viewer.Dispose()
	}
	if e.Subscription != nil {
		if err := e.Subscription.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.Events != nil {
		e.Events.Close()
	}
	return errors.Join(errs...)
}

// Released reports whether Release has run
func (e *WatchEntry) Released() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.released
}
