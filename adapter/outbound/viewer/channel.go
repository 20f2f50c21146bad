package viewer

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// OutputListener receives the text appended to a Channel
type OutputListener = func(text string)

// Channel is an in-memory output pane: a bounded text buffer with
// listeners, optionally mirrored to a Console.
type Channel struct {
	name      string
	console   *Console
	maxBytes  int
	mu        sync.RWMutex
	buf       strings.Builder
	listeners map[uint64]OutputListener
	nextID    uint64
	shows     int
	visible   bool
	disposed  bool
	disposals int
}

func newChannel(name string, console *Console, maxBytes int) *Channel {
	return &Channel{
		name:      name,
		console:   console,
		maxBytes:  maxBytes,
		listeners: make(map[uint64]OutputListener),
	}
}

func (c *Channel) Name() string {
	return c.name
}

func (c *Channel) Append(text string) {
	if text == "" {
		return
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.buf.WriteString(text)
	c.trim()
	listeners := make([]OutputListener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	if c.console != nil {
		c.console.write(c.name, text)
	}
	for _, l := range listeners {
		l(text)
	}
}

func (c *Channel) AppendLine(text string) {
	c.Append(text + "\n")
}

// trim drops the oldest bytes beyond maxBytes, cutting on a rune boundary;
// caller holds the lock
func (c *Channel) trim() {
	if c.maxBytes <= 0 || c.buf.Len() <= c.maxBytes {
		return
	}
	content := c.buf.String()
	cut := len(content) - c.maxBytes
	for cut < len(content) && !utf8.RuneStart(content[cut]) {
		cut++
	}
	content = content[cut:]
	c.buf.Reset()
	c.buf.WriteString(content)
}

func (c *Channel) Show(preserveFocus bool) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.shows++
	c.visible = true
	c.mu.Unlock()

	if c.console != nil && !preserveFocus {
		c.console.focus(c.name)
	}
}

func (c *Channel) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disposals++
	if c.disposed {
		return
	}
	c.disposed = true
	c.visible = false
	c.listeners = make(map[uint64]OutputListener)
	c.buf.Reset()
}

// Subscribe registers a listener for appended text and returns its remover
func (c *Channel) Subscribe(listener OutputListener) func() {
	_, cancel := c.Attach(listener)
	return cancel
}

// Attach returns the buffered text and subscribes listener in one step, so
// the listener receives exactly the text appended after the snapshot
func (c *Channel) Attach(listener OutputListener) (string, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return "", func() {}
	}

	c.nextID++
	id := c.nextID
	c.listeners[id] = listener

	return c.buf.String(), func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Contents returns the buffered text
func (c *Channel) Contents() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.buf.String()
}

// ShowCount returns how many times the channel was revealed
func (c *Channel) ShowCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.shows
}

func (c *Channel) Visible() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.visible
}

func (c *Channel) Disposed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.disposed
}

// DisposeCount returns how many times Dispose was called
func (c *Channel) DisposeCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.disposals
}
