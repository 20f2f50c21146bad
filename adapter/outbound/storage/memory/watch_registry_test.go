package memory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajkula/logwatcher/domain/model"
)

type stubViewer struct {
	disposed int
}

func (v *stubViewer) Append(string)     {}
func (v *stubViewer) AppendLine(string) {}
func (v *stubViewer) Show(bool)         {}
func (v *stubViewer) Dispose()          { v.disposed++ }

type stubSubscription struct {
	err error
}

func (s *stubSubscription) Close() error { return s.err }

func newEntry(path string) (*model.WatchEntry, *stubViewer) {
	v := &stubViewer{}
	return model.NewWatchEntry(path, v, model.NewEventSink(path), 0), v
}

func TestWatchRegistry_AddAndGet(t *testing.T) {
	registry := NewWatchRegistry()

	entry, _ := newEntry("/var/log/a.log")
	assert.True(t, registry.Add(entry))

	got, ok := registry.Get("/var/log/a.log")
	require.True(t, ok)
	assert.Same(t, entry, got)

	_, ok = registry.Get("/var/log/b.log")
	assert.False(t, ok)

	assert.False(t, registry.Add(nil))
}

func TestWatchRegistry_DuplicateAddIsRejected(t *testing.T) {
	registry := NewWatchRegistry()

	first, _ := newEntry("/var/log/a.log")
	second, _ := newEntry("/var/log/a.log")

	assert.True(t, registry.Add(first))
	assert.False(t, registry.Add(second))

	got, _ := registry.Get("/var/log/a.log")
	assert.Same(t, first, got)
	assert.Equal(t, []string{"/var/log/a.log"}, registry.ListPaths())
}

func TestWatchRegistry_ListPathsKeepsInsertionOrder(t *testing.T) {
	registry := NewWatchRegistry()
	for _, p := range []string{"/c.log", "/a.log", "/b.log"} {
		entry, _ := newEntry(p)
		registry.Add(entry)
	}

	paths := registry.ListPaths()
	assert.Equal(t, []string{"/c.log", "/a.log", "/b.log"}, paths)

	// callers get a copy
	paths[0] = "/changed"
	assert.Equal(t, "/c.log", registry.ListPaths()[0])
}

func TestWatchRegistry_Remove(t *testing.T) {
	registry := NewWatchRegistry()
	entry, viewer := newEntry("/a.log")
	other, _ := newEntry("/b.log")
	registry.Add(entry)
	registry.Add(other)

	removed, err := registry.Remove("/a.log")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.True(t, entry.Released())
	assert.Equal(t, 1, viewer.disposed)
	assert.Equal(t, []string{"/b.log"}, registry.ListPaths())

	// absent path is a no-op
	removed, err = registry.Remove("/a.log")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 1, viewer.disposed)
}

func TestWatchRegistry_RemoveReportsReleaseError(t *testing.T) {
	registry := NewWatchRegistry()
	closeErr := errors.New("close failed")

	entry, _ := newEntry("/a.log")
	entry.Subscription = &stubSubscription{err: closeErr}
	registry.Add(entry)

	removed, err := registry.Remove("/a.log")
	assert.True(t, removed)
	assert.ErrorIs(t, err, closeErr)

	_, ok := registry.Get("/a.log")
	assert.False(t, ok, "entry is unregistered even when release fails")
}

func TestWatchRegistry_RemoveAll(t *testing.T) {
	registry := NewWatchRegistry()
	var viewers []*stubViewer
	for _, p := range []string{"/a.log", "/b.log", "/c.log"} {
		entry, v := newEntry(p)
		viewers = append(viewers, v)
		registry.Add(entry)
	}

	require.NoError(t, registry.RemoveAll())
	require.NoError(t, registry.RemoveAll())

	assert.Empty(t, registry.ListPaths())
	for _, v := range viewers {
		assert.Equal(t, 1, v.disposed)
	}

	// the registry stays usable
	entry, _ := newEntry("/a.log")
	assert.True(t, registry.Add(entry))
}
