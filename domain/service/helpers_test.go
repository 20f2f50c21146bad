package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ajkula/logwatcher/adapter/outbound/storage/localfs"
	"github.com/ajkula/logwatcher/adapter/outbound/storage/memory"
	"github.com/ajkula/logwatcher/adapter/outbound/viewer"
	"github.com/ajkula/logwatcher/domain/model"
	"github.com/ajkula/logwatcher/domain/port/outbound"
)

type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any) {}
func (m *mockLogger) Info(msg string, args ...any)  {}
func (m *mockLogger) Warn(msg string, args ...any)  {}
func (m *mockLogger) Error(msg string, args ...any) {}

// fakeSubscription records how often it was closed
type fakeSubscription struct {
	key      string
	handlers outbound.ChangeHandlers
	notifier *fakeNotifier
	mu       sync.Mutex
	closed   int
}

func (s *fakeSubscription) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()

	s.notifier.mu.Lock()
	delete(s.notifier.subs, s.key)
	s.notifier.mu.Unlock()
	return nil
}

func (s *fakeSubscription) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeNotifier captures handlers so tests fire filesystem signals directly
type fakeNotifier struct {
	mu           sync.Mutex
	subs         map[string]*fakeSubscription
	all          []*fakeSubscription
	subscribeErr error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{subs: make(map[string]*fakeSubscription)}
}

func (n *fakeNotifier) Subscribe(dir, name string, handlers outbound.ChangeHandlers) (model.Subscription, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subscribeErr != nil {
		return nil, n.subscribeErr
	}

	key := filepath.Join(dir, name)
	sub := &fakeSubscription{key: key, handlers: handlers, notifier: n}
	n.subs[key] = sub
	n.all = append(n.all, sub)
	return sub, nil
}

func (n *fakeNotifier) Stop() error      { return nil }
func (n *fakeNotifier) IsWatching() bool { return true }
func (n *fakeNotifier) GetWatchedPaths() []string {
	return nil
}

func (n *fakeNotifier) handlers(t *testing.T, path string) outbound.ChangeHandlers {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	sub, ok := n.subs[path]
	require.True(t, ok, "no subscription for %s", path)
	return sub.handlers
}

func (n *fakeNotifier) created(t *testing.T, path string) { n.handlers(t, path).OnCreated() }
func (n *fakeNotifier) changed(t *testing.T, path string) { n.handlers(t, path).OnChanged() }
func (n *fakeNotifier) deleted(t *testing.T, path string) { n.handlers(t, path).OnDeleted() }

func (n *fakeNotifier) subscriptionCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

// recordingFactory keeps every channel it creates
type recordingFactory struct {
	factory  *viewer.Factory
	mu       sync.Mutex
	channels []*viewer.Channel
}

func newRecordingFactory() *recordingFactory {
	return &recordingFactory{factory: viewer.NewFactory(nil, 0)}
}

func (f *recordingFactory) CreateViewer(name string) model.Viewer {
	v := f.factory.CreateViewer(name)
	f.mu.Lock()
	f.channels = append(f.channels, v.(*viewer.Channel))
	f.mu.Unlock()
	return v
}

func (f *recordingFactory) created() []*viewer.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*viewer.Channel(nil), f.channels...)
}

// failingFileSource wraps the local filesystem and fails reads on demand
type failingFileSource struct {
	outbound.FileSource
	mu      sync.Mutex
	readErr error
	sizeErr error
	onSize  func()
}

func (f *failingFileSource) setReadErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

func (f *failingFileSource) Size(path string) (int64, error) {
	f.mu.Lock()
	err := f.sizeErr
	hook := f.onSize
	f.onSize = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return 0, err
	}
	return f.FileSource.Size(path)
}

func (f *failingFileSource) ReadAt(path string, offset, length int64) ([]byte, error) {
	f.mu.Lock()
	err := f.readErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.FileSource.ReadAt(path, offset, length)
}

var errPermission = errors.New("permission denied")

type testEnv struct {
	service  *watchService
	notifier *fakeNotifier
	viewers  *recordingFactory
	files    *failingFileSource
	dir      string
}

func newTestEnv(t *testing.T, cfg WatchServiceConfig) *testEnv {
	t.Helper()

	env := &testEnv{
		notifier: newFakeNotifier(),
		viewers:  newRecordingFactory(),
		files:    &failingFileSource{FileSource: localfs.NewFileSource()},
		dir:      t.TempDir(),
	}
	env.service = NewWatchService(
		env.notifier,
		env.files,
		env.viewers,
		memory.NewWatchRegistry(),
		&mockLogger{},
		cfg,
	)
	t.Cleanup(env.service.Cleanup)
	return env
}

func (e *testEnv) path(name string) string {
	return filepath.Join(e.dir, name)
}

func (e *testEnv) channel(t *testing.T, path string) *viewer.Channel {
	t.Helper()
	v, ok := e.service.Viewer(path)
	require.True(t, ok, "no viewer for %s", path)
	return v.(*viewer.Channel)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(content)
	require.NoError(t, err)
}

// numberedLines returns "0\n1\n...\n" for n lines
func numberedLines(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += fmt.Sprintf("%X\n", i)
	}
	return s
}

// eventLog collects events delivered to a sink
type eventLog struct {
	mu     sync.Mutex
	events []model.WatchEvent
}

func listen(sink *model.EventSink) *eventLog {
	l := &eventLog{}
	sink.On(func(ev model.WatchEvent) {
		l.mu.Lock()
		l.events = append(l.events, ev)
		l.mu.Unlock()
	})
	return l
}

func (l *eventLog) count(kind model.WatchEventKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (l *eventLog) kinds() []model.WatchEventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	kinds := make([]model.WatchEventKind, len(l.events))
	for i, ev := range l.events {
		kinds[i] = ev.Kind
	}
	return kinds
}
