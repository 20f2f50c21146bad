package filewatcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ajkula/logwatcher/domain/port/outbound"
)

type testLogger struct{}

func (l *testLogger) Debug(msg string, args ...any) {}
func (l *testLogger) Info(msg string, args ...any)  {}
func (l *testLogger) Warn(msg string, args ...any)  {}
func (l *testLogger) Error(msg string, args ...any) {}

// signalRecorder counts handler invocations per kind
type signalRecorder struct {
	mu      sync.Mutex
	created int
	changed int
	deleted int
	order   []string
}

func (r *signalRecorder) record(kind string, counter *int) {
	r.mu.Lock()
	*counter++
	r.order = append(r.order, kind)
	r.mu.Unlock()
}

func (r *signalRecorder) handlers() outbound.ChangeHandlers {
	return outbound.ChangeHandlers{
		OnCreated: func() { r.record("created", &r.created) },
		OnChanged: func() { r.record("changed", &r.changed) },
		OnDeleted: func() { r.record("deleted", &r.deleted) },
	}
}

func (r *signalRecorder) sequence() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func (r *signalRecorder) counts() (created, changed, deleted int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created, r.changed, r.deleted
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timeout waiting for %s", what)
}

func newTestWatcher(t *testing.T, debounce time.Duration) *FsWatcher {
	t.Helper()
	notifier, err := NewFSWatcher(&testLogger{}, debounce)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	t.Cleanup(func() { notifier.Stop() })
	return notifier.(*FsWatcher)
}

func TestFSWatcher_BasicOperations(t *testing.T) {
	tempDir := t.TempDir()
	watcher := newTestWatcher(t, 0)

	if watcher.IsWatching() {
		t.Error("Expected watcher to not be watching initially")
	}
	if len(watcher.GetWatchedPaths()) != 0 {
		t.Error("Expected no watched paths initially")
	}

	first, err := watcher.Subscribe(tempDir, "a.log", outbound.ChangeHandlers{})
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	second, err := watcher.Subscribe(tempDir, "b.log", outbound.ChangeHandlers{})
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	if !watcher.IsWatching() {
		t.Error("Expected watcher to be watching after Subscribe")
	}

	// both subscriptions share one directory watch
	paths := watcher.GetWatchedPaths()
	if len(paths) != 1 || paths[0] != tempDir {
		t.Errorf("Expected watched paths [%s], got %v", tempDir, paths)
	}

	if err := first.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if !watcher.IsWatching() {
		t.Error("Expected directory to stay watched while a subscription remains")
	}

	if err := second.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := second.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
	if watcher.IsWatching() {
		t.Error("Expected no directory watched after the last Close")
	}
}

func TestFSWatcher_InvalidSubscriptions(t *testing.T) {
	watcher := newTestWatcher(t, 0)

	for _, name := range []string{"", ".", filepath.Join("sub", "a.log")} {
		if _, err := watcher.Subscribe(t.TempDir(), name, outbound.ChangeHandlers{}); err == nil {
			t.Errorf("Expected an error for file name %q", name)
		}
	}

	missing := filepath.Join(t.TempDir(), "does-not-exist")
	if _, err := watcher.Subscribe(missing, "a.log", outbound.ChangeHandlers{}); err == nil {
		t.Error("Expected an error for a missing directory")
	}
	if watcher.IsWatching() {
		t.Error("Failed subscriptions must not leave a directory watched")
	}
}

func TestFSWatcher_FileEvents(t *testing.T) {
	tempDir := t.TempDir()
	watcher := newTestWatcher(t, 0)

	rec := &signalRecorder{}
	other := &signalRecorder{}
	if _, err := watcher.Subscribe(tempDir, "app.log", rec.handlers()); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	if _, err := watcher.Subscribe(tempDir, "other.log", other.handlers()); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	path := filepath.Join(tempDir, "app.log")

	if err := os.WriteFile(path, []byte("created\n"), 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	waitFor(t, "create event", func() bool {
		created, _, _ := rec.counts()
		return created >= 1
	})

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	f.WriteString("appended\n")
	f.Close()
	waitFor(t, "write event", func() bool {
		_, changed, _ := rec.counts()
		return changed >= 1
	})

	if err := os.Remove(path); err != nil {
		t.Fatalf("Failed to remove file: %v", err)
	}
	waitFor(t, "remove event", func() bool {
		_, _, deleted := rec.counts()
		return deleted >= 1
	})

	// unrelated entries of the same directory are filtered out
	created, changed, deleted := other.counts()
	if created+changed+deleted != 0 {
		t.Errorf("Expected no events for other.log, got %d/%d/%d", created, changed, deleted)
	}
}

func TestFSWatcher_MatchesExactName(t *testing.T) {
	tempDir := t.TempDir()
	watcher := newTestWatcher(t, 0)

	bracketed := &signalRecorder{}
	star := &signalRecorder{}
	if _, err := watcher.Subscribe(tempDir, "app[1].log", bracketed.handlers()); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	if _, err := watcher.Subscribe(tempDir, "*.log", star.handlers()); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	// "app1.log" would match the glob app[1].log
	if err := os.WriteFile(filepath.Join(tempDir, "app1.log"), []byte("x\n"), 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, "app[1].log"), []byte("x\n"), 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	waitFor(t, "create event for app[1].log", func() bool {
		created, _, _ := bracketed.counts()
		return created >= 1
	})
	time.Sleep(100 * time.Millisecond)

	if created, _, _ := bracketed.counts(); created != 1 {
		t.Errorf("Expected 1 create for app[1].log, got %d", created)
	}
	if created, changed, deleted := star.counts(); created+changed+deleted != 0 {
		t.Errorf("Expected no events for *.log, got %d/%d/%d", created, changed, deleted)
	}
}

func TestFSWatcher_RenameCountsAsDelete(t *testing.T) {
	tempDir := t.TempDir()
	watcher := newTestWatcher(t, 0)

	path := filepath.Join(tempDir, "app.log")
	if err := os.WriteFile(path, []byte("x\n"), 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	rec := &signalRecorder{}
	if _, err := watcher.Subscribe(tempDir, "app.log", rec.handlers()); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	if err := os.Rename(path, path+".1"); err != nil {
		t.Fatalf("Failed to rename file: %v", err)
	}
	waitFor(t, "rename event", func() bool {
		_, _, deleted := rec.counts()
		return deleted >= 1
	})
}

func TestFSWatcher_DebounceCoalescesWrites(t *testing.T) {
	tempDir := t.TempDir()
	watcher := newTestWatcher(t, 100*time.Millisecond)

	path := filepath.Join(tempDir, "app.log")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	rec := &signalRecorder{}
	if _, err := watcher.Subscribe(tempDir, "app.log", rec.handlers()); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	for i := 0; i < 5; i++ {
		f.WriteString("burst\n")
		time.Sleep(5 * time.Millisecond)
	}
	f.Close()

	waitFor(t, "debounced write", func() bool {
		_, changed, _ := rec.counts()
		return changed >= 1
	})
	time.Sleep(250 * time.Millisecond)

	if _, changed, _ := rec.counts(); changed != 1 {
		t.Errorf("Expected 1 coalesced change, got %d", changed)
	}

	t.Run("write then rename inside the window", func(t *testing.T) {
		rotated := &signalRecorder{}
		if _, err := watcher.Subscribe(tempDir, "rotated.log", rotated.handlers()); err != nil {
			t.Fatalf("Failed to subscribe: %v", err)
		}
		path := filepath.Join(tempDir, "rotated.log")
		if err := os.WriteFile(path, []byte("first\n"), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
		waitFor(t, "create event", func() bool {
			created, _, _ := rotated.counts()
			return created >= 1
		})
		time.Sleep(250 * time.Millisecond)

		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			t.Fatalf("Failed to open file: %v", err)
		}
		f.WriteString("last line before rotation\n")
		f.Close()
		if err := os.Rename(path, path+".1"); err != nil {
			t.Fatalf("Failed to rename file: %v", err)
		}

		waitFor(t, "rename event", func() bool {
			_, _, deleted := rotated.counts()
			return deleted >= 1
		})
		time.Sleep(250 * time.Millisecond)

		// the pending write is delivered before the delete, never after it
		seq := rotated.sequence()
		last := -1
		for i, kind := range seq {
			if kind == "changed" {
				last = i
			}
		}
		deletedAt := -1
		for i, kind := range seq {
			if kind == "deleted" {
				deletedAt = i
				break
			}
		}
		if last == -1 || last > deletedAt {
			t.Errorf("Expected the pending change before the delete, got %v", seq)
		}
	})
}

func TestFSWatcher_StopAndCleanup(t *testing.T) {
	tempDir := t.TempDir()
	watcher := newTestWatcher(t, 0)

	sub, err := watcher.Subscribe(tempDir, "a.log", outbound.ChangeHandlers{})
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	if err := watcher.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if err := watcher.Stop(); err != nil {
		t.Errorf("Second Stop failed: %v", err)
	}

	if watcher.IsWatching() {
		t.Error("Expected watcher to not be watching after Stop")
	}
	if _, err := watcher.Subscribe(tempDir, "b.log", outbound.ChangeHandlers{}); err != ErrWatcherStopped {
		t.Errorf("Expected ErrWatcherStopped, got %v", err)
	}

	// closing a subscription after Stop is harmless
	if err := sub.Close(); err != nil {
		t.Errorf("Close after Stop failed: %v", err)
	}
}

func TestFSWatcher_EventConversion(t *testing.T) {
	tests := []struct {
		name     string
		op       fsnotify.Op
		expected string
	}{
		{"create", fsnotify.Create, outbound.FileEventCreate},
		{"write", fsnotify.Write, outbound.FileEventModify},
		{"remove", fsnotify.Remove, outbound.FileEventDelete},
		{"rename", fsnotify.Rename, outbound.FileEventDelete},
		{"chmod", fsnotify.Chmod, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := convertEvent(fsnotify.Event{Name: "/var/log/app.log", Op: tt.op})
			if tt.expected == "" {
				if event != nil {
					t.Errorf("Expected %s to be ignored, got %v", tt.name, event)
				}
				return
			}
			if event == nil {
				t.Fatalf("Expected %s to be converted", tt.name)
			}
			if event.EventType != tt.expected {
				t.Errorf("Expected event type %s, got %s", tt.expected, event.EventType)
			}
			if event.FilePath != "/var/log/app.log" {
				t.Errorf("Expected path /var/log/app.log, got %s", event.FilePath)
			}
		})
	}
}
