package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/ajkula/logwatcher/domain/model"
	"github.com/ajkula/logwatcher/domain/port/inbound"
	"github.com/ajkula/logwatcher/domain/port/outbound"
)

// WatchServiceConfig carries the policies of the watch service
type WatchServiceConfig struct {
	// AutoShow reveals a viewer whenever its file changes or disappears
	AutoShow bool

	// Presets maps well-known names to paths
	Presets map[string]string
}

type watchService struct {
	notifier outbound.ChangeNotifier
	files    outbound.FileSource
	viewers  outbound.ViewerFactory
	registry outbound.WatchRegistry
	logger   outbound.Logger

	presets  map[string]string
	autoShow atomic.Bool

	setup  singleflight.Group
	mu     sync.RWMutex
	closed bool
}

func NewWatchService(
	notifier outbound.ChangeNotifier,
	files outbound.FileSource,
	viewers outbound.ViewerFactory,
	registry outbound.WatchRegistry,
	logger outbound.Logger,
	cfg WatchServiceConfig,
) *watchService {
	presets := make(map[string]string, len(cfg.Presets))
	for name, path := range cfg.Presets {
		presets[name] = path
	}

	s := &watchService{
		notifier: notifier,
		files:    files,
		viewers:  viewers,
		registry: registry,
		logger:   logger,
		presets:  presets,
	}
	s.autoShow.Store(cfg.AutoShow)

	return s
}

var _ inbound.WatchService = (*watchService)(nil)

// SetAutoShow toggles revealing viewers on change
func (s *watchService) SetAutoShow(enabled bool) {
	s.autoShow.Store(enabled)
}

func (s *watchService) AutoShow() bool {
	return s.autoShow.Load()
}

// Watch starts tailing path. Watching an already watched path reuses its
// entry and returns the same event sink.
func (s *watchService) Watch(ctx context.Context, path string, opts inbound.WatchOptions) (*model.EventSink, error) {
	if path == "" {
		return nil, model.ErrEmptyPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		s.logger.Error("Failed to get absolute path", "path", path, "error", err)
		return nil, fmt.Errorf("failed to get absolute path for %s: %w", path, err)
	}

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, model.ErrServiceClosed
	}

	if entry, ok := s.registry.Get(absPath); ok {
		s.logger.Debug("Already watching file", "path", absPath)
		if !opts.Quiet {
			entry.Viewer.Show(false)
		}
		return entry.Events, nil
	}

	v, err, _ := s.setup.Do(absPath, func() (any, error) {
		return s.startWatch(ctx, absPath)
	})
	if err != nil {
		return nil, err
	}

	entry := v.(*model.WatchEntry)
	if !opts.Quiet {
		entry.Viewer.Show(false)
	}
	return entry.Events, nil
}

// startWatch runs the setup sequence: stat, initial tail, viewer, subscription,
// registration. Nothing is left behind when a step fails.
func (s *watchService) startWatch(ctx context.Context, path string) (*model.WatchEntry, error) {
	if entry, ok := s.registry.Get(path); ok {
		return entry, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size, err := s.files.Size(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Error("Failed to stat file", "path", path, "error", err)
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		size = 0
	}

	initial, err := ReadTail(s.files, path, size)
	if err != nil {
		s.logger.Error("Failed to read file", "path", path, "error", err)
		return nil, err
	}

	viewer := s.viewers.CreateViewer("Watch " + path)
	viewer.Append(initial)

	events := model.NewEventSink(path)
	entry := model.NewWatchEntry(path, viewer, events, size)
	reactor := newFileReactor(entry, s.files, s.logger, s.AutoShow)

	sub, err := s.notifier.Subscribe(filepath.Dir(path), filepath.Base(path), reactor.handlers())
	if err != nil {
		s.logger.Error("Failed to watch file", "path", path, "error", err)
		_ = entry.Release()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}
	entry.Subscription = sub

	if !s.registry.Add(entry) {
		_ = entry.Release()
		existing, ok := s.registry.Get(path)
		if !ok {
			return nil, fmt.Errorf("failed to register watch for %s", path)
		}
		return existing, nil
	}

	// Cleanup sets closed before emptying the registry, so an entry added
	// after that sweep is caught here
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		if _, err := s.registry.Remove(path); err != nil {
			s.logger.Error("Error releasing watch", "path", path, "error", err)
		}
		return nil, model.ErrServiceClosed
	}

	s.logger.Info("Watching file", "path", path, "size", size)
	return entry, nil
}

// WatchPreset watches the path configured under name
func (s *watchService) WatchPreset(ctx context.Context, name string, opts inbound.WatchOptions) (*model.EventSink, error) {
	path, ok := s.presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownPreset, name)
	}
	return s.Watch(ctx, path, opts)
}

func (s *watchService) Presets() map[string]string {
	presets := make(map[string]string, len(s.presets))
	for name, path := range s.presets {
		presets[name] = path
	}
	return presets
}

// Unwatch stops watching path and releases its resources
func (s *watchService) Unwatch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for %s: %w", path, err)
	}

	removed, err := s.registry.Remove(absPath)
	if err != nil {
		s.logger.Error("Error releasing watch", "path", absPath, "error", err)
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %s", model.ErrNotWatching, absPath)
	}

	s.logger.Info("Stopped watching file", "path", absPath)
	return nil
}

// UnwatchAll stops every watch
func (s *watchService) UnwatchAll() error {
	paths := s.registry.ListPaths()
	if err := s.registry.RemoveAll(); err != nil {
		s.logger.Error("Error releasing watches", "error", err)
		return err
	}

	s.logger.Info("Stopped watching all files", "count", len(paths))
	return nil
}

func (s *watchService) ListWatched() []string {
	return s.registry.ListPaths()
}

func (s *watchService) Status() []inbound.WatchStatus {
	paths := s.registry.ListPaths()
	statuses := make([]inbound.WatchStatus, 0, len(paths))
	for _, path := range paths {
		entry, ok := s.registry.Get(path)
		if !ok {
			continue
		}
		statuses = append(statuses, inbound.WatchStatus{
			Path:      entry.Path,
			Offset:    entry.Offset(),
			Listeners: entry.Events.ListenerCount(),
			CreatedAt: entry.CreatedAt,
		})
	}
	return statuses
}

func (s *watchService) Viewer(path string) (model.Viewer, bool) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, false
	}
	entry, ok := s.registry.Get(absPath)
	if !ok {
		return nil, false
	}
	return entry.Viewer, true
}

// Cleanup releases every watch and refuses new ones; called on shutdown
func (s *watchService) Cleanup() {
	s.logger.Info("Cleaning up watch service")

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if err := s.UnwatchAll(); err != nil {
		s.logger.Error("Error during cleanup", "error", err)
	}
}
