package inbound

import (
	"context"
	"time"

	"github.com/ajkula/logwatcher/domain/model"
)

// WatchOptions tunes a Watch call
type WatchOptions struct {
	// Quiet suppresses revealing the viewer
	Quiet bool
}

// WatchStatus describes one active watch
type WatchStatus struct {
	Path      string    `json:"path"`
	Offset    int64     `json:"offset"`
	Listeners int       `json:"listeners"`
	CreatedAt time.Time `json:"createdAt"`
}

// WatchService is the contract boundary adapters drive
type WatchService interface {
	// Watch starts tailing path, or returns the existing watch's event sink
	Watch(ctx context.Context, path string, opts WatchOptions) (*model.EventSink, error)

	// WatchPreset watches one of the configured well-known paths
	WatchPreset(ctx context.Context, name string, opts WatchOptions) (*model.EventSink, error)

	// Presets returns the configured preset names and their paths
	Presets() map[string]string

	// Unwatch stops watching path
	Unwatch(path string) error

	// UnwatchAll stops every watch
	UnwatchAll() error

	// ListWatched returns the watched paths in the order they were added
	ListWatched() []string

	// Status reports every active watch
	Status() []WatchStatus

	// Viewer returns the presentation sink of a watched path
	Viewer(path string) (model.Viewer, bool)
}
