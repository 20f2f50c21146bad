package memory

import (
	"errors"
	"sync"

	"github.com/ajkula/logwatcher/domain/model"
	"github.com/ajkula/logwatcher/domain/port/outbound"
)

type WatchRegistry struct {
	// Map of entries by canonical path
	entries map[string]*model.WatchEntry

	// Paths in insertion order
	order []string

	mu sync.RWMutex
}

func NewWatchRegistry() outbound.WatchRegistry {
	return &WatchRegistry{
		entries: make(map[string]*model.WatchEntry),
	}
}

func (r *WatchRegistry) Add(entry *model.WatchEntry) bool {
	if entry == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[entry.Path]; exists {
		return false
	}

	r.entries[entry.Path] = entry
	r.order = append(r.order, entry.Path)
	return true
}

func (r *WatchRegistry) Get(path string) (*model.WatchEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[path]
	return entry, exists
}

func (r *WatchRegistry) Remove(path string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[path]
	if !exists {
		return false, nil
	}

	// Release before unregistering; readers never see a half-released entry
	// since they are locked out until both are done
	err := entry.Release()

	delete(r.entries, path)
	for i, p := range r.order {
		if p == path {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return true, err
}

func (r *WatchRegistry) RemoveAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, path := range r.order {
		if err := r.entries[path].Release(); err != nil {
			errs = append(errs, err)
		}
	}

	r.entries = make(map[string]*model.WatchEntry)
	r.order = nil

	return errors.Join(errs...)
}

func (r *WatchRegistry) ListPaths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, len(r.order))
	copy(paths, r.order)
	return paths
}
