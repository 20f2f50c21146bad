package outbound

import "github.com/ajkula/logwatcher/domain/model"

// WatchRegistry holds the active watch entries keyed by canonical path.
// Mutations are atomic to concurrent readers.
type WatchRegistry interface {
	// Add inserts entry; false if its path is already registered
	Add(entry *model.WatchEntry) bool

	// Get returns the entry registered for path
	Get(path string) (*model.WatchEntry, bool)

	// Remove releases the entry's resources and unregisters it.
	// Reports whether an entry existed.
	Remove(path string) (bool, error)

	// RemoveAll releases every entry in insertion order, then clears the registry
	RemoveAll() error

	// ListPaths returns the registered paths in insertion order
	ListPaths() []string
}
