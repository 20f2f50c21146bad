package outbound

import (
	"github.com/ajkula/logwatcher/domain/model"
)

// represents a file system change event
type FileChangeEvent struct {
	FilePath  string `json:"filePath"`  // Path to the changed file
	EventType string `json:"eventType"` // Type of event: "create", "modify", "delete"
}

const (
	FileEventCreate = "create"
	FileEventModify = "modify"
	FileEventDelete = "delete"
)

// ChangeHandlers are invoked for a subscription's matching events.
// Handlers of all subscriptions run sequentially on the notifier's event loop.
type ChangeHandlers struct {
	OnCreated func()
	OnChanged func()
	OnDeleted func()
}

// defines operations for monitoring file system changes
type ChangeNotifier interface {
	// subscribes to create/modify/delete events of the entry of dir named
	// exactly name
	Subscribe(dir, name string, handlers ChangeHandlers) (model.Subscription, error)

	// stops watching all directories and releases resources
	Stop() error

	// returns true if the notifier is currently monitoring directories
	IsWatching() bool

	// returns a list of currently watched directories
	GetWatchedPaths() []string
}
