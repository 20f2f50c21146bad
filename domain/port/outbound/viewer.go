package outbound

import "github.com/ajkula/logwatcher/domain/model"

// ViewerFactory creates presentation sinks
type ViewerFactory interface {
	CreateViewer(name string) model.Viewer
}
