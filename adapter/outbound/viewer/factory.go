package viewer

import (
	"github.com/ajkula/logwatcher/domain/model"
	"github.com/ajkula/logwatcher/domain/port/outbound"
)

// Factory creates output channels sharing one optional console mirror
type Factory struct {
	console  *Console
	maxBytes int
}

// NewFactory builds a factory; a nil console disables mirroring and a
// non-positive maxBytes leaves buffers unbounded
func NewFactory(console *Console, maxBytes int) *Factory {
	return &Factory{console: console, maxBytes: maxBytes}
}

var _ outbound.ViewerFactory = (*Factory)(nil)

func (f *Factory) CreateViewer(name string) model.Viewer {
	return newChannel(name, f.console, f.maxBytes)
}
