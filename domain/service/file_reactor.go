package service

import (
	"fmt"

	"github.com/ajkula/logwatcher/domain/model"
	"github.com/ajkula/logwatcher/domain/port/outbound"
)

// fileReactor turns the created/changed/deleted signals of one watched path
// into offset updates, viewer output and lifecycle events.
type fileReactor struct {
	entry    *model.WatchEntry
	files    outbound.FileSource
	logger   outbound.Logger
	autoShow func() bool
}

func newFileReactor(
	entry *model.WatchEntry,
	files outbound.FileSource,
	logger outbound.Logger,
	autoShow func() bool,
) *fileReactor {
	return &fileReactor{
		entry:    entry,
		files:    files,
		logger:   logger,
		autoShow: autoShow,
	}
}

func (r *fileReactor) handlers() outbound.ChangeHandlers {
	return outbound.ChangeHandlers{
		OnCreated: r.onCreated,
		OnChanged: r.onChanged,
		OnDeleted: r.onDeleted,
	}
}

func (r *fileReactor) onCreated() {
	r.entry.Reconcile(func(t *model.OffsetTracker) {
		t.OnCreate()
	})

	r.logger.Debug("Watched file created", "path", r.entry.Path)
	r.entry.Events.Emit(model.EventFileCreated)
}

func (r *fileReactor) onChanged() {
	r.entry.Reconcile(func(t *model.OffsetTracker) {
		if err := r.reconcile(t); err != nil {
			r.logger.Warn("Failed to read watched file", "path", r.entry.Path, "error", err)
			r.entry.Viewer.AppendLine(fmt.Sprintf("*** Failed to read file %s: %v", r.entry.Path, err))
		}
	})

	r.reveal()
	r.entry.Events.Emit(model.EventFileChanged)
}

// reconcile delivers the bytes appended since the last offset
func (r *fileReactor) reconcile(t *model.OffsetTracker) error {
	size, err := r.files.Size(r.entry.Path)
	if err != nil {
		return err
	}

	from, delta, clamped := t.OnChange(size)
	if clamped {
		r.logger.Warn("Watched file shrank, offset clamped", "path", r.entry.Path, "size", size)
	}
	if delta <= 0 {
		return nil
	}

	data, err := r.files.ReadAt(r.entry.Path, from, delta)
	if err != nil {
		return err
	}

	t.Commit(int64(len(data)))
	r.entry.Viewer.Append(decodeText(data))
	r.logger.Debug("Delivered appended bytes", "path", r.entry.Path, "bytes", len(data), "offset", t.Offset())
	return nil
}

func (r *fileReactor) onDeleted() {
	r.entry.Reconcile(func(t *model.OffsetTracker) {
		t.OnDelete()
	})

	r.logger.Info("Watched file disappeared", "path", r.entry.Path)
	r.entry.Viewer.AppendLine(fmt.Sprintf("*** File %s has disappeared", r.entry.Path))
	r.reveal()
	r.entry.Events.Emit(model.EventFileDeleted)
}

func (r *fileReactor) reveal() {
	if r.autoShow == nil || r.autoShow() {
		r.entry.Viewer.Show(true)
	}
}
