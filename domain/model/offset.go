package model

// OffsetTracker is the byte cursor of a watched file: everything before
// Offset() has already been delivered to the viewer.
// It performs no I/O; callers hold the owning entry's lock.
type OffsetTracker struct {
	offset int64
}

func NewOffsetTracker(initial int64) OffsetTracker {
	if initial < 0 {
		initial = 0
	}
	return OffsetTracker{offset: initial}
}

func (t *OffsetTracker) Offset() int64 {
	return t.offset
}

// OnCreate resets the cursor: a recreated file starts from byte zero.
func (t *OffsetTracker) OnCreate() {
	t.offset = 0
}

// OnDelete resets the cursor.
func (t *OffsetTracker) OnDelete() {
	t.offset = 0
}

// OnChange returns the range [from, from+delta) that has not been delivered
// yet for a file of the given size. A delta <= 0 means nothing to read.
//
// When the file shrank below the cursor (truncated in place, no delete event)
// the cursor is clamped to the new size and clamped is true, so output
// resumes as soon as the file grows again.
func (t *OffsetTracker) OnChange(size int64) (from, delta int64, clamped bool) {
	if size < t.offset {
		if size < 0 {
			size = 0
		}
		t.offset = size
		clamped = true
	}
	return t.offset, size - t.offset, clamped
}

// Commit advances the cursor by the number of bytes actually delivered.
func (t *OffsetTracker) Commit(n int64) {
	if n > 0 {
		t.offset += n
	}
}
