package model

import "errors"

var (
	ErrReadTail      = errors.New("failed to read file tail")
	ErrNotWatching   = errors.New("path is not being watched")
	ErrUnknownPreset = errors.New("unknown watch preset")
	ErrServiceClosed = errors.New("watch service is closed")
	ErrEmptyPath     = errors.New("path is required")
)
