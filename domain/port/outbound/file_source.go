package outbound

// FileSource gives the domain read access to watched files
type FileSource interface {
	// Size returns the current size of path; a missing file yields an error
	// matching fs.ErrNotExist
	Size(path string) (int64, error)

	// ReadAt reads up to length bytes starting at offset. A file shorter than
	// offset+length yields the bytes that exist, without error.
	ReadAt(path string, offset, length int64) ([]byte, error)
}
