package localfs

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ajkula/logwatcher/domain/port/outbound"
)

type fileSource struct{}

// NewFileSource returns a FileSource reading the local filesystem
func NewFileSource() outbound.FileSource {
	return &fileSource{}
}

func (f *fileSource) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}

func (f *fileSource) ReadAt(path string, offset, length int64) ([]byte, error) {
	if length <= 0 {
		return nil, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	buf := make([]byte, length)
	n, err := file.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return buf[:n], nil
}
