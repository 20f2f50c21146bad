package service

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/ajkula/logwatcher/domain/model"
	"github.com/ajkula/logwatcher/domain/port/outbound"
)

const (
	tailBufferSize = 8192
	tailLines      = 10
)

// ReadTail returns the last lines of path, reading at most tailBufferSize
// bytes from the end of a file of the given size.
func ReadTail(src outbound.FileSource, path string, size int64) (string, error) {
	if size <= 0 {
		return "", nil
	}

	bufLen := size
	if bufLen > tailBufferSize {
		bufLen = tailBufferSize
	}

	data, err := src.ReadAt(path, size-bufLen, bufLen)
	if err != nil {
		return "", fmt.Errorf("%w %s: %w", model.ErrReadTail, path, err)
	}

	return tailWindow(decodeText(data), size > bufLen), nil
}

// tailWindow keeps the last tailLines lines of data. partial means data is a
// suffix of a larger file, so its first segment may be a cut line.
func tailWindow(data string, partial bool) string {
	lines := strings.Split(data, "\n")
	if partial {
		lines = lines[1:]
	} else if len(lines) <= tailLines {
		return data
	}
	if len(lines) == 0 {
		return ""
	}

	// a trailing line feed leaves an empty last segment
	budget := tailLines
	if lines[len(lines)-1] == "" {
		budget++
	}

	if len(lines) > budget {
		lines = lines[len(lines)-budget:]
	}
	return strings.Join(lines, "\n")
}

// decodeText maps every byte to one character (ISO-8859-1). Multibyte
// sequences are not reassembled.
func decodeText(data []byte) string {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}
