//go:build !unix

package mmap

import (
	"io"
	"os"
)

// osMap falls back to reading the whole file on platforms without mmap support.
func osMap(f *os.File, size int) ([]byte, func([]byte) error, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, nil, err
	}
	return data, nil, nil
}
