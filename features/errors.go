package features

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrNotFound is returned when an image id has no features in the store.
	// It also satisfies errors.Is(err, os.ErrNotExist).
	ErrNotFound = fmt.Errorf("features: image id not found: %w", os.ErrNotExist)
	// ErrCorrupt is returned when a store file violates the format.
	ErrCorrupt = errors.New("features: corrupt store")
	// ErrClosed is returned by operations on a closed store or writer.
	ErrClosed = errors.New("features: closed")
	// ErrDuplicateID is returned when the same image id is written twice.
	ErrDuplicateID = errors.New("features: duplicate image id")
	// ErrShape is returned for arrays whose shape does not match their data.
	ErrShape = errors.New("features: invalid shape")
)
