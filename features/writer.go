package features

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// Writer appends feature arrays to a store file. Close must be called to write
// the index; a store without an index cannot be opened.
type Writer struct {
	w           io.Writer
	compression Compression
	offset      uint64
	entries     []indexEntry
	seen        map[int64]struct{}
	closed      bool

	// set by Create: the temp file being written and its final path.
	file *os.File
	path string
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithCompression selects the block compression. Defaults to CompressionLZ4.
func WithCompression(c Compression) WriterOption {
	return func(w *Writer) { w.compression = c }
}

// NewWriter returns a Writer streaming to w. Close does not close w.
func NewWriter(w io.Writer, opts ...WriterOption) *Writer {
	wr := &Writer{
		w:           w,
		compression: CompressionLZ4,
		seen:        make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(wr)
	}
	return wr
}

// Create writes a store file at path. Data goes to a temp file in the same
// directory that is renamed over path on Close, so readers never observe a
// partial store.
func Create(path string, opts ...WriterOption) (*Writer, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return nil, fmt.Errorf("create temp store file: %w", err)
	}
	w := NewWriter(tmp, opts...)
	w.file = tmp
	w.path = path
	return w, nil
}

// Add writes the features of one image.
func (w *Writer) Add(id int64, a Array) error {
	if w.closed {
		return ErrClosed
	}
	if _, ok := w.seen[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}
	payload, err := encodeArray(a)
	if err != nil {
		return fmt.Errorf("image %d: %w", id, err)
	}
	block, err := compressBlock(payload, w.compression)
	if err != nil {
		return fmt.Errorf("image %d: %w", id, err)
	}
	if uint64(len(block)) > math.MaxUint32 {
		return fmt.Errorf("image %d: block of %d bytes too large", id, len(block))
	}
	if _, err := w.w.Write(block); err != nil {
		return fmt.Errorf("write image %d: %w", id, err)
	}
	w.entries = append(w.entries, indexEntry{id: id, offset: w.offset, length: uint32(len(block))})
	w.seen[id] = struct{}{}
	w.offset += uint64(len(block))
	return nil
}

// Len returns the number of arrays written so far.
func (w *Writer) Len() int {
	return len(w.entries)
}

// Close writes the index and footer. For writers made by Create it also syncs
// the temp file and renames it into place.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if uint64(len(w.entries)) > math.MaxUint32 {
		w.discard()
		return fmt.Errorf("too many arrays: %d", len(w.entries))
	}
	tail := make([]byte, 0, len(w.entries)*indexEntrySize+footerSize)
	for _, e := range w.entries {
		tail = appendIndexEntry(tail, e)
	}
	tail = appendFooter(tail, footer{
		indexOffset: w.offset,
		count:       uint32(len(w.entries)),
		compression: w.compression,
		version:     formatVersion,
	})
	if _, err := w.w.Write(tail); err != nil {
		w.discard()
		return fmt.Errorf("write index: %w", err)
	}

	if w.file == nil {
		return nil
	}
	if err := w.file.Sync(); err != nil {
		w.discard()
		return fmt.Errorf("sync store file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		_ = os.Remove(w.file.Name())
		return fmt.Errorf("close store file: %w", err)
	}
	if err := os.Rename(w.file.Name(), w.path); err != nil {
		_ = os.Remove(w.file.Name())
		return fmt.Errorf("rename store file: %w", err)
	}
	return nil
}

// Abort drops everything written by a Create writer. It is a no-op for writers
// that were already closed.
func (w *Writer) Abort() {
	if w.closed {
		return
	}
	w.closed = true
	w.discard()
}

func (w *Writer) discard() {
	if w.file == nil {
		return
	}
	w.file.Close()
	_ = os.Remove(w.file.Name())
}
