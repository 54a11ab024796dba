// Package features stores pre-extracted image region features keyed by image id.
//
// A store is a single file of compressed blocks followed by an index. It can be
// opened fully in memory, decoding every array up front, or lazily, memory
// mapping the file and decoding arrays on each lookup.
package features

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"golang.org/x/sync/errgroup"

	"github.com/Noofbiz/vldata/internal/mmap"
)

// Store resolves image ids to feature arrays. Implementations must be safe for
// concurrent reads. Returned arrays are shared and must not be modified.
type Store interface {
	// Get returns the features of id, or an error wrapping ErrNotFound.
	Get(id int64) (Array, error)
	// Contains reports whether id has features in the store.
	Contains(id int64) bool
	// IDs returns a copy of the set of stored ids.
	IDs() *roaring64.Bitmap
	// Len returns the number of stored arrays.
	Len() int
	Close() error
}

type openOptions struct {
	inMemory     bool
	cacheEntries int
	workers      int
}

// OpenOption configures Open.
type OpenOption func(*openOptions)

// WithInMemory decodes every array when the store is opened. Defaults to true.
// When false the file is memory mapped and arrays are decoded per Get.
func WithInMemory(inMemory bool) OpenOption {
	return func(o *openOptions) { o.inMemory = inMemory }
}

// WithCacheEntries keeps up to n decoded arrays in an LRU cache. Only used by
// lazy stores. Defaults to 0 (no cache).
func WithCacheEntries(n int) OpenOption {
	return func(o *openOptions) { o.cacheEntries = n }
}

// WithWorkers bounds the number of goroutines decoding an in-memory store.
// Defaults to runtime.NumCPU().
func WithWorkers(n int) OpenOption {
	return func(o *openOptions) { o.workers = n }
}

// FileStore is a Store backed by a store file.
type FileStore struct {
	path        string
	compression Compression
	index       map[int64]indexEntry
	ids         *roaring64.Bitmap

	// in-memory mode
	arrays map[int64]Array

	// lazy mode
	mapping *mmap.Mapping
	cache   *arrayCache

	closed atomic.Bool
}

// Open opens the store file at path.
func Open(path string, opts ...OpenOption) (*FileStore, error) {
	o := openOptions{inMemory: true, workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers <= 0 {
		o.workers = 1
	}

	if o.inMemory {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("open feature store %s: %w", path, err)
		}
		s, entries, err := newFileStore(path, data)
		if err != nil {
			return nil, err
		}
		if err := s.decodeAll(data, entries, o.workers); err != nil {
			return nil, fmt.Errorf("feature store %s: %w", path, err)
		}
		return s, nil
	}

	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feature store %s: %w", path, err)
	}
	s, _, err := newFileStore(path, m.Bytes())
	if err != nil {
		m.Close()
		return nil, err
	}
	s.mapping = m
	if o.cacheEntries > 0 {
		s.cache = newArrayCache(o.cacheEntries)
	}
	return s, nil
}

func newFileStore(path string, data []byte) (*FileStore, []indexEntry, error) {
	f, err := parseFooter(data)
	if err != nil {
		return nil, nil, fmt.Errorf("feature store %s: %w", path, err)
	}
	entries, err := parseIndex(data, f)
	if err != nil {
		return nil, nil, fmt.Errorf("feature store %s: %w", path, err)
	}

	s := &FileStore{
		path:        path,
		compression: f.compression,
		index:       make(map[int64]indexEntry, len(entries)),
		ids:         roaring64.NewBitmap(),
	}
	for _, e := range entries {
		if _, ok := s.index[e.id]; ok {
			return nil, nil, fmt.Errorf("feature store %s: %w: image %d indexed twice", path, ErrCorrupt, e.id)
		}
		s.index[e.id] = e
		s.ids.Add(uint64(e.id))
	}
	return s, entries, nil
}

// decodeAll decodes every block of data in parallel. Each worker handles a
// contiguous chunk of entries and writes distinct slots of arrays.
func (s *FileStore) decodeAll(data []byte, entries []indexEntry, workers int) error {
	arrays := make([]Array, len(entries))
	chunk := (len(entries) + workers - 1) / workers
	if chunk == 0 {
		chunk = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < len(entries); start += chunk {
		end := min(start+chunk, len(entries))
		g.Go(func() error {
			for i := start; i < end; i++ {
				a, err := s.decode(data, entries[i])
				if err != nil {
					return err
				}
				arrays[i] = a
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.arrays = make(map[int64]Array, len(entries))
	for i, e := range entries {
		s.arrays[e.id] = arrays[i]
	}
	return nil
}

func (s *FileStore) decode(data []byte, e indexEntry) (Array, error) {
	block := data[e.offset : e.offset+uint64(e.length)]
	payload, err := decompressBlock(block, s.compression)
	if err != nil {
		return Array{}, fmt.Errorf("image %d: %w", e.id, err)
	}
	a, err := decodeArray(payload)
	if err != nil {
		return Array{}, fmt.Errorf("image %d: %w", e.id, err)
	}
	return a, nil
}

// Get returns the features of id.
func (s *FileStore) Get(id int64) (Array, error) {
	if s.closed.Load() {
		return Array{}, ErrClosed
	}
	if s.arrays != nil {
		a, ok := s.arrays[id]
		if !ok {
			return Array{}, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return a, nil
	}

	e, ok := s.index[id]
	if !ok {
		return Array{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if s.cache != nil {
		if a, ok := s.cache.get(id); ok {
			return a, nil
		}
	}
	data := s.mapping.Bytes()
	if data == nil {
		return Array{}, ErrClosed
	}
	a, err := s.decode(data, e)
	if err != nil {
		return Array{}, err
	}
	if s.cache != nil {
		s.cache.set(id, a)
	}
	return a, nil
}

// Contains reports whether id is stored.
func (s *FileStore) Contains(id int64) bool {
	return s.ids.Contains(uint64(id))
}

// IDs returns a copy of the stored id set.
func (s *FileStore) IDs() *roaring64.Bitmap {
	return s.ids.Clone()
}

// Len returns the number of stored arrays.
func (s *FileStore) Len() int {
	return len(s.index)
}

// InMemory reports whether arrays were decoded when the store was opened.
func (s *FileStore) InMemory() bool {
	return s.arrays != nil
}

// Compression returns the block compression of the file.
func (s *FileStore) Compression() Compression {
	return s.compression
}

// CacheStats returns LRU hits and misses of a lazy store.
func (s *FileStore) CacheStats() (hits, misses int64) {
	if s.cache == nil {
		return 0, 0
	}
	return s.cache.hits.Load(), s.cache.misses.Load()
}

// Close releases the store. Get fails with ErrClosed afterwards.
func (s *FileStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.mapping != nil {
		return s.mapping.Close()
	}
	return nil
}
