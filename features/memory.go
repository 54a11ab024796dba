package features

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// MemoryStore is a Store over a map built by the caller. It is immutable after
// construction.
type MemoryStore struct {
	arrays map[int64]Array
	ids    *roaring64.Bitmap
}

// NewMemoryStore copies the map and its arrays into a new store, so later
// changes to arrays do not reach it.
func NewMemoryStore(arrays map[int64]Array) *MemoryStore {
	s := &MemoryStore{
		arrays: make(map[int64]Array, len(arrays)),
		ids:    roaring64.NewBitmap(),
	}
	for id, a := range arrays {
		s.arrays[id] = a.Clone()
		s.ids.Add(uint64(id))
	}
	return s
}

// Get returns the features of id.
func (s *MemoryStore) Get(id int64) (Array, error) {
	a, ok := s.arrays[id]
	if !ok {
		return Array{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return a, nil
}

// Contains reports whether id is stored.
func (s *MemoryStore) Contains(id int64) bool {
	_, ok := s.arrays[id]
	return ok
}

// IDs returns a copy of the stored id set.
func (s *MemoryStore) IDs() *roaring64.Bitmap {
	return s.ids.Clone()
}

// Len returns the number of stored arrays.
func (s *MemoryStore) Len() int {
	return len(s.arrays)
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
