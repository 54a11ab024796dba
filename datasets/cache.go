package datasets

import (
	"encoding/gob"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"time"
)

// captionCacheVersion is incremented when the on-disk caption cache changes.
const captionCacheVersion = 2

// ErrCacheMismatch is returned when a caption cache was built with different
// parameters or annotations than the dataset being constructed.
var ErrCacheMismatch = errors.New("caption cache mismatch")

// ErrCacheUnsupported is returned when saving captions encoded by a tokenizer
// that does not implement tokenizer.Fingerprinter.
var ErrCacheUnsupported = errors.New("caption cache needs a fingerprinted tokenizer")

// captionCacheKey identifies the inputs that produced a set of encoded
// captions.
type captionCacheKey struct {
	MaxLength   int
	PaddingID   int
	VocabSize   int
	Tokenizer   uint64 // tokenizer.Fingerprinter of the encoding tokenizer
	Records     int
	Fingerprint uint64 // FNV-1a over every caption in record order
}

// captionCacheFormat is the gob representation of the cache.
type captionCacheFormat struct {
	Version   int
	Key       captionCacheKey
	CreatedAt int64
	Captions  [][]int
}

func fingerprint(texts []string) uint64 {
	h := fnv.New64a()
	for _, t := range texts {
		h.Write([]byte(t))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// writeCaptionCache stores captions at path. The file is written to a temp file
// in the same directory and renamed into place.
func writeCaptionCache(path string, key captionCacheKey, captions [][]int) error {
	if path == "" {
		return fmt.Errorf("empty caption cache path")
	}
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp caption cache: %w", err)
	}
	tmpName := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		// no-op once the rename succeeded
		_ = os.Remove(tmpName)
	}()

	cf := captionCacheFormat{
		Version:   captionCacheVersion,
		Key:       key,
		CreatedAt: time.Now().Unix(),
		Captions:  captions,
	}
	if err := gob.NewEncoder(tmpFile).Encode(&cf); err != nil {
		return fmt.Errorf("encode caption cache: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync caption cache: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close caption cache: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename caption cache: %w", err)
	}
	return nil
}

// loadCaptionCache reads the captions at path and checks them against key. A
// missing file yields an error satisfying errors.Is(err, os.ErrNotExist).
func loadCaptionCache(path string, key captionCacheKey) ([][]int, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open caption cache %s: %w", path, err)
	}
	defer fh.Close()

	var cf captionCacheFormat
	if err := gob.NewDecoder(fh).Decode(&cf); err != nil {
		return nil, fmt.Errorf("decode caption cache %s: %w", path, err)
	}
	if cf.Version != captionCacheVersion {
		return nil, fmt.Errorf("%w: version cache=%d expected=%d", ErrCacheMismatch, cf.Version, captionCacheVersion)
	}
	if cf.Key != key {
		return nil, fmt.Errorf("%w: cache=%+v expected=%+v", ErrCacheMismatch, cf.Key, key)
	}
	if len(cf.Captions) != key.Records {
		return nil, fmt.Errorf("%w: %d captions, expected %d", ErrCacheMismatch, len(cf.Captions), key.Records)
	}
	for i, c := range cf.Captions {
		if len(c) != key.MaxLength {
			return nil, fmt.Errorf("%w: caption %d has length %d, expected %d", ErrCacheMismatch, i, len(c), key.MaxLength)
		}
	}
	return cf.Captions, nil
}
