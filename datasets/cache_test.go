package datasets

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Noofbiz/vldata/tokenizer"
)

func TestCaptionCache_RoundTrip(t *testing.T) {
	tmp := t.TempDir()
	annPath := writeFile(t, tmp, "ann.json", foilAnnotations)
	featPath := writeFeatures(t, tmp, 1, 2, 3)
	cachePath := filepath.Join(tmp, "cache", "captions.gob")

	first, err := NewFoilClassificationDataset(annPath, featPath, testTokenizer(),
		WithEntryMode(EntryPerCaption), WithCaptionCache(cachePath))
	if err != nil {
		t.Fatalf("first construction failed: %v", err)
	}
	defer first.Close()
	if _, err := os.Stat(cachePath); err != nil {
		t.Fatalf("cache was not written: %v", err)
	}

	captions, err := loadCaptionCache(cachePath, first.cacheKey)
	if err != nil {
		t.Fatalf("loadCaptionCache failed: %v", err)
	}
	if !reflect.DeepEqual(captions, first.captions) {
		t.Fatalf("cached captions differ from encoded ones")
	}

	second, err := NewFoilClassificationDataset(annPath, featPath, testTokenizer(),
		WithEntryMode(EntryPerCaption), WithCaptionCache(cachePath))
	if err != nil {
		t.Fatalf("second construction failed: %v", err)
	}
	defer second.Close()
	for i := range first.Len() {
		a, _ := first.Get(i)
		b, _ := second.Get(i)
		if !reflect.DeepEqual(a.Caption, b.Caption) {
			t.Fatalf("entry %d: %v vs %v", i, a.Caption, b.Caption)
		}
	}
}

func TestCaptionCache_Mismatch(t *testing.T) {
	tmp := t.TempDir()
	annPath := writeFile(t, tmp, "ann.json", foilAnnotations)
	featPath := writeFeatures(t, tmp, 1, 2, 3)
	cachePath := filepath.Join(tmp, "captions.gob")

	ds, err := NewFoilClassificationDataset(annPath, featPath, testTokenizer(), WithMaxCaptionLength(8))
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	defer ds.Close()
	if err := ds.SaveCaptionCache(cachePath); err != nil {
		t.Fatalf("SaveCaptionCache failed: %v", err)
	}

	key := ds.cacheKey
	key.MaxLength = 10
	if _, err := loadCaptionCache(cachePath, key); !errors.Is(err, ErrCacheMismatch) {
		t.Fatalf("expected ErrCacheMismatch for max length, got %v", err)
	}
	key = ds.cacheKey
	key.Fingerprint++
	if _, err := loadCaptionCache(cachePath, key); !errors.Is(err, ErrCacheMismatch) {
		t.Fatalf("expected ErrCacheMismatch for fingerprint, got %v", err)
	}

	// A stale cache is ignored and overwritten with the new parameters.
	rebuilt, err := NewFoilClassificationDataset(annPath, featPath, testTokenizer(),
		WithMaxCaptionLength(10), WithCaptionCache(cachePath))
	if err != nil {
		t.Fatalf("construction with stale cache failed: %v", err)
	}
	defer rebuilt.Close()
	s, _ := rebuilt.Get(0)
	if len(s.Caption) != 10 {
		t.Fatalf("expected re-encoded caption of length 10, got %d", len(s.Caption))
	}
	if _, err := loadCaptionCache(cachePath, rebuilt.cacheKey); err != nil {
		t.Fatalf("cache should have been rewritten: %v", err)
	}
}

func TestCaptionCache_Missing(t *testing.T) {
	_, err := loadCaptionCache(filepath.Join(t.TempDir(), "none.gob"), captionCacheKey{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

var testVocabTokens = []string{
	"[PAD]", "[UNK]", "[CLS]", "[SEP]", "a", "dog", "cat", "runs", "on", "the", "grass",
}

func TestCaptionCache_TokenizerChange(t *testing.T) {
	tmp := t.TempDir()
	annPath := writeFile(t, tmp, "ann.json", `{"annotations":[{"image_id":1,"caption":"A Dog","foil":false}]}`)
	featPath := writeFeatures(t, tmp, 1)
	cachePath := filepath.Join(tmp, "captions.gob")

	build := func(tok tokenizer.Tokenizer) []int {
		t.Helper()
		ds, err := NewFoilClassificationDataset(annPath, featPath, tok,
			WithMaxCaptionLength(5), WithCaptionCache(cachePath))
		if err != nil {
			t.Fatalf("construction failed: %v", err)
		}
		defer ds.Close()
		s, err := ds.Get(0)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		return s.Caption
	}

	lower := tokenizer.NewWordPiece(tokenizer.NewVocab(testVocabTokens))
	if got, want := build(lower), []int{0, 2, 4, 5, 3}; !reflect.DeepEqual(got, want) {
		t.Fatalf("lower-cased: got %v want %v", got, want)
	}

	cased := tokenizer.NewWordPiece(tokenizer.NewVocab(testVocabTokens), tokenizer.WithLowerCase(false))
	if got, want := build(cased), []int{0, 2, 1, 1, 3}; !reflect.DeepEqual(got, want) {
		t.Fatalf("cased tokenizer reused cached captions: got %v want %v", got, want)
	}

	// Same size, different ids.
	swapped := append([]string{}, testVocabTokens...)
	swapped[4], swapped[5] = swapped[5], swapped[4]
	other := tokenizer.NewWordPiece(tokenizer.NewVocab(swapped))
	if got, want := build(other), []int{0, 2, 5, 4, 3}; !reflect.DeepEqual(got, want) {
		t.Fatalf("reordered vocab reused cached captions: got %v want %v", got, want)
	}
}

// plainTokenizer hides the Fingerprint method of the wrapped tokenizer.
type plainTokenizer struct {
	tokenizer.Tokenizer
}

func TestCaptionCache_TokenizerWithoutFingerprint(t *testing.T) {
	tmp := t.TempDir()
	annPath := writeFile(t, tmp, "ann.json", foilAnnotations)
	featPath := writeFeatures(t, tmp, 1, 2, 3)
	cachePath := filepath.Join(tmp, "captions.gob")

	ds, err := NewFoilClassificationDataset(annPath, featPath, plainTokenizer{testTokenizer()},
		WithCaptionCache(cachePath))
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	defer ds.Close()
	if _, err := os.Stat(cachePath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("cache should not be written, stat: %v", err)
	}
	if err := ds.SaveCaptionCache(cachePath); !errors.Is(err, ErrCacheUnsupported) {
		t.Fatalf("expected ErrCacheUnsupported, got %v", err)
	}
	if ds.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", ds.Len())
	}
}
