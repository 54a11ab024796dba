package tokenizer

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

// spaceTokenizer splits on whitespace and never produces subwords.
type spaceTokenizer struct {
	vocab *Vocab
}

func (s spaceTokenizer) Tokenize(text string) []string { return strings.Fields(text) }
func (s spaceTokenizer) Vocab() Vocabulary { return s.vocab }

// testVocab ids: [PAD]=0 [UNK]=1 [CLS]=2 [SEP]=3 a=4 dog=5 cat=6 runs=7
func testVocab() *Vocab {
	return NewVocab([]string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "a", "dog", "cat", "runs"})
}

func TestEncode_LeftPadsShortCaptions(t *testing.T) {
	tok := spaceTokenizer{vocab: testVocab()}

	got, err := Encode("a dog", tok, 6, 0)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	want := []int{0, 0, 2, 4, 5, 3}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestEncode_CustomPaddingID(t *testing.T) {
	tok := spaceTokenizer{vocab: testVocab()}

	got, err := Encode("cat", tok, 5, -1)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	want := []int{-1, -1, 2, 6, 3}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestEncode_TruncatesKeepingPrefix(t *testing.T) {
	tok := spaceTokenizer{vocab: testVocab()}

	got, err := Encode("a dog runs a cat", tok, 4, 0)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	// [CLS] a dog runs; the end marker is dropped with the tail.
	want := []int{2, 4, 5, 7}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestEncode_ExactFitKeepsSeparator(t *testing.T) {
	tok := spaceTokenizer{vocab: testVocab()}

	got, err := Encode("a dog", tok, 4, 0)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	want := []int{2, 4, 5, 3}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestEncode_UnknownTokensMapToUNK(t *testing.T) {
	tok := spaceTokenizer{vocab: testVocab()}

	got, err := Encode("a zebra", tok, 5, 0)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	want := []int{0, 2, 4, 1, 3}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestEncode_LengthAlwaysMaxLength(t *testing.T) {
	tok := spaceTokenizer{vocab: testVocab()}
	captions := []string{"", "a", "a dog", "a dog runs", strings.Repeat("cat ", 50)}

	for maxLen := 1; maxLen <= 25; maxLen++ {
		enc, err := NewEncoder(tok, maxLen, 0)
		if err != nil {
			t.Fatalf("NewEncoder(%d) failed: %v", maxLen, err)
		}
		for _, c := range captions {
			if got := len(enc.Encode(c)); got != maxLen {
				t.Fatalf("caption %q maxLen %d: got length %d", c, maxLen, got)
			}
		}
	}
}

func TestEncode_Deterministic(t *testing.T) {
	tok := NewWordPiece(testVocab())
	enc, err := NewEncoder(tok, 8, 0)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}
	first := enc.Encode("A dog runs!")
	for i := 0; i < 10; i++ {
		if got := enc.Encode("A dog runs!"); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d: got %v want %v", i, got, first)
		}
	}
}

func TestNewEncoder_Errors(t *testing.T) {
	tok := spaceTokenizer{vocab: testVocab()}
	if _, err := NewEncoder(tok, 0, 0); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}

	noUNK := spaceTokenizer{vocab: NewVocab([]string{"[CLS]", "[SEP]", "a"})}
	if _, err := NewEncoder(noUNK, 5, 0); !errors.Is(err, ErrMissingSpecialToken) {
		t.Fatalf("expected ErrMissingSpecialToken, got %v", err)
	}
}

func TestEncoder_Length(t *testing.T) {
	enc, err := NewEncoder(spaceTokenizer{vocab: testVocab()}, 3, 0)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}
	if got := enc.Length("a dog runs"); got != 5 {
		t.Fatalf("expected untruncated length 5, got %d", got)
	}
}
