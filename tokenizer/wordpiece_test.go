package tokenizer

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
)

var bertTokens = []string{
	"[PAD]", "[UNK]", "[CLS]", "[SEP]", "[MASK]",
	"un", "##aff", "##able", "want", "##want", "##ed", "wa", "runn", "##ing",
	",", ".", "!", "hello", "world", "cafe", "a", "dog", "the", "中", "国",
}

func writeVocab(t *testing.T, tokens []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocab.txt")
	if err := os.WriteFile(path, []byte(strings.Join(tokens, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("failed to write vocab: %v", err)
	}
	return path
}

func TestLoadVocab(t *testing.T) {
	v, err := LoadVocab(writeVocab(t, bertTokens))
	if err != nil {
		t.Fatalf("LoadVocab failed: %v", err)
	}
	if v.Size() != len(bertTokens) {
		t.Fatalf("expected %d tokens, got %d", len(bertTokens), v.Size())
	}
	if id, ok := v.ID("[CLS]"); !ok || id != 2 {
		t.Fatalf("[CLS]: got (%d, %v) want (2, true)", id, ok)
	}
	if tok, ok := v.Token(5); !ok || tok != "un" {
		t.Fatalf("Token(5): got (%q, %v)", tok, ok)
	}
	if _, ok := v.Token(len(bertTokens)); ok {
		t.Fatalf("Token out of range should report false")
	}
	if PadID(v) != 0 {
		t.Fatalf("PadID: expected 0")
	}
}

func TestLoadVocab_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.txt")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadVocab(path); err == nil {
		t.Fatalf("expected error for empty vocab")
	}
}

func TestNewVocab_FirstDuplicateWins(t *testing.T) {
	v := NewVocab([]string{"a", "b", "a"})
	if id, _ := v.ID("a"); id != 0 {
		t.Fatalf("expected first position 0, got %d", id)
	}
	if v.Size() != 3 {
		t.Fatalf("Size should count every line, got %d", v.Size())
	}
}

func TestWordPiece_Tokenize(t *testing.T) {
	tok := NewWordPiece(NewVocab(bertTokens))

	cases := []struct {
		text string
		want []string
	}{
		{"unaffable", []string{"un", "##aff", "##able"}},
		{"UNwantéd,running", []string{"un", "##want", "##ed", ",", "runn", "##ing"}},
		{"Hello  World!", []string{"hello", "world", "!"}},
		{"Café", []string{"cafe"}},
		{"a zebra", []string{"a", "[UNK]"}},
		{"[CLS] the dog [SEP]", []string{"[CLS]", "the", "dog", "[SEP]"}},
		{"中国", []string{"中", "国"}},
		{"a\u0000\tdog\u200b", []string{"a", "dog"}},
		{"", nil},
	}
	for _, c := range cases {
		got := tok.Tokenize(c.text)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestWordPiece_CaseSensitive(t *testing.T) {
	tok := NewWordPiece(NewVocab(bertTokens), WithLowerCase(false))
	got := tok.Tokenize("Hello hello")
	want := []string{"[UNK]", "hello"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestWordPiece_MaxCharsPerWord(t *testing.T) {
	tok := NewWordPiece(NewVocab(bertTokens), WithMaxCharsPerWord(4))
	got := tok.Tokenize("hello dog")
	want := []string{"[UNK]", "dog"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestWordPiece_EncodesWithEncoder(t *testing.T) {
	tok := NewWordPiece(NewVocab(bertTokens))
	ids, err := Encode("unaffable!", tok, 8, 0)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	// [PAD] [PAD] [CLS] un ##aff ##able ! [SEP]
	want := []int{0, 0, 2, 5, 6, 7, 16, 3}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("got %v want %v", ids, want)
	}
}

func TestWordPiece_ConcurrentUse(t *testing.T) {
	tok := NewWordPiece(NewVocab(bertTokens))
	want := tok.Tokenize("Café unaffable, running")

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if got := tok.Tokenize("Café unaffable, running"); !reflect.DeepEqual(got, want) {
					errs <- strings.Join(got, " ")
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Fatalf("concurrent tokenize mismatch: %s", e)
	}
}

func TestWordPiece_Fingerprint(t *testing.T) {
	base := NewWordPiece(NewVocab(bertTokens)).Fingerprint()
	if again := NewWordPiece(NewVocab(bertTokens)).Fingerprint(); again != base {
		t.Fatalf("fingerprint is not stable: %x vs %x", base, again)
	}

	swapped := append([]string{}, bertTokens...)
	swapped[5], swapped[6] = swapped[6], swapped[5]
	renamed := append([]string{}, bertTokens...)
	renamed[len(renamed)-1] = "国国"

	others := map[string]*WordPiece{
		"cased":         NewWordPiece(NewVocab(bertTokens), WithLowerCase(false)),
		"max chars":     NewWordPiece(NewVocab(bertTokens), WithMaxCharsPerWord(4)),
		"reordered":     NewWordPiece(NewVocab(swapped)),
		"renamed token": NewWordPiece(NewVocab(renamed)),
		"extra token":   NewWordPiece(NewVocab(append(append([]string{}, bertTokens...), "zebra"))),
	}
	for name, tok := range others {
		if tok.Fingerprint() == base {
			t.Errorf("%s: fingerprint should differ", name)
		}
	}

	var _ Fingerprinter = (*WordPiece)(nil)
}
