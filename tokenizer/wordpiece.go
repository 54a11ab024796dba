package tokenizer

import (
	"encoding/binary"
	"hash/fnv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// WordPiece is a BERT-style tokenizer: a basic pass that cleans text, splits on
// whitespace and punctuation, followed by greedy longest-match-first subword
// splitting against a Vocab. It holds no mutable state and is safe for
// concurrent use.
type WordPiece struct {
	vocab           *Vocab
	lowerCase       bool
	maxCharsPerWord int
	neverSplit      map[string]struct{}
}

// Option configures a WordPiece tokenizer.
type Option func(*WordPiece)

// WithLowerCase enables lower-casing and accent stripping. Defaults to true.
func WithLowerCase(lower bool) Option {
	return func(w *WordPiece) { w.lowerCase = lower }
}

// WithMaxCharsPerWord sets the length above which a word becomes [UNK]
// without attempting a split. Defaults to 100.
func WithMaxCharsPerWord(n int) Option {
	return func(w *WordPiece) {
		if n > 0 {
			w.maxCharsPerWord = n
		}
	}
}

// NewWordPiece creates a WordPiece tokenizer over vocab.
func NewWordPiece(vocab *Vocab, opts ...Option) *WordPiece {
	w := &WordPiece{
		vocab:           vocab,
		lowerCase:       true,
		maxCharsPerWord: 100,
		neverSplit: map[string]struct{}{
			ClassToken:     {},
			SeparatorToken: {},
			UnknownToken:   {},
			PaddingToken:   {},
			MaskToken:      {},
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Vocab returns the tokenizer's vocabulary.
func (w *WordPiece) Vocab() Vocabulary {
	return w.vocab
}

// Fingerprint identifies the vocabulary and the options of w.
func (w *WordPiece) Fingerprint() uint64 {
	h := fnv.New64a()
	buf := binary.LittleEndian.AppendUint64(nil, w.vocab.Fingerprint())
	buf = binary.LittleEndian.AppendUint64(buf, uint64(w.maxCharsPerWord))
	if w.lowerCase {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	h.Write(buf)
	return h.Sum64()
}

// Tokenize splits text into WordPiece tokens. Words that cannot be decomposed
// into vocabulary pieces become [UNK].
func (w *WordPiece) Tokenize(text string) []string {
	var out []string
	for _, word := range w.basicTokens(text) {
		out = append(out, w.wordPieces(word)...)
	}
	return out
}

// basicTokens runs cleaning, whitespace and punctuation splitting.
func (w *WordPiece) basicTokens(text string) []string {
	text = cleanText(text)
	text = padChineseChars(text)

	var out []string
	for _, tok := range strings.Fields(text) {
		if _, ok := w.neverSplit[tok]; ok {
			out = append(out, tok)
			continue
		}
		if w.lowerCase {
			tok = stripAccents(strings.ToLower(tok))
		}
		out = append(out, splitPunctuation(tok)...)
	}
	return out
}

func (w *WordPiece) wordPieces(word string) []string {
	chars := []rune(word)
	if len(chars) > w.maxCharsPerWord {
		return []string{UnknownToken}
	}

	var pieces []string
	start := 0
	for start < len(chars) {
		end := len(chars)
		found := ""
		for start < end {
			sub := string(chars[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if _, ok := w.vocab.ID(sub); ok {
				found = sub
				break
			}
			end--
		}
		if found == "" {
			return []string{UnknownToken}
		}
		pieces = append(pieces, found)
		start = end
	}
	return pieces
}

// cleanText drops invalid and control characters and normalizes whitespace.
func cleanText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == 0 || r == unicode.ReplacementChar || isControl(r):
			continue
		case isWhitespace(r):
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// padChineseChars surrounds CJK ideographs with spaces so each becomes a word.
func padChineseChars(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if isChineseChar(r) {
			b.WriteByte(' ')
			b.WriteRune(r)
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// stripAccents builds its transformer per call: chained transformers keep
// internal buffers and cannot be shared between goroutines.
func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func splitPunctuation(tok string) []string {
	var out []string
	var cur strings.Builder
	for _, r := range tok {
		if isPunctuation(r) {
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
			out = append(out, string(r))
			continue
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func isWhitespace(r rune) bool {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.In(r, unicode.Cc, unicode.Cf)
}

// isPunctuation treats every non-alphanumeric ASCII symbol as punctuation, like
// BERT does for characters such as "$" and "^".
func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isChineseChar(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0x2B740 && r <= 0x2B81F) ||
		(r >= 0x2B820 && r <= 0x2CEAF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x2F800 && r <= 0x2FA1F)
}
