package tokenizer

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"strings"
)

// Vocab is a WordPiece vocabulary. Token ids are line numbers of the vocab.txt
// file it was read from, starting at 0.
type Vocab struct {
	tokens []string
	ids    map[string]int
}

// NewVocab builds a Vocab where the id of each token is its position. When a
// token appears twice the first position wins.
func NewVocab(tokens []string) *Vocab {
	v := &Vocab{
		tokens: make([]string, len(tokens)),
		ids:    make(map[string]int, len(tokens)),
	}
	copy(v.tokens, tokens)
	for i, tok := range tokens {
		if _, ok := v.ids[tok]; !ok {
			v.ids[tok] = i
		}
	}
	return v
}

// LoadVocab reads a vocab.txt file.
func LoadVocab(path string) (*Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	defer f.Close()

	v, err := ReadVocab(f)
	if err != nil {
		return nil, fmt.Errorf("vocab %s: %w", path, err)
	}
	return v, nil
}

// ReadVocab reads one token per line from r.
func ReadVocab(r io.Reader) (*Vocab, error) {
	var tokens []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		tokens = append(tokens, strings.TrimRight(scanner.Text(), " \t\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("vocabulary is empty")
	}
	return NewVocab(tokens), nil
}

// ID returns the id of token.
func (v *Vocab) ID(token string) (int, bool) {
	id, ok := v.ids[token]
	return id, ok
}

// Token returns the token with the given id.
func (v *Vocab) Token(id int) (string, bool) {
	if id < 0 || id >= len(v.tokens) {
		return "", false
	}
	return v.tokens[id], true
}

// Size returns the number of entries, duplicates included.
func (v *Vocab) Size() int {
	return len(v.tokens)
}

// PadID returns the id of [PAD], or 0 when the vocabulary has none.
func PadID(v Vocabulary) int {
	if id, ok := v.ID(PaddingToken); ok {
		return id
	}
	return 0
}

// Fingerprint hashes every token together with its position.
func (v *Vocab) Fingerprint() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for i, tok := range v.tokens {
		binary.LittleEndian.PutUint64(buf[:], uint64(i))
		h.Write(buf[:])
		h.Write([]byte(tok))
		h.Write([]byte{0})
	}
	return h.Sum64()
}
