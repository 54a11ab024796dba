// Package tokenizer turns captions into fixed-length integer sequences.
//
// The Tokenizer interface is the only capability the datasets need: split text
// into subword strings and look those strings up in a vocabulary. WordPiece is
// the default implementation, compatible with BERT vocab.txt files.
package tokenizer

import "errors"

// Reserved tokens. An Encoder requires [CLS], [SEP] and [UNK] in its vocabulary.
const (
	ClassToken     = "[CLS]"
	SeparatorToken = "[SEP]"
	UnknownToken   = "[UNK]"
	PaddingToken   = "[PAD]"
	MaskToken      = "[MASK]"
)

var (
	// ErrMissingSpecialToken is returned when a vocabulary lacks a reserved token.
	ErrMissingSpecialToken = errors.New("tokenizer: vocabulary is missing a special token")
	// ErrInvalidLength is returned for non-positive maximum lengths.
	ErrInvalidLength = errors.New("tokenizer: max length must be positive")
)

// Vocabulary maps token strings to integer ids.
type Vocabulary interface {
	// ID returns the id of token and whether it is known.
	ID(token string) (int, bool)
	// Size returns the number of tokens.
	Size() int
}

// Tokenizer splits text into subword tokens drawn from its Vocabulary.
//
// Implementations used with parallel encoding must be safe for concurrent use.
type Tokenizer interface {
	Tokenize(text string) []string
	Vocab() Vocabulary
}

// Fingerprinter is implemented by tokenizers that can identify their
// vocabulary and settings. Equal fingerprints mean equal encodings, which lets
// callers reuse previously encoded text.
type Fingerprinter interface {
	Fingerprint() uint64
}
