package tokenizer

import "fmt"

// Encoder converts captions into sequences of exactly MaxLength ids.
//
// The sequence is [CLS] tokens... [SEP], truncated to its first MaxLength ids
// and left-padded with the padding id. Left padding keeps the end of the
// caption at position MaxLength-1. An Encoder is immutable and safe for
// concurrent use as long as its Tokenizer is.
type Encoder struct {
	tok       Tokenizer
	vocab     Vocabulary
	maxLength int
	paddingID int

	clsID int
	sepID int
	unkID int
}

// NewEncoder resolves the reserved ids of tok's vocabulary and returns an
// Encoder producing sequences of maxLength ids.
func NewEncoder(tok Tokenizer, maxLength, paddingID int) (*Encoder, error) {
	if maxLength <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLength, maxLength)
	}
	vocab := tok.Vocab()
	e := &Encoder{
		tok:       tok,
		vocab:     vocab,
		maxLength: maxLength,
		paddingID: paddingID,
	}

	specials := []struct {
		name string
		dest *int
	}{
		{ClassToken, &e.clsID},
		{SeparatorToken, &e.sepID},
		{UnknownToken, &e.unkID},
	}
	for _, s := range specials {
		id, ok := vocab.ID(s.name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingSpecialToken, s.name)
		}
		*s.dest = id
	}
	return e, nil
}

// MaxLength returns the length of every encoded sequence.
func (e *Encoder) MaxLength() int { return e.maxLength }

// PaddingID returns the id used for left padding.
func (e *Encoder) PaddingID() int { return e.paddingID }

// Encode returns the fixed-length id sequence of caption. Unknown tokens map to
// the [UNK] id.
func (e *Encoder) Encode(caption string) []int {
	tokens := e.tok.Tokenize(caption)

	ids := make([]int, 0, e.maxLength)
	ids = append(ids, e.clsID)
	for _, tok := range tokens {
		if len(ids) == e.maxLength {
			break
		}
		ids = append(ids, e.lookup(tok))
	}
	if len(ids) < e.maxLength {
		ids = append(ids, e.sepID)
	}

	if len(ids) == e.maxLength {
		return ids
	}
	out := make([]int, e.maxLength)
	pad := e.maxLength - len(ids)
	for i := 0; i < pad; i++ {
		out[i] = e.paddingID
	}
	copy(out[pad:], ids)
	return out
}

// Length returns the number of ids caption needs before truncation or padding,
// markers included.
func (e *Encoder) Length(caption string) int {
	return len(e.tok.Tokenize(caption)) + 2
}

func (e *Encoder) lookup(token string) int {
	if id, ok := e.vocab.ID(token); ok {
		return id
	}
	return e.unkID
}

// Encode is a one-shot helper around NewEncoder and Encoder.Encode.
func Encode(caption string, tok Tokenizer, maxLength, paddingID int) ([]int, error) {
	e, err := NewEncoder(tok, maxLength, paddingID)
	if err != nil {
		return nil, err
	}
	return e.Encode(caption), nil
}
