package datasets

import (
	"errors"
	"fmt"
)

// ErrOutOfRange is matched by every *OutOfRangeError.
var ErrOutOfRange = errors.New("index out of range")

// OutOfRangeError reports an index outside [0, Len).
type OutOfRangeError struct {
	Index int
	Len   int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("index %d out of range [0, %d)", e.Index, e.Len)
}

func (e *OutOfRangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

func checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return &OutOfRangeError{Index: i, Len: n}
	}
	return nil
}
