package annotations

import (
	"errors"
	"fmt"
)

// ErrParse matches every *ParseError via errors.Is.
var ErrParse = errors.New("annotations: parse error")

// ParseError reports a malformed annotation document.
//
// The underlying decoding error (if any) can be accessed via errors.Unwrap.
type ParseError struct {
	// Path is the file the document was read from, empty for streams.
	Path  string
	Msg   string
	cause error
}

func (e *ParseError) Error() string {
	msg := e.Msg
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.Path != "" {
		return fmt.Sprintf("annotations %s: %s", e.Path, msg)
	}
	return "annotations: " + msg
}

func (e *ParseError) Unwrap() error { return e.cause }

// Is reports whether target is ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }
