package template

import (
	"errors"
	"fmt"
)

var (
	// ErrSyntax is matched by every *SyntaxError.
	ErrSyntax = errors.New("template syntax error")

	// ErrUnknownStream reports a call to a stream name missing from the registry.
	ErrUnknownStream = errors.New("unknown stream function")

	ErrIncludeDepth = errors.New("include depth exceeded")
)

// SyntaxError describes a malformed construct at byte offset Pos of the
// template being rendered.
type SyntaxError struct {
	Pos int
	Msg string
	Err error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("template: offset %d: %s", e.Pos, e.Msg)
}

func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}
