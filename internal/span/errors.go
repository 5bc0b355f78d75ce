package span

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidProfileKey is reported for keys that fail the path grammar.
	ErrInvalidProfileKey = errors.New("invalid profile key")
	// ErrUnmatchedEnd is reported when end is called for a key with no open span.
	ErrUnmatchedEnd = errors.New("end called without matching start")
	// ErrUnterminatedSpan is reported for spans still open when the log is exhausted.
	ErrUnterminatedSpan = errors.New("end was never called")
)

// KeyError ties one of the reconciler's error kinds to the offending raw key.
type KeyError struct {
	Kind error
	Key  string
}

func newKeyError(kind error, key string) *KeyError {
	return &KeyError{Kind: kind, Key: key}
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%v: %q", e.Kind, e.Key)
}

func (e *KeyError) Unwrap() error {
	return e.Kind
}
