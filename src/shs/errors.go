package shs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind groups the failures that can occur while loading sketches
type Kind int

const (
	// IOError is returned when a file can't be opened or read
	IOError Kind = iota + 1
	// FormatError is returned when a header disagrees with the data that follows it
	FormatError
	// DecodeError is returned when a chunk can't be read as an 8-byte value
	DecodeError
	// NamingError is returned when a filename has no integer identifier segment
	NamingError
)

// String satisfies the stringer interface
func (k Kind) String() string {
	switch k {
	case IOError:
		return "io error"
	case FormatError:
		return "format error"
	case DecodeError:
		return "decode error"
	case NamingError:
		return "naming error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the error type returned by this package and by the registry
type Error struct {
	Kind Kind
	Path string
	Err  error
}

// Error satisfies the error interface
func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a kind and the path it relates to
func NewError(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// IsKind reports whether any error in err's chain is an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// withPath sets the path on an *Error produced by a reader based decode
func withPath(err error, path string) error {
	var e *Error
	if errors.As(err, &e) && e.Path == "" {
		e.Path = path
	}
	return err
}
