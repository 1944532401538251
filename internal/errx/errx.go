// Package errx provides the registry's error kinds. Handlers map kinds to
// HTTP status codes; the wrapped error is for logs only.
package errx

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind uint8

const (
	Unknown Kind = iota
	InvalidArgument
	NotFound
	DataCorruption
	AllocationExhausted
	UpstreamFailure
)

// Error carries the operation that failed, its kind and the cause.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

// E wraps err with an operation name and kind. A nil err yields nil.
func E(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}

	return &Error{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

func (k Kind) String() string {
	switch k {
	case Unknown:
		return "Unknown"
	case InvalidArgument:
		return "InvalidArgument"
	case NotFound:
		return "NotFound"
	case DataCorruption:
		return "DataCorruption"
	case AllocationExhausted:
		return "AllocationExhausted"
	case UpstreamFailure:
		return "UpstreamFailure"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}

	if e.Op == "" {
		return e.Err.Error()
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the outermost kind found in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return Unknown
}

// OpOf returns the outermost operation name found in err's chain.
func OpOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}

	return ""
}

// Reason returns the message of the innermost cause, without operation
// prefixes. Plain errors return their own message.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Err != nil {
		return Reason(e.Err)
	}

	if err == nil {
		return ""
	}

	return err.Error()
}
