// Package failure classifies server errors into a small closed set of kinds.
package failure

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a failure
type Kind uint8

const (
	// Unknown is returned by KindOf for errors that carry no Kind
	Unknown Kind = iota
	// Startup covers errors that abort the server before it serves: bind
	// failures, unreadable body files, an unusable pool.
	Startup
	// Connection covers per-connection socket errors (read, write, close).
	Connection
	// Configuration covers invalid settings and missing configured resources.
	Configuration
)

func (k Kind) String() string {
	switch k {
	case Startup:
		return "StartupFailure"
	case Connection:
		return "ConnectionFailure"
	case Configuration:
		return "ConfigurationFailure"
	default:
		return "UnknownFailure"
	}
}

// Error is an error tagged with a Kind and the operation that failed
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New wraps err with kind and op. A nil err yields nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a tagged error from a format string
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the outermost *Error in err's chain
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
