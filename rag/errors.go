package rag

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindInferenceProvider ErrorKind = "inference_provider"
	KindRetrieval         ErrorKind = "retrieval"
	KindConfiguration     ErrorKind = "configuration"
)

// Error is the typed failure surfaced by every pipeline stage and by
// configuration loading. Op names the failing operation, e.g. "router.route".
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	default:
		return string(e.Kind)
	}
}

// Unwrap implements errors.Unwrap
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Kind sentinels for use with errors.Is.
var (
	ErrInferenceProvider = &Error{Kind: KindInferenceProvider}
	ErrRetrieval         = &Error{Kind: KindRetrieval}
	ErrConfiguration     = &Error{Kind: KindConfiguration}
)

var (
	// ErrEmptyQuery is returned for a blank query or essay.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrInvalidMode is returned for a mode other than query or evaluate.
	ErrInvalidMode = errors.New("mode must be \"query\" or \"evaluate\"")

	// ErrInvalidRoute is returned when the router output does not fit RouteDecision.
	ErrInvalidRoute = errors.New("invalid route decision")

	// ErrEmptyCompletion is returned when the provider answers with no content.
	ErrEmptyCompletion = errors.New("provider returned no content")

	// ErrFieldOverwrite is returned when a stage writes a field it does not own
	// or one that has already been written.
	ErrFieldOverwrite = errors.New("state field overwrite")
)

// NewInferenceError wraps err as an inference provider failure.
func NewInferenceError(op string, err error) *Error {
	return &Error{Kind: KindInferenceProvider, Op: op, Err: err}
}

// NewRetrievalError wraps err as a retrieval failure.
func NewRetrievalError(op string, err error) *Error {
	return &Error{Kind: KindRetrieval, Op: op, Err: err}
}

// NewConfigurationError wraps err as a configuration failure.
func NewConfigurationError(op string, err error) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
