// Package apperr defines the error taxonomy shared by the assessor packages.
// Components return *Error values tagged with a Kind; the orchestrator uses the
// Kind to decide how loudly a per-batch failure is logged.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error.
type Kind int

const (
	// Unknown marks an untagged error. Unknown errors are unexpected.
	Unknown Kind = iota
	// InvalidInput: the caller supplied malformed or missing arguments.
	InvalidInput
	// NotFound: a referenced batch, warehouse, reading or alert is absent.
	NotFound
	// Conflict: an illegal state transition or a duplicate in-flight request.
	Conflict
	// ServiceUnavailable: inference exhausted its retry budget.
	ServiceUnavailable
	// InvalidResponse: inference returned a payload that violates the schema.
	InvalidResponse
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case ServiceUnavailable:
		return "service_unavailable"
	case InvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// Error is a Kind-tagged error. Op names the failing operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return e.Op + ": " + e.Kind.String()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error of kind k wrapping err.
func New(k Kind, op string, err error) *Error {
	return &Error{Kind: k, Op: op, Err: err}
}

// Errorf returns an Error of kind k with a formatted message.
func Errorf(k Kind, op, format string, args ...any) *Error {
	return &Error{Kind: k, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the outermost *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries kind k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// IsOperational reports whether err is an expected, tagged failure.
// Untagged errors are treated as unexpected.
func IsOperational(err error) bool {
	return KindOf(err) != Unknown
}

// HTTPStatus maps k to the status code used by the api package.
func HTTPStatus(k Kind) int {
	switch k {
	case InvalidInput:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case ServiceUnavailable:
		return http.StatusServiceUnavailable
	case InvalidResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
