package failure

import (
	"errors"
	"fmt"
)

// Kind classifies why a location or routing operation did not produce data.
type Kind string

const (
	KindUnknown            Kind = "unknown"
	KindCancelled          Kind = "cancelled"
	KindNotFound           Kind = "not_found"
	KindRateLimited        Kind = "rate_limited"
	KindServiceUnavailable Kind = "service_unavailable"
	KindNetworkUnreachable Kind = "network_unreachable"
	KindPreconditionFailed Kind = "precondition_failed"
	KindMalformedResponse  Kind = "malformed_response"
	KindValidation         Kind = "validation"
)

// Degraded reports whether the kind describes a degraded upstream, the only
// condition under which fallback data may be substituted.
func (k Kind) Degraded() bool {
	switch k {
	case KindServiceUnavailable, KindNetworkUnreachable, KindMalformedResponse:
		return true
	default:
		return false
	}
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Error is the structured failure returned by every pipeline component.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a failure of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a failure of the given kind around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NewPreconditionError creates a PreconditionFailed failure.
func NewPreconditionError(message string) *Error {
	return New(KindPreconditionFailed, message)
}

// NewValidationError creates a Validation failure for bad caller input.
func NewValidationError(message string) *Error {
	return New(KindValidation, message)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsCancelled reports whether err is a cancellation outcome.
func IsCancelled(err error) bool {
	return Is(err, KindCancelled)
}
