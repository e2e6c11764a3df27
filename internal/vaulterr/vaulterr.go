// Package vaulterr implements the closed error taxonomy shared by every
// layer of the vault. Operational errors carry a Kind that the transport
// layer maps to an HTTP status and a client-visible message; anything that
// does not originate here is treated as Internal and logged in full but
// never echoed to the caller.
package vaulterr

import "fmt"

// Kind is the closed set of operational error variants.
type Kind int

const (
	Internal Kind = iota
	ValidationError
	AuthFailure
	AccountLocked
	Forbidden
	NotFound
	AlreadyExists
	QuotaExceeded
	ShareExpired
	RateLimited
	IntegrityFailure
	MissingBlob
	CryptoFailure
)

func (k Kind) String() string {
	switch k {
	case ValidationError:
		return "ValidationError"
	case AuthFailure:
		return "AuthFailure"
	case AccountLocked:
		return "AccountLocked"
	case Forbidden:
		return "Forbidden"
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case QuotaExceeded:
		return "QuotaExceeded"
	case ShareExpired:
		return "ShareExpired"
	case RateLimited:
		return "RateLimited"
	case IntegrityFailure:
		return "IntegrityFailure"
	case MissingBlob:
		return "MissingBlob"
	case CryptoFailure:
		return "CryptoFailure"
	default:
		return "Internal"
	}
}

// Error is the single error type returned by every core package. Message is
// always safe to show to an end user for operational kinds; for Internal,
// IntegrityFailure and CryptoFailure the transport layer substitutes a
// generic message regardless of what is stored here, so the real detail can
// still be logged server-side.
type Error struct {
	Kind    Kind
	Message string
	Err     error // wrapped cause, for logging only
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	ve, ok := err.(*Error)
	if !ok {
		return false
	}
	return ve.Kind == kind
}

// KindOf extracts the Kind of err, defaulting to Internal for foreign errors.
func KindOf(err error) Kind {
	if ve, ok := err.(*Error); ok {
		return ve.Kind
	}
	return Internal
}

func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

func Validationf(format string, args ...any) *Error {
	return New(ValidationError, fmt.Sprintf(format, args...))
}

func Forbiddenf(format string, args ...any) *Error {
	return New(Forbidden, fmt.Sprintf(format, args...))
}
