// Package errs provides the unified error type used across all of roubi.
//
// Every adapter (broker, filestore, cache, search, docstore, database) wraps
// the native error of its vendor client into *errs.Error before returning it.
// The vendor error is kept as Cause, so callers that need a driver-specific
// type can still reach it with errors.As.
//
// Usage:
//
//	// in an adapter, wrap native errors
//	return errs.Wrap(errs.ErrKindTimeout, "count timed out", mongoErr)
//
//	// in a caller, check the kind
//	if errs.IsNotConnected(err) {
//	    ...
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing backend-specific codes.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no document, no object, no index
	ErrKindConnectionFailed         // handle could not be created at construction
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // backend rejected or failed the operation
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // access denied / auth failure
	ErrKindNotConnected             // adapter used without a live handle
	ErrKindConflict                 // write rejected by a uniqueness constraint
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindNotConnected:
		return "not_connected"
	case ErrKindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all roubi adapters.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original vendor error, preserved for errors.As
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrNotConnected is returned by every adapter operation invoked while the
// adapter holds no client handle (never connected, or already closed).
var ErrNotConnected = New(ErrKindNotConnected, "fail connect")

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a construction-time connectivity failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a backend operation failure.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsNotConnected reports whether err came from an adapter with no live handle.
func IsNotConnected(err error) bool {
	return KindOf(err) == ErrKindNotConnected
}

// IsConflict reports whether err is a uniqueness violation raised by the backend.
func IsConflict(err error) bool {
	return KindOf(err) == ErrKindConflict
}

// KindOf extracts the ErrKind from the first *Error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
