package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/url"
)

// ErrorType represents the category of failure reported by the timeline API
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeProtected   ErrorType = "protected"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeSuspended   ErrorType = "suspended"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents an API error with type information
type Error struct {
	Type    ErrorType
	Message string
	// Code is the API error code when present, otherwise the HTTP status
	Code   int
	UserID int64
	Err    error
}

func (e *Error) Error() string {
	if e.UserID != 0 {
		return fmt.Sprintf("%s error (code %d) for user %d: %s", e.Type, e.Code, e.UserID, e.Message)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, code int, message string) *Error {
	return &Error{Type: t, Code: code, Message: message}
}

// Wrap creates a typed error around an underlying cause
func Wrap(t ErrorType, err error, message string) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// IsType reports whether err carries the given error type
func IsType(err error, t ErrorType) bool {
	var apiErr *Error
	if stderrors.As(err, &apiErr) {
		return apiErr.Type == t
	}
	return false
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// FailureKind is the closed set of outcomes a failed user collection can have
type FailureKind int

const (
	// KindNone means no failure was recorded
	KindNone FailureKind = iota
	// KindProtectedOrUnavailable covers protected, suspended, deleted or
	// otherwise refused accounts. Never retried.
	KindProtectedOrUnavailable
	// KindTransient covers connection-level failures. Retried once.
	KindTransient
	// KindUnclassified is everything else.
	KindUnclassified
)

func (k FailureKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindProtectedOrUnavailable:
		return "protected_or_unavailable"
	case KindTransient:
		return "transient_connection"
	case KindUnclassified:
		return "unclassified"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseFailureKind is the inverse of FailureKind.String. Unknown names map to
// KindUnclassified.
func ParseFailureKind(s string) FailureKind {
	switch s {
	case "none", "":
		return KindNone
	case "protected_or_unavailable":
		return KindProtectedOrUnavailable
	case "transient_connection":
		return KindTransient
	default:
		return KindUnclassified
	}
}

// Classify maps an error returned by the collection pipeline onto a FailureKind
func Classify(err error) FailureKind {
	if err == nil {
		return KindNone
	}

	var apiErr *Error
	if stderrors.As(err, &apiErr) {
		switch apiErr.Type {
		case ErrorTypeProtected, ErrorTypeNotFound, ErrorTypeSuspended, ErrorTypeAuth:
			return KindProtectedOrUnavailable
		case ErrorTypeNetwork, ErrorTypeServerError, ErrorTypeRateLimit:
			return KindTransient
		default:
			return KindUnclassified
		}
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	var urlErr *url.Error
	if stderrors.As(err, &urlErr) {
		return KindTransient
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return KindTransient
	}

	return KindUnclassified
}
