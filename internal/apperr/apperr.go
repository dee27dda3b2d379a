// Package apperr defines the error taxonomy shared by the service and HTTP layers.
//
// Every failure that reaches a caller is an *Error carrying a Kind, a stable
// machine-readable Code, a user-facing message and remediation hints. The
// wrapped cause keeps its stack so operators can inspect it with "%+v".
package apperr

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error by how the caller is expected to react.
type Kind int

const (
	KindInternal Kind = iota
	KindConfiguration
	KindAuthentication
	KindForbidden
	KindNotFound
	KindValidation
	KindInvalidArgument
	KindWriteFailure
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindAuthentication:
		return "authentication"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindWriteFailure:
		return "write_failure"
	case KindNetwork:
		return "network"
	default:
		return "internal"
	}
}

// Sentinels usable with errors.Is regardless of the message attached.
var (
	ErrNotFound           = stderrors.New("not found")
	ErrInvalidArgument    = stderrors.New("invalid argument")
	ErrDuplicateException = stderrors.New("date is already marked as no class")
	ErrRecordFailed       = stderrors.New("failed to record transaction")
	ErrUnreachable        = stderrors.New("backend unreachable")
)

// Error is the typed error returned across package boundaries.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Hints   []string
	Err     error

	sentinel error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel the error was created with.
func (e *Error) Is(target error) bool {
	return e.sentinel != nil && e.sentinel == target
}

// Detail is the operator-only diagnostic text, including the cause's stack.
func (e *Error) Detail() string {
	if e.Err == nil {
		return ""
	}
	return fmt.Sprintf("%+v", e.Err)
}

// WithHints returns e with extra remediation hints appended.
func (e *Error) WithHints(hints ...string) *Error {
	e.Hints = append(e.Hints, hints...)
	return e
}

func newError(kind Kind, code string, cause error, format string, args ...interface{}) *Error {
	var wrapped error
	if cause != nil {
		wrapped = errors.WithStack(cause)
	}
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...), Err: wrapped}
}

// Configuration reports missing backend endpoints or credentials.
func Configuration(cause error, format string, args ...interface{}) *Error {
	return newError(KindConfiguration, "CONFIGURATION", cause, format, args...).
		WithHints("Check the service environment variables", "Contact the operator")
}

// Unauthenticated reports a missing, expired or invalid session.
func Unauthenticated(cause error, format string, args ...interface{}) *Error {
	return newError(KindAuthentication, "UNAUTHENTICATED", cause, format, args...).
		WithHints("Sign in again")
}

// Forbidden reports an authenticated caller lacking the required role.
func Forbidden(format string, args ...interface{}) *Error {
	return newError(KindForbidden, "FORBIDDEN", nil, format, args...).
		WithHints("Only the class president can do this")
}

// NotFound reports a missing class, member, student or exception.
func NotFound(code string, format string, args ...interface{}) *Error {
	e := newError(KindNotFound, code, nil, format, args...)
	e.sentinel = ErrNotFound
	return e
}

// Validation reports input rejected before any write.
func Validation(code string, cause error, format string, args ...interface{}) *Error {
	return newError(KindValidation, code, cause, format, args...)
}

// InvalidArgument reports a calculation called with nonsensical input.
func InvalidArgument(format string, args ...interface{}) *Error {
	e := newError(KindInvalidArgument, "INVALID_ARGUMENT", nil, format, args...)
	e.sentinel = ErrInvalidArgument
	return e
}

// DuplicateException reports a second no-class mark for the same class and date.
func DuplicateException(date string) *Error {
	e := newError(KindValidation, "DUPLICATE_EXCEPTION", nil, "%s is already marked as no class", date).
		WithHints("Pick a different date", "Unmark the existing entry first")
	e.sentinel = ErrDuplicateException
	return e
}

// RecordFailed reports a rejected ledger write. The cause is kept verbatim.
func RecordFailed(cause error) *Error {
	e := newError(KindWriteFailure, "RECORD_FAILED", cause, "the payment could not be recorded").
		WithHints("Check that you are the class president", "Refresh and verify the balance before trying again")
	e.sentinel = ErrRecordFailed
	return e
}

// Unreachable reports a network failure talking to the backend.
func Unreachable(cause error) *Error {
	e := newError(KindNetwork, "NETWORK", cause, "unable to reach the server").
		WithHints("Check your internet connection", "Try again in a moment")
	e.sentinel = ErrUnreachable
	return e
}

// Internal wraps an unexpected failure.
func Internal(cause error, format string, args ...interface{}) *Error {
	return newError(KindInternal, "INTERNAL", cause, format, args...)
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As returns the first *Error in err's chain, wrapping unknown errors as internal.
func As(err error) *Error {
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return Internal(err, "unexpected error")
}
