package apierr

import (
	"errors"
	"fmt"
	"maps"
)

// Category groups error codes by how a caller should react to them.
type Category string

const (
	CategoryAuth       Category = "auth"
	CategoryValidation Category = "validation"
	CategoryBusiness   Category = "business"
	CategorySystem     Category = "system"
)

// Classify maps a code to its Category using only the first character.
func Classify(code string) Category {
	if code == "" {
		return CategoryValidation
	}

	switch code[0] {
	case '1':
		return CategoryAuth
	case '2', '3', '4':
		return CategoryBusiness
	case '5':
		return CategorySystem
	default:
		return CategoryValidation
	}
}

// Error is the single error shape surfaced by every SDK operation.
// Values are never mutated after construction.
type Error struct {
	// StatusCode is the HTTP status observed for a remote failure, 0 otherwise
	StatusCode int `json:"-"`

	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
	Category Category       `json:"category"`

	cause error
}

// New builds an Error for code. An empty message falls back to the catalog
// message for the code.
func New(code, message string, details map[string]any) *Error {
	if message == "" {
		message = DefaultMessage(code)
	}

	return &Error{
		Code:     code,
		Message:  message,
		Details:  maps.Clone(details),
		Category: Classify(code),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s [%s]: %s", e.Code, e.Category, e.Message)
}

// Unwrap returns the raw failure this error was normalized from, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same code, so sentinel
// values work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Retryable reports whether the failure is transient from the caller's view.
func (e *Error) Retryable() bool {
	return e.Category == CategorySystem
}

// withCause returns a copy of e that unwraps to cause.
func (e *Error) withCause(cause error) *Error {
	cp := *e
	cp.Details = maps.Clone(e.Details)
	cp.cause = cause
	return &cp
}

// WithDetails returns a copy of e with details merged over the existing ones.
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = maps.Clone(e.Details)
	if cp.Details == nil {
		cp.Details = make(map[string]any, len(details))
	}
	maps.Copy(cp.Details, details)
	return &cp
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	// ErrInvalidRefreshToken is returned by a refresh attempted without a
	// stored refresh token.
	ErrInvalidRefreshToken = New(CodeInvalidRefreshToken, "", nil)

	// ErrInternal is the fallback for failures that carry no structured payload.
	ErrInternal = New(CodeInternalError, "An unexpected error occurred", nil)

	// ErrAlreadyVerified is returned for operations against an approved record.
	ErrAlreadyVerified = New(CodeAlreadyVerified, "", nil)

	// ErrExpiredCode is returned for operations against an expired record.
	ErrExpiredCode = New(CodeExpiredCode, "", nil)

	// ErrVerificationFailed is returned for operations against a rejected record.
	ErrVerificationFailed = New(CodeVerificationFailed, "", nil)

	// ErrUnsupportedType is returned when a verification type is not recognised.
	ErrUnsupportedType = New(CodeUnsupportedType, "", nil)

	// ErrInvalidFormat is returned when input does not match its expected shape.
	ErrInvalidFormat = New(CodeInvalidFormat, "", nil)
)
