// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func New(code, msg string) *APIError {
	return &APIError{Error: msg, Code: code}
}

// Kind classifies a domain error; each kind maps to one HTTP status.
type Kind int

const (
	KindValidation Kind = iota
	KindAccessDenied
	KindNotFound
	KindInvalidStatus
	KindUpstream
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAccessDenied:
		return "access_denied"
	case KindNotFound:
		return "not_found"
	case KindInvalidStatus:
		return "invalid_status"
	case KindUpstream:
		return "upstream"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindInvalidStatus:
		return http.StatusBadRequest
	case KindAccessDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Error is the typed error services return across the handler boundary.
// Details are merged into the JSON envelope next to "error" and "code".
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	// Err is the underlying cause. Logged, never serialized.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status for the error.
func (e *Error) Status() int { return e.Kind.Status() }

// With attaches a detail field to the response body.
func (e *Error) With(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Body renders the JSON envelope.
func (e *Error) Body() map[string]any {
	body := make(map[string]any, len(e.Details)+2)
	for k, v := range e.Details {
		body[k] = v
	}
	body["error"] = e.Message
	body["code"] = e.Code
	return body
}

// ── Constructors ─────────────────────────────────────────────────────────────

func Validation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}

// MissingFields is the VALIDATION_ERROR raised when required inputs are absent.
func MissingFields(required ...string) *Error {
	return Validation("VALIDATION_ERROR", "Missing required fields").With("required", required)
}

// InvalidFields carries per-field validator failures.
func InvalidFields(fields map[string]string) *Error {
	return Validation("VALIDATION_ERROR", "Validation failed").With("fields", fields)
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: msg}
}

func InvalidStatus(msg, current string) *Error {
	return (&Error{Kind: KindInvalidStatus, Code: "INVALID_STATUS", Message: msg}).With("current_status", current)
}

func AccessDenied(required []string, current string) *Error {
	return (&Error{Kind: KindAccessDenied, Code: "ACCESS_DENIED", Message: "Insufficient privileges"}).
		With("required", required).
		With("current", current)
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Code: "UNAUTHENTICATED", Message: msg}
}

// Upstream wraps a store or collaborator failure under an operation code
// such as FETCH_ERROR or PDF_ERROR.
func Upstream(code, msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Code: code, Message: msg, Err: err}
}

// As extracts an *Error from err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
