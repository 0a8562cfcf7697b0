package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPError is a failure that already knows its HTTP status and payload.
type HTTPError struct {
	Status  int
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

func (e HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e HTTPError) Unwrap() error { return e.Err }

// StatusCode reports the HTTP status carried by the error.
func (e HTTPError) StatusCode() int { return e.Status }

// ValidationError carries per-field constraint messages such as
// "email must be an email".
type ValidationError struct {
	Messages []string
	Err      error
}

func (e ValidationError) Error() string {
	if len(e.Messages) == 0 {
		return "validation error"
	}
	return strings.Join(e.Messages, "; ")
}

func (e ValidationError) Unwrap() error { return e.Err }

// Invalid builds a single-field ValidationError.
func Invalid(field, msg string) ValidationError {
	return ValidationError{Messages: []string{strings.TrimSpace(field + " " + msg)}}
}

// StoreKind tells what went wrong in the persistence layer.
type StoreKind int

const (
	StoreUnknown StoreKind = iota
	StoreUniqueViolation
	StoreRecordNotFound
	StoreForeignKeyViolation
	StoreInvalidIdentifier
	StoreSchemaMismatch
	StoreKnownRequest
	StoreInvalidQuery
	StoreUnavailable
	StoreTransaction
)

var storeKindNames = map[StoreKind]string{
	StoreUnknown:             "unknown",
	StoreUniqueViolation:     "unique_violation",
	StoreRecordNotFound:      "record_not_found",
	StoreForeignKeyViolation: "foreign_key_violation",
	StoreInvalidIdentifier:   "invalid_identifier",
	StoreSchemaMismatch:      "schema_mismatch",
	StoreKnownRequest:        "known_request",
	StoreInvalidQuery:        "invalid_query",
	StoreUnavailable:         "unavailable",
	StoreTransaction:         "transaction",
}

func (k StoreKind) String() string {
	if s, ok := storeKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// StoreError is raised by repository bindings for failures they detect
// themselves (missing rows on write, malformed ids, unknown columns).
type StoreError struct {
	Kind   StoreKind
	Entity string
	Field  string
	Code   string
	Err    error
}

func (e StoreError) Error() string {
	var b strings.Builder
	b.WriteString("store ")
	b.WriteString(e.Kind.String())
	if e.Entity != "" {
		b.WriteString(" on ")
		b.WriteString(e.Entity)
	}
	if e.Field != "" {
		b.WriteString(" (")
		b.WriteString(e.Field)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e StoreError) Unwrap() error { return e.Err }

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return "panic: " + err.Error()
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// StackTrace returns the goroutine stack captured at recovery.
func (e PanicError) StackTrace() string { return string(e.Stack) }

func NotFound(resource, id string) HTTPError {
	msg := resource + " not found"
	if id != "" {
		msg = fmt.Sprintf("%s with ID %s not found", resource, id)
	}
	return HTTPError{Status: http.StatusNotFound, Code: CodeResourceNotFound, Message: msg}
}

func Duplicate(resource, field, value string) HTTPError {
	return HTTPError{
		Status:  http.StatusConflict,
		Code:    CodeResourceAlreadyExists,
		Message: fmt.Sprintf("%s with %s '%s' already exists", resource, field, value),
		Details: map[string]any{"field": field, "value": value},
	}
}

func InvalidCredentials() HTTPError {
	return HTTPError{
		Status:  http.StatusUnauthorized,
		Code:    CodeAuthInvalidCredentials,
		Message: "Invalid email or password",
	}
}

func InsufficientPermissions(required string) HTTPError {
	msg := "Insufficient permissions to perform this action"
	var details map[string]any
	if required != "" {
		msg = "Insufficient permissions. Required: " + required
		details = map[string]any{"requiredPermission": required}
	}
	return HTTPError{Status: http.StatusForbidden, Code: CodeAuthInsufficientPermissions, Message: msg, Details: details}
}

func TokenInvalid(msg string, err error) HTTPError {
	if msg == "" {
		msg = "Invalid or missing access token"
	}
	return HTTPError{Status: http.StatusUnauthorized, Code: CodeAuthTokenInvalid, Message: msg, Err: err}
}

func FileUpload(reason string, details map[string]any) HTTPError {
	return HTTPError{
		Status:  http.StatusBadRequest,
		Code:    CodeFileUploadFailed,
		Message: "File upload failed: " + reason,
		Details: details,
	}
}

func RequestTimeout(after time.Duration) HTTPError {
	return HTTPError{
		Status:  http.StatusRequestTimeout,
		Code:    CodeRequestTimeout,
		Message: fmt.Sprintf("Request timed out after %dms", after.Milliseconds()),
		Details: map[string]any{"timeoutMs": after.Milliseconds()},
	}
}

func RateLimited(retryAfter time.Duration) HTTPError {
	var details map[string]any
	if retryAfter > 0 {
		details = map[string]any{"retryAfterMs": retryAfter.Milliseconds()}
	}
	return HTTPError{
		Status:  http.StatusTooManyRequests,
		Code:    CodeRateLimitExceeded,
		Message: "Too many requests, please try again later",
		Details: details,
	}
}

func BadRequest(code ErrorCode, msg string, details map[string]any) HTTPError {
	if code == "" {
		code = CodeValidationFailed
	}
	return HTTPError{Status: http.StatusBadRequest, Code: code, Message: msg, Details: details}
}

func IsNotFound(err error) bool {
	var h HTTPError
	if errors.As(err, &h) && h.Status == http.StatusNotFound {
		return true
	}
	var s StoreError
	return errors.As(err, &s) && s.Kind == StoreRecordNotFound
}
