package errors

import (
	"errors"
	"net/http"
)

// Error kinds, matching the failure taxonomy of the booking workflows.
const (
	KindValidation  = "validation"
	KindNotFound    = "not_found"
	KindConflict    = "conflict"
	KindRemoteWrite = "remote_write"
	KindPartial     = "partial_failure"
)

// HTTPError represents an error with an associated HTTP status code and
// kind. Err, when set, is the underlying cause.
type HTTPError struct {
	Code    int
	Kind    string
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// NewHTTPError creates a new HTTPError with the given code and message.
func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{Code: code, Message: message}
}

// Validation flags bad or missing input, raised before any write.
func Validation(message string) *HTTPError {
	return &HTTPError{Code: http.StatusBadRequest, Kind: KindValidation, Message: message}
}

// NotFound flags a missing entity or an empty candidate set.
func NotFound(message string) *HTTPError {
	return &HTTPError{Code: http.StatusNotFound, Kind: KindNotFound, Message: message}
}

// Conflict flags a state guard failure (expired quote, vehicle taken by a
// concurrent allocation, double booking).
func Conflict(message string) *HTTPError {
	return &HTTPError{Code: http.StatusConflict, Kind: KindConflict, Message: message}
}

// RemoteWrite wraps a failed entity store call.
func RemoteWrite(message string, err error) *HTTPError {
	return &HTTPError{Code: http.StatusBadGateway, Kind: KindRemoteWrite, Message: message, Err: err}
}

// Partial flags a multi-step workflow that failed after committing some
// steps and could not be fully compensated. The message must say which
// steps are applied.
func Partial(message string, err error) *HTTPError {
	return &HTTPError{Code: http.StatusInternalServerError, Kind: KindPartial, Message: message, Err: err}
}

func kindOf(err error) string {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Kind
	}
	return ""
}

func IsValidation(err error) bool { return kindOf(err) == KindValidation }
func IsNotFound(err error) bool   { return kindOf(err) == KindNotFound }
func IsConflict(err error) bool   { return kindOf(err) == KindConflict }
func IsPartial(err error) bool    { return kindOf(err) == KindPartial }

// StatusCode maps an error to the HTTP status handlers should answer with.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}
