package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures so callers can map them to HTTP statuses or
// exit codes without string matching.
type ErrorKind int

const (
	KindClient ErrorKind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindRateLimited
	KindServer
	KindParse
	KindValidation
	KindBadRequest
)

// Error codes surfaced in API and CLI error bodies.
const (
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeRateLimited       = "RATE_LIMITED"
	CodeServerError       = "SERVER_ERROR"
	CodeParseError        = "PARSE_ERROR"
	CodeClientError       = "CLIENT_ERROR"
	CodeValidation        = "VALIDATION_ERROR"
	CodeInvalidDateFormat = "INVALID_DATE_FORMAT"
	CodeBadRequest        = "BAD_REQUEST"
)

// Error is the typed failure carried from the fetch layer to the API/CLI.
type Error struct {
	Kind    ErrorKind
	Status  int
	Code    string
	Message string
	Details map[string]interface{}
}

func (e *Error) Error() string {
	return e.Message
}

// Retryable reports whether the fetch layer may try the request again.
func (e *Error) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindServer
}

// ToMap renders the error the way CLI error output expects it.
func (e *Error) ToMap() map[string]interface{} {
	details := e.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	return map[string]interface{}{
		"status":  e.Status,
		"code":    e.Code,
		"message": e.Message,
		"details": details,
	}
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func NewUnauthorized(message string, details map[string]interface{}) *Error {
	if message == "" {
		message = "Unauthorized: check ENTSOE_API_KEY"
	}
	return &Error{Kind: KindUnauthorized, Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: message, Details: details}
}

func NewForbidden(message string, details map[string]interface{}) *Error {
	if message == "" {
		message = "Forbidden: access denied for this resource"
	}
	return &Error{Kind: KindForbidden, Status: http.StatusForbidden, Code: CodeForbidden, Message: message, Details: details}
}

func NewNotFound(message string, details map[string]interface{}) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Code: CodeNotFound, Message: message, Details: details}
}

func NewRateLimited(message string, details map[string]interface{}) *Error {
	if message == "" {
		message = "Too Many Requests: rate limited by ENTSO-E"
	}
	return &Error{Kind: KindRateLimited, Status: http.StatusTooManyRequests, Code: CodeRateLimited, Message: message, Details: details}
}

// NewServerError reports an upstream failure. status defaults to 502.
func NewServerError(message string, status int, details map[string]interface{}) *Error {
	if message == "" {
		message = "ENTSO-E server error"
	}
	if status == 0 {
		status = http.StatusBadGateway
	}
	return &Error{Kind: KindServer, Status: status, Code: CodeServerError, Message: message, Details: details}
}

func NewParseError(message string, details map[string]interface{}) *Error {
	if message == "" {
		message = "XML parse error"
	}
	return &Error{Kind: KindParse, Status: http.StatusInternalServerError, Code: CodeParseError, Message: message, Details: details}
}

// NewClientError wraps an unclassified upstream status.
func NewClientError(message string, status int, details map[string]interface{}) *Error {
	return &Error{Kind: KindClient, Status: status, Code: CodeClientError, Message: message, Details: details}
}

func NewValidationError(code, format string, args ...interface{}) *Error {
	if code == "" {
		code = CodeValidation
	}
	return &Error{Kind: KindValidation, Status: http.StatusUnprocessableEntity, Code: code, Message: fmt.Sprintf(format, args...)}
}

func NewBadRequest(format string, args ...interface{}) *Error {
	return &Error{Kind: KindBadRequest, Status: http.StatusBadRequest, Code: CodeBadRequest, Message: fmt.Sprintf(format, args...)}
}
