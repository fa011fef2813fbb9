// Package errors provides structured error handling with context propagation and
// mapping to both HTTP status codes and JSON-RPC error codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of error for metrics and response formatting.
type ErrorType string

const (
	// TypeParse indicates a frame that is not valid JSON (RPC -32700, HTTP 400)
	TypeParse ErrorType = "parse"
	// TypeInvalidRequest indicates a well-formed frame that is not a request (RPC -32600, HTTP 400)
	TypeInvalidRequest ErrorType = "invalid_request"
	// TypeValidation indicates invalid input or parameters (RPC -32602, HTTP 400)
	TypeValidation ErrorType = "validation"
	// TypeNotFound indicates an unknown method or resource (RPC -32601, HTTP 404)
	TypeNotFound ErrorType = "not_found"
	// TypeConflict indicates a conflicting registration (RPC -32000, HTTP 409)
	TypeConflict ErrorType = "conflict"
	// TypeInternal indicates a server-side fault (RPC -32603, HTTP 500)
	TypeInternal ErrorType = "internal"
	// TypeUnavailable indicates the server is shutting down or overloaded (RPC -32000, HTTP 503)
	TypeUnavailable ErrorType = "unavailable"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
)

// Error is a classified failure that maps onto an HTTP status and a JSON-RPC code.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the appropriate HTTP status code for this error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeParse, TypeInvalidRequest, TypeValidation:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	case TypeInternal:
		return http.StatusInternalServerError
	case TypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RPCCode returns the JSON-RPC error code for this error type.
func (e *Error) RPCCode() int {
	switch e.Type {
	case TypeParse:
		return CodeParseError
	case TypeInvalidRequest:
		return CodeInvalidRequest
	case TypeValidation:
		return CodeInvalidParams
	case TypeNotFound:
		return CodeMethodNotFound
	case TypeConflict, TypeUnavailable:
		return CodeServerError
	default:
		return CodeInternalError
	}
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause, Context: map[string]any{}}
}

// ParseError wraps a decoder failure on an inbound frame.
func ParseError(message string, cause error) *Error {
	return newError(TypeParse, message, cause)
}

// InvalidRequestError reports valid JSON that is not a usable request.
func InvalidRequestError(message string) *Error {
	return newError(TypeInvalidRequest, message, nil)
}

func ValidationError(message string) *Error {
	return newError(TypeValidation, message, nil)
}

func NotFoundError(message string) *Error {
	return newError(TypeNotFound, message, nil)
}

func ConflictError(message string) *Error {
	return newError(TypeConflict, message, nil)
}

func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

// UnavailableError reports that the server cannot serve right now, e.g. during shutdown.
func UnavailableError(message string, cause error) *Error {
	return newError(TypeUnavailable, message, cause)
}

// WithContext attaches a key/value pair and returns e for chaining.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithField is an alias for WithContext.
func (e *Error) WithField(key string, value any) *Error {
	return e.WithContext(key, value)
}

// ErrorResponse represents the JSON structure sent to HTTP clients.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

// ToResponse builds the HTTP body for e.
func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error:   e.Message,
		Type:    e.Type,
		Context: e.Context,
	}
}

// AsStructuredError returns the first *Error in err's chain, or wraps err as an
// internal error when there is none.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return InternalError("internal server error", err)
}
