package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	cause := fmt.Errorf("unexpected end of JSON input")

	tests := []struct {
		name       string
		err        *Error
		wantType   ErrorType
		wantStatus int
		wantCode   int
	}{
		{"parse", ParseError("parse error", cause), TypeParse, http.StatusBadRequest, CodeParseError},
		{"invalid request", InvalidRequestError("missing method"), TypeInvalidRequest, http.StatusBadRequest, CodeInvalidRequest},
		{"validation", ValidationError("radius must be a number"), TypeValidation, http.StatusBadRequest, CodeInvalidParams},
		{"not found", NotFoundError("method not found"), TypeNotFound, http.StatusNotFound, CodeMethodNotFound},
		{"conflict", ConflictError("method already registered"), TypeConflict, http.StatusConflict, CodeServerError},
		{"unavailable", UnavailableError("broadcaster stopped", nil), TypeUnavailable, http.StatusServiceUnavailable, CodeServerError},
		{"internal", InternalError("handler panicked", cause), TypeInternal, http.StatusInternalServerError, CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantStatus, tt.err.HTTPStatus())
			assert.Equal(t, tt.wantCode, tt.err.RPCCode())
			assert.NotNil(t, tt.err.Context)
			assert.Contains(t, tt.err.Error(), string(tt.wantType))
		})
	}
}

func TestUnknownTypeDefaults(t *testing.T) {
	err := &Error{Type: ErrorType("mystery"), Message: "?"}

	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus())
	assert.Equal(t, CodeInternalError, err.RPCCode())
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := InternalError("failed to encode result", fmt.Errorf("json: unsupported value: NaN"))

	assert.Contains(t, err.Error(), "failed to encode result")
	assert.Contains(t, err.Error(), "unsupported value")
}

func TestInternalErrorWithoutCause(t *testing.T) {
	err := InternalError("something went wrong", nil)

	assert.Nil(t, err.Cause)
	assert.NotContains(t, err.Error(), "<nil>")
}

func TestWithContextChaining(t *testing.T) {
	err := ValidationError("invalid params").
		WithContext("method", "set_radius").
		WithField("param", 0)

	assert.Len(t, err.Context, 2)
	assert.Equal(t, "set_radius", err.Context["method"])
	assert.Equal(t, 0, err.Context["param"])
}

func TestWithContextNilMap(t *testing.T) {
	err := &Error{
		Type:    TypeValidation,
		Message: "test",
		Context: nil,
	}

	err = err.WithContext("key", "value")

	assert.NotNil(t, err.Context)
	assert.Equal(t, "value", err.Context["key"])
}

func TestToResponse(t *testing.T) {
	err := NotFoundError("route not found").WithContext("path", "/nope")

	resp := err.ToResponse()

	assert.Equal(t, "route not found", resp.Error)
	assert.Equal(t, TypeNotFound, resp.Type)
	assert.Equal(t, "/nope", resp.Context["path"])
}

func TestUnwrapAndIs(t *testing.T) {
	rootCause := fmt.Errorf("root")
	wrapped := InternalError("wrapped", rootCause)

	assert.Equal(t, rootCause, errors.Unwrap(wrapped))
	assert.True(t, errors.Is(wrapped, rootCause))
	assert.Nil(t, errors.Unwrap(ValidationError("test")))
}

func TestAsStructuredError(t *testing.T) {
	t.Run("structured error unchanged", func(t *testing.T) {
		original := ValidationError("original")
		assert.Same(t, original, AsStructuredError(original))
	})

	t.Run("wrapped structured error found", func(t *testing.T) {
		original := NotFoundError("method not found")
		result := AsStructuredError(fmt.Errorf("dispatch: %w", original))
		assert.Same(t, original, result)
	})

	t.Run("standard error becomes internal", func(t *testing.T) {
		original := fmt.Errorf("standard error")
		result := AsStructuredError(original)
		require.NotNil(t, result)
		assert.Equal(t, TypeInternal, result.Type)
		assert.Equal(t, "internal server error", result.Message)
		assert.Equal(t, original, result.Cause)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, AsStructuredError(nil))
	})
}
