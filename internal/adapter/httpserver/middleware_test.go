package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dzimika/counter-app-sphere/internal/platform/correlation"
	apperrors "github.com/dzimika/counter-app-sphere/internal/platform/errors"
)

func runErrorMiddleware(t *testing.T, handlerErr error) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/state", nil), rec)

	err := ErrorHandlingMiddleware()(func(echo.Context) error { return handlerErr })(c)
	return rec, err
}

func TestErrorHandlingMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   apperrors.ErrorType
		wantMsg    string
	}{
		{"validation", apperrors.ValidationError("bad input"), http.StatusBadRequest, apperrors.TypeValidation, "bad input"},
		{"not found", apperrors.NotFoundError("no such thing"), http.StatusNotFound, apperrors.TypeNotFound, "no such thing"},
		{"conflict", apperrors.ConflictError("taken"), http.StatusConflict, apperrors.TypeConflict, "taken"},
		{"unavailable", apperrors.UnavailableError("stopping", nil), http.StatusServiceUnavailable, apperrors.TypeUnavailable, "stopping"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, apperrors.TypeInternal, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := runErrorMiddleware(t, tt.err)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp apperrors.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantType, resp.Type)
			assert.Equal(t, tt.wantMsg, resp.Error)
		})
	}
}

func TestErrorHandlingMiddleware_PassesThrough(t *testing.T) {
	rec, err := runErrorMiddleware(t, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	httpErr := echo.NewHTTPError(http.StatusMethodNotAllowed)
	_, err = runErrorMiddleware(t, httpErr)
	assert.Same(t, httpErr, err)
}

func TestCorrelationMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		inbound string
		reuse   bool
	}{
		{name: "minted", inbound: ""},
		{name: "reused", inbound: "req-42_abc", reuse: true},
		{name: "rejected when malformed", inbound: "bad id with spaces"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.inbound != "" {
				req.Header.Set(requestIDHeader, tt.inbound)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var seen string
			err := correlationMiddleware(func(c echo.Context) error {
				seen, _ = correlation.ID(c.Request().Context())
				return nil
			})(c)

			require.NoError(t, err)
			require.NotEmpty(t, seen)
			assert.Equal(t, seen, rec.Header().Get(requestIDHeader))
			if tt.reuse {
				assert.Equal(t, tt.inbound, seen)
			} else {
				assert.NotEqual(t, tt.inbound, seen)
			}
		})
	}
}
