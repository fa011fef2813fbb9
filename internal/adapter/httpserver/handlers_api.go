package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dzimika/counter-app-sphere/internal/domain"
	apperrors "github.com/dzimika/counter-app-sphere/internal/platform/errors"
)

func (s *Server) registerAPIRoutes() {
	limiter := newRateLimiter(s.config.APIRateLimit, s.config.APIRateBurst)
	s.echo.GET("/api/state", s.handleState, limiter)
}

// handleState returns the counter, radius and number of connected viewers.
func (s *Server) handleState(c echo.Context) error {
	view, err := s.state.Snapshot(c.Request().Context())
	if errors.Is(err, domain.ErrBroadcasterStopped) {
		return apperrors.UnavailableError("server is shutting down", err)
	}
	if err != nil {
		return apperrors.InternalError("failed to read state", err)
	}

	if err := c.JSON(http.StatusOK, view); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
