// Package httpserver serves the websocket endpoint, the read-only state API, health
// checks and metrics over echo.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/dzimika/counter-app-sphere/internal/adapter/metrics"
	"github.com/dzimika/counter-app-sphere/internal/domain"
	"github.com/dzimika/counter-app-sphere/internal/platform/config"
)

type stateSource interface {
	Snapshot(ctx context.Context) (domain.StateView, error)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	state            stateSource
	websocketHandler http.Handler
	metrics          *metrics.Set

	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, state stateSource, websocketHandler http.Handler, metricsSet *metrics.Set, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	clock := clockwork.NewRealClock()
	srv := &Server{
		echo:             e,
		config:           cfg,
		clock:            clock,
		state:            state,
		websocketHandler: websocketHandler,
		metrics:          metricsSet,
		healthChecks:     healthChecks,
		startTime:        clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(s.config.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
