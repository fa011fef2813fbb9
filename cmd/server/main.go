package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/dzimika/counter-app-sphere/internal/adapter/httpserver"
	"github.com/dzimika/counter-app-sphere/internal/adapter/metrics"
	"github.com/dzimika/counter-app-sphere/internal/adapter/websocket"
	"github.com/dzimika/counter-app-sphere/internal/app"
	"github.com/dzimika/counter-app-sphere/internal/broadcast"
	"github.com/dzimika/counter-app-sphere/internal/platform/config"
	"github.com/dzimika/counter-app-sphere/internal/platform/logging"
	"github.com/dzimika/counter-app-sphere/internal/platform/version"
	"github.com/dzimika/counter-app-sphere/internal/rpc"
	"github.com/dzimika/counter-app-sphere/internal/state"
)

var errBroadcasterUnresponsive = errors.New("broadcaster not responding")

func runGracefulShutdown(cfg *config.Config, srv *httpserver.Server, broadcaster *broadcast.Broadcaster) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Hijacked websocket connections survive http.Server.Shutdown; the broadcaster closes them.
		broadcaster.Stop()

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupBroadcaster(cfg *config.Config, metricsSet *metrics.Set, clock clockwork.Clock) *broadcast.Broadcaster {
	store, err := state.NewStore(cfg.InitialCount, cfg.InitialRadius)
	if err != nil {
		slog.Error("Invalid initial state", "error", err)
		os.Exit(1)
	}

	replyMode, err := broadcast.ParseReplyMode(cfg.ReplyMode)
	if err != nil {
		slog.Error("Invalid reply mode", "error", err)
		os.Exit(1)
	}

	registry := broadcast.NewRegistry(metricsSet.WebSocket)
	svc := app.NewService(store, registry)
	dispatcher := app.NewDispatcher(svc, rpc.WithObserver(metricsSet.RPC), rpc.WithClock(clock))

	slog.Info("Methods registered", "methods", dispatcher.Methods(), "reply_mode", replyMode)

	return broadcast.NewBroadcaster(registry, dispatcher, svc,
		broadcast.WithReplyMode(replyMode),
		broadcast.WithClock(clock),
		broadcast.WithMetrics(metricsSet.WebSocket, metricsSet.RPC),
	)
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "name", version.Name, "version", version.Version, "env", cfg.AppEnv, "port", cfg.Port)

	metricsSet := metrics.NewSet()
	broadcaster := setupBroadcaster(cfg, metricsSet, clock)

	limits := websocket.NewConnectionLimits(int64(cfg.MaxWebSocketConnections), cfg.WebSocketConnectRate, cfg.WebSocketConnectBurst, clock)
	wsHandler := websocket.NewHandler(broadcaster, websocket.HandlerConfig{
		AppURL:        cfg.AppURL,
		IsDevelopment: cfg.IsDevelopment(),
		Limits:        limits,
		Metrics:       metricsSet.WebSocket,
		Clock:         clock,
	})

	healthChecks := []httpserver.HealthCheck{
		{
			Name: "broadcaster",
			Check: func(context.Context) error {
				if broadcaster.ClientCount() < 0 {
					return errBroadcasterUnresponsive
				}
				return nil
			},
		},
	}

	srv := httpserver.NewServer(cfg, broadcaster, wsHandler, metricsSet, healthChecks)

	done := runGracefulShutdown(cfg, srv, broadcaster)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
