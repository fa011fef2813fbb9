package websocket

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/dzimika/counter-app-sphere/internal/adapter/metrics"
	"github.com/dzimika/counter-app-sphere/internal/domain"
	"github.com/dzimika/counter-app-sphere/internal/platform/correlation"
)

// Hub is the subset of the broadcaster the upgrade handler needs.
type Hub interface {
	Receiver
	Register(ctx context.Context, conn domain.Connection) error
	Unregister(conn domain.Connection)
}

// HandlerConfig configures the upgrade handler.
type HandlerConfig struct {
	AppURL        string
	IsDevelopment bool
	Limits        *ConnectionLimits
	Metrics       *metrics.WebSocketMetrics
	Clock         clockwork.Clock
}

// Handler upgrades HTTP requests and runs the connection until the peer leaves.
type Handler struct {
	hub      Hub
	upgrader websocket.Upgrader
	limits   *ConnectionLimits
	metrics  *metrics.WebSocketMetrics
	clock    clockwork.Clock
}

func NewHandler(hub Hub, cfg HandlerConfig) *Handler {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     NewCheckOrigin(cfg.AppURL, cfg.IsDevelopment),
		},
		limits:  cfg.Limits,
		metrics: cfg.Metrics,
		clock:   clock,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.limits != nil {
		ok, reason := h.limits.Acquire(clientIP(r))
		if !ok {
			if h.metrics != nil {
				h.metrics.RejectedTotal.Inc()
			}
			slog.Warn("WebSocket connection rejected", "reason", reason, "remote_addr", r.RemoteAddr)
			status := http.StatusServiceUnavailable
			if reason == LimitReasonRate {
				status = http.StatusTooManyRequests
			}
			http.Error(w, domain.ErrTooManyConnections.Error(), status)
			return
		}
		defer h.limits.Release()
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		slog.Debug("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	conn := newConn(ws, h.clock, h.metrics)
	ctx := correlation.WithConnection(correlation.WithID(context.WithoutCancel(r.Context()), correlation.NewID()), conn.ID())

	if err := h.hub.Register(ctx, conn); err != nil {
		slog.WarnContext(ctx, "WebSocket register failed", "error", err)
		_ = conn.closeWith(websocket.CloseTryAgainLater, "Server unavailable")
		return
	}
	if h.metrics != nil {
		h.metrics.ConnectionsTotal.Inc()
	}
	slog.InfoContext(ctx, "WebSocket connected", "remote_addr", r.RemoteAddr)

	defer func() {
		h.hub.Unregister(conn)
		_ = conn.closeWith(websocket.CloseNormalClosure, "")
		slog.InfoContext(ctx, "WebSocket disconnected")
	}()

	conn.readLoop(ctx, h.hub)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
