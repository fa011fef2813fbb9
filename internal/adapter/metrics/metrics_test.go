package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dzimika/counter-app-sphere/internal/rpc"
)

func TestNewSet_RegistersWithoutConflicts(t *testing.T) {
	set := NewSet()

	require.NotNil(t, set.HTTP)
	require.NotNil(t, set.WebSocket)
	require.NotNil(t, set.RPC)

	set.WebSocket.ActiveConnections.Set(3)
	families, err := set.Registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["counter_app_websocket_active_connections"])
	assert.True(t, names["go_goroutines"])
}

func TestRPCMetrics_ObserveDispatch(t *testing.T) {
	m := NewRPCMetrics(prometheus.NewRegistry())

	m.ObserveDispatch("increment", rpc.OutcomeOK, 2*time.Millisecond)
	m.ObserveDispatch("increment", rpc.OutcomeOK, time.Millisecond)
	m.ObserveDispatch("set_radius", rpc.OutcomeError, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("increment", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("set_radius", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.RequestDuration))
}

func TestWebSocketMetrics_Counters(t *testing.T) {
	m := NewWebSocketMetrics(prometheus.NewRegistry())

	m.ActiveConnections.Inc()
	m.ActiveConnections.Inc()
	m.ActiveConnections.Dec()
	m.MessagesPublished.Add(4)
	m.MessagesDropped.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveConnections))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.MessagesPublished))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesDropped))
}

func TestHTTPMetrics_Middleware(t *testing.T) {
	tests := []struct {
		name     string
		route    string
		upgrade  bool
		recorded bool
	}{
		{name: "api route", route: "/api/state", recorded: true},
		{name: "metrics scrape", route: "/metrics"},
		{name: "health check", route: "/health/live"},
		{name: "websocket upgrade", route: "/ws", upgrade: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewHTTPMetrics(prometheus.NewRegistry())
			e := echo.New()
			e.Use(m.Middleware())
			e.GET(tt.route, func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			})

			req := httptest.NewRequest(http.MethodGet, tt.route, nil)
			if tt.upgrade {
				req.Header.Set("Upgrade", "websocket")
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			want := 0.0
			if tt.recorded {
				want = 1
			}
			assert.Equal(t, want, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, tt.route, "200")))
		})
	}
}

func TestHTTPMetrics_Middleware_RecordsErrorStatus(t *testing.T) {
	m := NewHTTPMetrics(prometheus.NewRegistry())
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/state", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "busy")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "/api/state", "503")))
}

func TestHandler_ServesExposition(t *testing.T) {
	set := NewSet()
	set.WebSocket.ConnectionsTotal.Inc()

	rec := httptest.NewRecorder()
	Handler(set.Registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "counter_app_websocket_connections_total 1"))
}
