package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dzimika/counter-app-sphere/internal/rpc"
)

// RPCMetrics holds Prometheus metrics for the request dispatcher.
type RPCMetrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ParseErrors     prometheus.Counter
}

// NewRPCMetrics creates and registers dispatcher metrics on the given registry.
func NewRPCMetrics(reg prometheus.Registerer) *RPCMetrics {
	m := &RPCMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total number of dispatched requests, by method and outcome.",
		}, []string{"method", "outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "Duration of request dispatch in seconds.",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"method"}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "parse_errors_total",
			Help:      "Total number of inbound frames that could not be parsed.",
		}),
	}

	reg.MustRegister(m.Requests, m.RequestDuration, m.ParseErrors)
	return m
}

// ObserveDispatch implements rpc.Observer.
func (m *RPCMetrics) ObserveDispatch(method string, outcome rpc.Outcome, elapsed time.Duration) {
	m.Requests.WithLabelValues(method, string(outcome)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}
