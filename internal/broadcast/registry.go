package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dzimika/counter-app-sphere/internal/adapter/metrics"
	"github.com/dzimika/counter-app-sphere/internal/domain"
)

// Registry is the set of live connections. It is owned by the Broadcaster goroutine.
type Registry struct {
	members map[domain.Connection]struct{}
	metrics *metrics.WebSocketMetrics
}

// NewRegistry creates an empty registry. m may be nil.
func NewRegistry(m *metrics.WebSocketMetrics) *Registry {
	return &Registry{
		members: make(map[domain.Connection]struct{}),
		metrics: m,
	}
}

// Add inserts conn. Adding a connection twice is an error.
func (r *Registry) Add(conn domain.Connection) error {
	if _, exists := r.members[conn]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateRegistered, conn.ID())
	}
	r.members[conn] = struct{}{}
	r.updateGauge()
	return nil
}

// Remove deletes conn and reports whether it was a member.
func (r *Registry) Remove(conn domain.Connection) bool {
	if _, exists := r.members[conn]; !exists {
		return false
	}
	delete(r.members, conn)
	r.updateGauge()
	return true
}

func (r *Registry) Contains(conn domain.Connection) bool {
	_, exists := r.members[conn]
	return exists
}

func (r *Registry) Len() int {
	return len(r.members)
}

// Broadcast implements domain.Publisher. The payload is encoded once and queued on
// every open member; closed members are skipped and failed sends do not stop the loop.
func (r *Registry) Broadcast(ctx context.Context, payload any) int {
	data, err := encode(payload)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to encode broadcast payload", "payload_type", fmt.Sprintf("%T", payload), "error", err)
		r.countDropped()
		return 0
	}

	delivered := 0
	for conn := range r.members {
		if r.deliver(conn, data) {
			delivered++
		}
	}
	return delivered
}

// SendTo queues payload for a single connection.
func (r *Registry) SendTo(conn domain.Connection, payload any) error {
	data, err := encode(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if !conn.IsOpen() {
		return domain.ErrConnectionClosed
	}
	if err := conn.Send(data); err != nil {
		r.countDropped()
		return fmt.Errorf("send to %s: %w", conn.ID(), err)
	}
	r.countPublished(1)
	return nil
}

// CloseAll closes every member and empties the registry.
func (r *Registry) CloseAll() int {
	closed := 0
	for conn := range r.members {
		if err := conn.Close(); err != nil {
			slog.Debug("Close failed", "connection_id", conn.ID(), "error", err)
		}
		delete(r.members, conn)
		closed++
	}
	r.updateGauge()
	return closed
}

func (r *Registry) deliver(conn domain.Connection, data []byte) bool {
	if !conn.IsOpen() {
		return false
	}
	if err := conn.Send(data); err != nil {
		slog.Debug("Dropped message for connection", "connection_id", conn.ID(), "error", err)
		r.countDropped()
		return false
	}
	r.countPublished(1)
	return true
}

func (r *Registry) updateGauge() {
	if r.metrics != nil {
		r.metrics.ActiveConnections.Set(float64(len(r.members)))
	}
}

func (r *Registry) countPublished(n int) {
	if r.metrics != nil {
		r.metrics.MessagesPublished.Add(float64(n))
	}
}

func (r *Registry) countDropped() {
	if r.metrics != nil {
		r.metrics.MessagesDropped.Inc()
	}
}

// encode passes pre-encoded payloads through and marshals everything else.
func encode(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	case string:
		return []byte(p), nil
	default:
		return json.Marshal(payload)
	}
}
