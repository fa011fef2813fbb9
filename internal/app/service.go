package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dzimika/counter-app-sphere/internal/domain"
	apperrors "github.com/dzimika/counter-app-sphere/internal/platform/errors"
	"github.com/dzimika/counter-app-sphere/internal/rpc"
	"github.com/dzimika/counter-app-sphere/internal/state"
)

// UpdateRadiusMethod is the notification method pushed after the radius changes.
const UpdateRadiusMethod = "update_radius"

// Service mutates the shared state and publishes change pushes.
// Not safe for concurrent use; the broadcaster actor serializes every call.
type Service struct {
	store     *state.Store
	publisher domain.Publisher
}

func NewService(store *state.Store, publisher domain.Publisher) *Service {
	return &Service{store: store, publisher: publisher}
}

func (s *Service) Count() int64 {
	return s.store.Count()
}

func (s *Service) Radius() float64 {
	return s.store.Radius()
}

// Snapshot returns the current store values.
func (s *Service) Snapshot() state.Snapshot {
	return s.store.Snapshot()
}

// Increment adds one to the counter and pushes the new value to every viewer.
func (s *Service) Increment(ctx context.Context) int64 {
	count := s.store.Increment()
	s.publishCount(ctx, count)
	return count
}

// Decrement subtracts one from the counter and pushes the new value to every viewer.
func (s *Service) Decrement(ctx context.Context) int64 {
	count := s.store.Decrement()
	s.publishCount(ctx, count)
	return count
}

// SetRadius replaces the radius and pushes an update_radius notification.
// The state is left unchanged when r is rejected.
func (s *Service) SetRadius(ctx context.Context, r float64) error {
	if err := s.store.SetRadius(r); err != nil {
		return apperrors.ValidationError(fmt.Sprintf("Invalid params: %v", err)).
			WithField("radius", r)
	}
	delivered := s.publisher.Broadcast(ctx, rpc.NewNotification(UpdateRadiusMethod, r))
	slog.DebugContext(ctx, "Radius updated", "radius", r, "delivered", delivered)
	return nil
}

func (s *Service) publishCount(ctx context.Context, count int64) {
	delivered := s.publisher.Broadcast(ctx, domain.CountUpdate{Count: count})
	slog.DebugContext(ctx, "Count updated", "count", count, "delivered", delivered)
}
