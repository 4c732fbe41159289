package pushsub

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/acornstash/notifier/pkg/logger"
)

// Registry tracks the push delivery endpoints of every user and owns their
// lifecycle: subscribe, explicit unsubscribe, invalidation reported by the
// dispatch path, and the periodic purge of long-inactive rows.
type Registry struct {
	store Store
	log   *slog.Logger
	clock func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger for the Registry.
func WithLogger(log *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.log = log
	}
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.clock = clock
	}
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store Store, opts ...RegistryOption) *Registry {
	r := &Registry{
		store: store,
		log:   slog.Default(),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ListActive returns the user's active endpoints. An empty result is a
// normal, silent outcome for the push channel.
func (r *Registry) ListActive(ctx context.Context, userID string) ([]Endpoint, error) {
	return r.store.ListActive(ctx, userID)
}

// Upsert registers a device endpoint, replacing credentials and metadata if
// the (user, endpoint ID) pair already exists. Re-subscribing reactivates a
// previously invalidated endpoint.
func (r *Registry) Upsert(ctx context.Context, ep Endpoint) error {
	if ep.ID == "" {
		return ErrMissingEndpointID
	}
	if ep.UserID == "" {
		return ErrMissingUserID
	}

	now := r.clock()
	ep.IsActive = true
	ep.LastUpdated = now
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = now
	}

	if err := r.store.Upsert(ctx, ep); err != nil {
		return fmt.Errorf("upsert push endpoint: %w", err)
	}

	r.log.LogAttrs(ctx, slog.LevelDebug, "push endpoint registered",
		logger.UserID(ep.UserID),
		logger.EndpointID(ep.ID),
	)
	return nil
}

// Deactivate handles an explicit unsubscribe from the user.
func (r *Registry) Deactivate(ctx context.Context, userID, endpointID string) error {
	if err := r.store.Deactivate(ctx, userID, endpointID); err != nil {
		return fmt.Errorf("deactivate push endpoint: %w", err)
	}

	r.log.LogAttrs(ctx, slog.LevelInfo, "push endpoint unsubscribed",
		logger.UserID(userID),
		logger.EndpointID(endpointID),
	)
	return nil
}

// MarkInvalid deactivates an endpoint the push provider reported as gone.
// Kept separate from Deactivate so operators can tell self-healing cleanup
// apart from user-initiated unsubscribes in the logs.
func (r *Registry) MarkInvalid(ctx context.Context, endpointID string) error {
	if err := r.store.DeactivateByEndpoint(ctx, endpointID); err != nil {
		return fmt.Errorf("mark push endpoint invalid: %w", err)
	}

	r.log.LogAttrs(ctx, slog.LevelWarn, "push endpoint invalidated by delivery failure",
		logger.EndpointID(endpointID),
	)
	return nil
}

// Sweep purges endpoints that have been inactive longer than the threshold.
// Invoked from the periodic scheduler pass.
func (r *Registry) Sweep(ctx context.Context, threshold time.Duration) (int, error) {
	cutoff := r.clock().Add(-threshold)
	n, err := r.store.PurgeInactive(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge inactive push endpoints: %w", err)
	}
	if n > 0 {
		r.log.LogAttrs(ctx, slog.LevelInfo, "purged inactive push endpoints",
			slog.Int("count", n),
			slog.Time("cutoff", cutoff),
		)
	}
	return n, nil
}
