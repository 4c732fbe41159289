package pushsub

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEndpointNotFound is returned when an endpoint does not exist.
	ErrEndpointNotFound = errors.New("push endpoint not found")

	// ErrMissingEndpointID is returned on upsert of an endpoint without an ID.
	ErrMissingEndpointID = errors.New("endpoint ID is required")

	// ErrMissingUserID is returned on upsert of an endpoint without a user.
	ErrMissingUserID = errors.New("endpoint user ID is required")
)

// Store handles push endpoint persistence. Writes to one user's endpoint
// set must be serializable per user; different users are independent.
type Store interface {
	// ListActive returns the active endpoints of a user. Zero results is a
	// normal state, not an error.
	ListActive(ctx context.Context, userID string) ([]Endpoint, error)

	// Upsert creates or replaces an endpoint, keyed by (user, endpoint ID).
	Upsert(ctx context.Context, ep Endpoint) error

	// Deactivate flips an endpoint inactive. The endpoint row survives until
	// the periodic purge.
	Deactivate(ctx context.Context, userID, endpointID string) error

	// DeactivateByEndpoint flips an endpoint inactive by its ID alone. Used
	// by the dispatch path, which learns about dead endpoints without a user
	// scope.
	DeactivateByEndpoint(ctx context.Context, endpointID string) error

	// PurgeInactive deletes endpoints that have been inactive since before
	// the cutoff. Returns the number of purged rows.
	PurgeInactive(ctx context.Context, cutoff time.Time) (int, error)
}
