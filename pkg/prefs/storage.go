package prefs

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.Get when a user has no stored
// configuration. Callers must treat this as a normal, expected state.
var ErrNotFound = errors.New("preferences not found")

// Store handles preference persistence. Implementations only deal with the
// stored shape; the fallback-to-defaults behavior lives in Resolver.
type Store interface {
	// Get retrieves a user's stored preferences, or ErrNotFound.
	Get(ctx context.Context, userID string) (*UserPreferences, error)

	// Put stores the full preference document for a user, replacing any
	// previous one.
	Put(ctx context.Context, userID string, p UserPreferences) error

	// ListByDigest returns the IDs of every user whose digest preference
	// matches the given cadence.
	ListByDigest(ctx context.Context, freq DigestFrequency) ([]string, error)
}
