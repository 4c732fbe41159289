package notify

import (
	"context"
	"time"
)

// RecordStore handles notification record persistence and retrieval.
type RecordStore interface {
	// Create stores a new record. The record ID must be set by the caller.
	Create(ctx context.Context, rec Record) error

	// Get retrieves a single record scoped to a user.
	Get(ctx context.Context, userID, recordID string) (*Record, error)

	// List returns records for a user, newest first. Expired records are
	// excluded.
	List(ctx context.Context, userID string, opts ListOptions) ([]Record, error)

	// MarkRead marks record(s) as read.
	MarkRead(ctx context.Context, userID string, recordIDs ...string) error

	// CountUnread returns the unread, unexpired record count for a user.
	CountUnread(ctx context.Context, userID string) (int, error)

	// FinishDispatch records the outcome of a dispatch attempt: the channels
	// actually attempted, the aggregate status and an optional diagnostic.
	// It clears any dispatch lock. Returns ErrAlreadyDispatched if the record
	// status already left StatusScheduled, which makes reprocessing
	// idempotent even across crashed cycles.
	FinishDispatch(ctx context.Context, recordID string, resolved []Channel, status Status, deliveryErr string) error

	// ClaimDue atomically claims up to limit records that are due for
	// dispatch: status StatusScheduled, scheduled time absent or at/before
	// now, and not locked by another claim. Claimed records are locked until
	// now+lockFor so a concurrent pass cannot double-dispatch them.
	ClaimDue(ctx context.Context, now time.Time, lockFor time.Duration, limit int) ([]Record, error)
}

// ListOptions provides filtering and pagination for listing records.
type ListOptions struct {
	Limit      int        // maximum number of records to return (0 = no limit)
	Offset     int        // number of records to skip
	OnlyUnread bool       // when true, only unread records are returned
	Categories []Category // if set, only records of these categories
	Since      *time.Time // if set, only records created after this instant
}
