package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/acornstash/notifier/pkg/logger"
	"github.com/acornstash/notifier/pkg/notify"
)

const (
	defaultBatchSize = 50
	defaultLockFor   = 2 * time.Minute
)

// Redispatcher dispatches a previously persisted record. Implemented by
// dispatch.Coordinator.
type Redispatcher interface {
	Redispatch(ctx context.Context, rec notify.Record) error
}

// Reprocessor drains due scheduled records. It picks up records whose
// scheduled time has arrived as well as records orphaned by a crashed
// dispatch, once their claim lock expires.
type Reprocessor struct {
	records    notify.RecordStore
	dispatcher Redispatcher
	batchSize  int
	lockFor    time.Duration
	clock      func() time.Time
	log        *slog.Logger
}

// ReprocessorOption configures a Reprocessor.
type ReprocessorOption func(*Reprocessor)

// WithReprocessorLogger sets the logger.
func WithReprocessorLogger(log *slog.Logger) ReprocessorOption {
	return func(r *Reprocessor) { r.log = log }
}

// WithReprocessorClock overrides the time source. Intended for tests.
func WithReprocessorClock(clock func() time.Time) ReprocessorOption {
	return func(r *Reprocessor) { r.clock = clock }
}

// WithBatchSize sets how many records a single claim fetches.
func WithBatchSize(n int) ReprocessorOption {
	return func(r *Reprocessor) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithLockFor sets how long a claimed record stays invisible to other
// passes. Must exceed the worst-case dispatch time of a batch.
func WithLockFor(d time.Duration) ReprocessorOption {
	return func(r *Reprocessor) {
		if d > 0 {
			r.lockFor = d
		}
	}
}

// NewReprocessor creates a reprocessor over the given store and dispatcher.
func NewReprocessor(records notify.RecordStore, dispatcher Redispatcher, opts ...ReprocessorOption) (*Reprocessor, error) {
	if records == nil || dispatcher == nil {
		return nil, fmt.Errorf("reprocessor: record store and dispatcher are required")
	}

	r := &Reprocessor{
		records:    records,
		dispatcher: dispatcher,
		batchSize:  defaultBatchSize,
		lockFor:    defaultLockFor,
		clock:      time.Now,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run claims and dispatches due records in batches until the store is
// drained or the context is canceled. It returns the number of records
// handed to the dispatcher. A failed dispatch of one record never stops the
// pass; the record's own status captures the outcome.
func (r *Reprocessor) Run(ctx context.Context) (int, error) {
	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		batch, err := r.records.ClaimDue(ctx, r.clock(), r.lockFor, r.batchSize)
		if err != nil {
			return processed, fmt.Errorf("claim due records: %w", err)
		}
		if len(batch) == 0 {
			return processed, nil
		}

		for _, rec := range batch {
			if err := r.dispatcher.Redispatch(ctx, rec); err != nil {
				r.log.ErrorContext(ctx, "redispatch failed",
					logger.RecordID(rec.ID),
					logger.UserID(rec.UserID),
					logger.Error(err),
				)
				continue
			}
			processed++
		}

		if len(batch) < r.batchSize {
			return processed, nil
		}
	}
}
