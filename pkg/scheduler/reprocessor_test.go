package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acornstash/notifier/pkg/notify"
	"github.com/acornstash/notifier/pkg/scheduler"
)

type recordingDispatcher struct {
	mu   sync.Mutex
	recs []notify.Record
	fn   func(rec notify.Record) error
	// finish mirrors what the real coordinator does on success, so
	// reprocessed records leave the scheduled state.
	finish notify.RecordStore
}

func (d *recordingDispatcher) Redispatch(ctx context.Context, rec notify.Record) error {
	d.mu.Lock()
	d.recs = append(d.recs, rec)
	d.mu.Unlock()
	if d.fn != nil {
		if err := d.fn(rec); err != nil {
			return err
		}
	}
	if d.finish != nil {
		return d.finish.FinishDispatch(ctx, rec.ID, rec.Channels, notify.StatusSent, "")
	}
	return nil
}

func scheduledRecord(id string, at time.Time) notify.Record {
	return notify.Record{
		ID:           id,
		UserID:       "user-1",
		Category:     notify.CategoryChallenge,
		Title:        "Challenge starts soon",
		Priority:     notify.PriorityMedium,
		Channels:     []notify.Channel{notify.ChannelInApp},
		Status:       notify.StatusScheduled,
		ScheduledFor: &at,
		CreatedAt:    at.Add(-time.Hour),
	}
}

func TestReprocessor_DispatchesOnlyDueRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notify.NewMemoryRecordStore()
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Create(ctx, scheduledRecord("rec-due", now.Add(-time.Minute))))
	require.NoError(t, store.Create(ctx, scheduledRecord("rec-future", now.Add(time.Hour))))

	dispatcher := &recordingDispatcher{finish: store}
	rep, err := scheduler.NewReprocessor(store, dispatcher,
		scheduler.WithReprocessorClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	n, err := rep.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, dispatcher.recs, 1)
	assert.Equal(t, "rec-due", dispatcher.recs[0].ID)
}

func TestReprocessor_SecondPassIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notify.NewMemoryRecordStore()
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Create(ctx, scheduledRecord("rec-due", now.Add(-time.Minute))))

	dispatcher := &recordingDispatcher{finish: store}
	rep, err := scheduler.NewReprocessor(store, dispatcher,
		scheduler.WithReprocessorClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	n, err := rep.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The record left the scheduled state; a later pass finds nothing even
	// after the claim lock would have expired.
	now = now.Add(time.Hour)
	n, err = rep.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, dispatcher.recs, 1)
}

func TestReprocessor_CrashedDispatchIsRetriedAfterLockExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notify.NewMemoryRecordStore()
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Create(ctx, scheduledRecord("rec-due", now.Add(-time.Minute))))

	// First dispatcher dies mid-flight: the record keeps its claim lock and
	// stays scheduled.
	crashed := &recordingDispatcher{fn: func(notify.Record) error { return errors.New("process killed") }}
	rep, err := scheduler.NewReprocessor(store, crashed,
		scheduler.WithReprocessorClock(func() time.Time { return now }),
		scheduler.WithLockFor(time.Minute),
	)
	require.NoError(t, err)

	n, err := rep.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Within the lock window nothing is claimable.
	healthy := &recordingDispatcher{finish: store}
	rep2, err := scheduler.NewReprocessor(store, healthy,
		scheduler.WithReprocessorClock(func() time.Time { return now.Add(30 * time.Second) }),
	)
	require.NoError(t, err)

	n, err = rep2.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// After expiry the orphan is picked up.
	rep3, err := scheduler.NewReprocessor(store, healthy,
		scheduler.WithReprocessorClock(func() time.Time { return now.Add(2 * time.Minute) }),
	)
	require.NoError(t, err)

	n, err = rep3.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReprocessor_DrainsInBatches(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notify.NewMemoryRecordStore()
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"rec-1", "rec-2", "rec-3", "rec-4", "rec-5"} {
		require.NoError(t, store.Create(ctx, scheduledRecord(id, now.Add(-time.Minute))))
	}

	dispatcher := &recordingDispatcher{finish: store}
	rep, err := scheduler.NewReprocessor(store, dispatcher,
		scheduler.WithReprocessorClock(func() time.Time { return now }),
		scheduler.WithBatchSize(2),
	)
	require.NoError(t, err)

	n, err := rep.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestReprocessor_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := scheduler.NewReprocessor(nil, &recordingDispatcher{})
	require.Error(t, err)

	_, err = scheduler.NewReprocessor(notify.NewMemoryRecordStore(), nil)
	require.Error(t, err)
}
