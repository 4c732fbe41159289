package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acornstash/notifier/pkg/dispatch"
	"github.com/acornstash/notifier/pkg/notify"
	"github.com/acornstash/notifier/pkg/prefs"
	"github.com/acornstash/notifier/pkg/pushsub"
	"github.com/acornstash/notifier/pkg/quiethours"
)

// Fakes with function hooks, so each test scripts exactly the behavior it
// needs.

type fakeRealtime struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeRealtime) Push(ctx context.Context, userID string, rec notify.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeRealtime) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePush struct {
	mu   sync.Mutex
	sent []string // endpoint IDs
	fn   func(ep pushsub.Endpoint) error
}

func (f *fakePush) Send(ctx context.Context, ep pushsub.Endpoint, rec notify.Record) error {
	f.mu.Lock()
	f.sent = append(f.sent, ep.ID)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ep)
	}
	return nil
}

type fakeMail struct {
	mu   sync.Mutex
	msgs []dispatch.MailMessage
	fn   func(msg dispatch.MailMessage) error
}

func (f *fakeMail) Send(ctx context.Context, msg dispatch.MailMessage) error {
	f.mu.Lock()
	f.msgs = append(f.msgs, msg)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(msg)
	}
	return nil
}

type fakeDirectory struct {
	addr string
	err  error
}

func (f *fakeDirectory) EmailAddress(ctx context.Context, userID string) (string, error) {
	return f.addr, f.err
}

// harness wires a coordinator over real in-memory stores and scriptable
// channel fakes.
type harness struct {
	coordinator *dispatch.Coordinator
	records     *notify.MemoryRecordStore
	prefStore   *prefs.MemoryStore
	resolver    *prefs.Resolver
	registry    *pushsub.Registry
	realtime    *fakeRealtime
	push        *fakePush
	mail        *fakeMail
	clock       time.Time
}

func newHarness(t *testing.T, opts ...dispatch.Option) *harness {
	t.Helper()

	h := &harness{
		records:   notify.NewMemoryRecordStore(),
		prefStore: prefs.NewMemoryStore(),
		realtime:  &fakeRealtime{},
		push:      &fakePush{},
		mail:      &fakeMail{},
		clock:     time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC),
	}
	h.resolver = prefs.NewResolver(h.prefStore)
	h.registry = pushsub.NewRegistry(pushsub.NewMemoryStore())

	collab := dispatch.Collaborators{
		Realtime:  h.realtime,
		Push:      h.push,
		Mail:      h.mail,
		Directory: &fakeDirectory{addr: "saver@example.com"},
	}

	all := append([]dispatch.Option{
		dispatch.WithClock(func() time.Time { return h.clock }),
	}, opts...)

	coordinator, err := dispatch.NewCoordinator(h.records, h.resolver, h.registry, collab, all...)
	require.NoError(t, err)
	h.coordinator = coordinator
	return h
}

// milestoneIntent requests all three channels on a category whose default
// preference enables all three.
func milestoneIntent() notify.Intent {
	return notify.Intent{
		UserID:   "user-1",
		Category: notify.CategorySavingsMilestone,
		Title:    "You hit your first $100!",
		Body:     "Your pocket change added up.",
		Priority: notify.PriorityMedium,
		Channels: []notify.Channel{notify.ChannelInApp, notify.ChannelPush, notify.ChannelEmail},
	}
}

func TestSubmit_AllChannelsSucceed(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.registry.Upsert(ctx, pushsub.Endpoint{ID: "dev-1", UserID: "user-1", Token: "t"}))

	rec, err := h.coordinator.Submit(ctx, milestoneIntent())
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, notify.StatusSent, rec.Status)
	assert.Empty(t, rec.DeliveryErr)
	assert.ElementsMatch(t,
		[]notify.Channel{notify.ChannelInApp, notify.ChannelPush, notify.ChannelEmail},
		rec.Resolved)

	// Same logical entity in the store, no duplicates.
	stored, err := h.records.List(ctx, "user-1", notify.ListOptions{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, rec.ID, stored[0].ID)
	assert.Equal(t, notify.StatusSent, stored[0].Status)

	assert.Equal(t, 1, h.realtime.callCount())
	assert.Len(t, h.mail.msgs, 1)
	assert.Equal(t, "saver@example.com", h.mail.msgs[0].To)
}

func TestSubmit_PartialFailureNamesFailedChannel(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	// One endpoint that fails transiently: the push channel fails as a
	// whole, in-app and email succeed.
	require.NoError(t, h.registry.Upsert(ctx, pushsub.Endpoint{ID: "dev-1", UserID: "user-1", Token: "t"}))
	h.push.fn = func(pushsub.Endpoint) error { return errors.New("fcm unavailable") }

	rec, err := h.coordinator.Submit(ctx, milestoneIntent())
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, notify.StatusPartialFailure, rec.Status)
	assert.Contains(t, rec.DeliveryErr, "push")
	assert.Contains(t, rec.DeliveryErr, "fcm unavailable")
	assert.NotContains(t, rec.DeliveryErr, "email:")
	assert.NotContains(t, rec.DeliveryErr, "in_app:")

	stored, err := h.records.Get(ctx, "user-1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, notify.StatusPartialFailure, stored.Status)
}

func TestSubmit_AllChannelsFail(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.registry.Upsert(ctx, pushsub.Endpoint{ID: "dev-1", UserID: "user-1", Token: "t"}))
	h.realtime.err = errors.New("hub down")
	h.push.fn = func(pushsub.Endpoint) error { return errors.New("fcm unavailable") }
	h.mail.fn = func(dispatch.MailMessage) error { return errors.New("smtp refused") }

	rec, err := h.coordinator.Submit(ctx, milestoneIntent())
	require.NoError(t, err) // channel failures never reach the caller
	require.NotNil(t, rec)

	assert.Equal(t, notify.StatusFailed, rec.Status)
	assert.Contains(t, rec.DeliveryErr, "in_app")
	assert.Contains(t, rec.DeliveryErr, "push")
	assert.Contains(t, rec.DeliveryErr, "email")
}

func TestSubmit_RoutingNoOpSkipsPersistence(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	// Transactions default to in-app only; requesting push+email routes to
	// nothing.
	rec, err := h.coordinator.Submit(ctx, notify.Intent{
		UserID:   "user-1",
		Category: notify.CategoryTransaction,
		Title:    "Round-up saved",
		Priority: notify.PriorityLow,
		Channels: []notify.Channel{notify.ChannelPush, notify.ChannelEmail},
	})
	require.NoError(t, err)
	assert.Nil(t, rec)

	stored, err := h.records.List(ctx, "user-1", notify.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Equal(t, 0, h.realtime.callCount())
	assert.Empty(t, h.mail.msgs)
}

func TestSubmit_FutureIntentIsPersistedNotDispatched(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	later := h.clock.Add(2 * time.Hour)
	intent := milestoneIntent()
	intent.ScheduledFor = &later

	rec, err := h.coordinator.Submit(ctx, intent)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, notify.StatusScheduled, rec.Status)
	assert.Equal(t, 0, h.realtime.callCount())
	assert.Empty(t, h.push.sent)
	assert.Empty(t, h.mail.msgs)

	stored, err := h.records.Get(ctx, "user-1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, notify.StatusScheduled, stored.Status)
}

func TestSubmit_QuietHoursSuppressPushOnly(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.registry.Upsert(ctx, pushsub.Endpoint{ID: "dev-1", UserID: "user-1", Token: "t"}))
	qh := quiethours.Config{Enabled: true, Start: "22:00", End: "08:00", TimeZone: "UTC"}
	require.NoError(t, h.resolver.Upsert(ctx, "user-1", prefs.Patch{QuietHours: &qh}))

	h.clock = time.Date(2025, time.March, 10, 23, 0, 0, 0, time.UTC) // inside the window

	rec, err := h.coordinator.Submit(ctx, milestoneIntent())
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, notify.StatusSent, rec.Status)
	assert.ElementsMatch(t, []notify.Channel{notify.ChannelInApp, notify.ChannelEmail}, rec.Resolved)
	assert.Empty(t, h.push.sent)
}

func TestSubmit_UrgentBypassesQuietHours(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.registry.Upsert(ctx, pushsub.Endpoint{ID: "dev-1", UserID: "user-1", Token: "t"}))
	qh := quiethours.Config{Enabled: true, Start: "22:00", End: "08:00", TimeZone: "UTC"}
	require.NoError(t, h.resolver.Upsert(ctx, "user-1", prefs.Patch{QuietHours: &qh}))

	h.clock = time.Date(2025, time.March, 10, 23, 0, 0, 0, time.UTC)

	intent := milestoneIntent()
	intent.Priority = notify.PriorityUrgent

	rec, err := h.coordinator.Submit(ctx, intent)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Contains(t, rec.Resolved, notify.ChannelPush)
	assert.Equal(t, []string{"dev-1"}, h.push.sent)
}

func TestSubmit_GoneEndpointSelfHeals(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.registry.Upsert(ctx, pushsub.Endpoint{ID: "dead", UserID: "user-1", Token: "t1"}))
	require.NoError(t, h.registry.Upsert(ctx, pushsub.Endpoint{ID: "alive", UserID: "user-1", Token: "t2"}))

	h.push.fn = func(ep pushsub.Endpoint) error {
		if ep.ID == "dead" {
			return dispatch.ErrEndpointGone
		}
		return nil
	}

	rec, err := h.coordinator.Submit(ctx, milestoneIntent())
	require.NoError(t, err)
	require.NotNil(t, rec)

	// One live endpoint is enough: the push channel did not fail.
	assert.Equal(t, notify.StatusSent, rec.Status)

	// The gone endpoint is excluded from the very next listing.
	eps, err := h.registry.ListActive(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, "alive", eps[0].ID)
}

func TestSubmit_AllEndpointsGoneFailsChannel(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.registry.Upsert(ctx, pushsub.Endpoint{ID: "dead-1", UserID: "user-1", Token: "t1"}))
	require.NoError(t, h.registry.Upsert(ctx, pushsub.Endpoint{ID: "dead-2", UserID: "user-1", Token: "t2"}))
	h.push.fn = func(pushsub.Endpoint) error { return dispatch.ErrEndpointGone }

	rec, err := h.coordinator.Submit(ctx, milestoneIntent())
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, notify.StatusPartialFailure, rec.Status)
	assert.Contains(t, rec.DeliveryErr, "push")
	assert.Contains(t, rec.DeliveryErr, "gone")

	eps, err := h.registry.ListActive(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, eps)
}

func TestSubmit_ZeroEndpointsIsSilentNoOp(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	rec, err := h.coordinator.Submit(context.Background(), milestoneIntent())
	require.NoError(t, err)
	require.NotNil(t, rec)

	// No endpoints registered: push neither sent nor failed.
	assert.Equal(t, notify.StatusSent, rec.Status)
	assert.Empty(t, h.push.sent)
}

func TestSubmit_TimeoutCountsAsFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, dispatch.WithAttemptTimeout(30*time.Millisecond))
	ctx := context.Background()

	// A mail collaborator that ignores context cancellation entirely.
	h.mail.fn = func(dispatch.MailMessage) error {
		time.Sleep(500 * time.Millisecond)
		return nil
	}

	rec, err := h.coordinator.Submit(ctx, milestoneIntent())
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, notify.StatusPartialFailure, rec.Status)
	assert.Contains(t, rec.DeliveryErr, "email")
	assert.Contains(t, rec.DeliveryErr, "timed out")
}

func TestSubmit_InvalidIntent(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	_, err := h.coordinator.Submit(context.Background(), notify.Intent{
		UserID:   "user-1",
		Category: notify.Category("bogus"),
		Priority: notify.PriorityLow,
		Channels: []notify.Channel{notify.ChannelInApp},
	})
	require.ErrorIs(t, err, notify.ErrUnknownCategory)

	_, err = h.coordinator.Submit(context.Background(), notify.Intent{
		UserID:   "user-1",
		Category: notify.CategorySystem,
		Priority: notify.PriorityLow,
	})
	require.ErrorIs(t, err, notify.ErrNoChannelsRequested)
}

func TestRedispatch_ReRoutesWithCurrentPreferences(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	later := h.clock.Add(time.Hour)
	intent := milestoneIntent()
	intent.ScheduledFor = &later

	rec, err := h.coordinator.Submit(ctx, intent)
	require.NoError(t, err)
	require.NotNil(t, rec)

	// The user turns everything off between scheduling and dispatch.
	require.NoError(t, h.resolver.Upsert(ctx, "user-1", prefs.Patch{
		Categories: map[notify.Category]prefs.CategoryPreference{
			notify.CategorySavingsMilestone: {},
		},
	}))

	h.clock = later.Add(time.Minute)
	claimed, err := h.records.ClaimDue(ctx, h.clock, time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, h.coordinator.Redispatch(ctx, claimed[0]))

	stored, err := h.records.Get(ctx, "user-1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, notify.StatusFailed, stored.Status)
	assert.Contains(t, stored.DeliveryErr, "suppressed at dispatch time")
	assert.Equal(t, 0, h.realtime.callCount())
}

func TestRedispatch_DispatchesDueRecord(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	later := h.clock.Add(time.Hour)
	intent := milestoneIntent()
	intent.ScheduledFor = &later

	rec, err := h.coordinator.Submit(ctx, intent)
	require.NoError(t, err)

	h.clock = later.Add(time.Minute)
	claimed, err := h.records.ClaimDue(ctx, h.clock, time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, h.coordinator.Redispatch(ctx, claimed[0]))

	stored, err := h.records.Get(ctx, "user-1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, notify.StatusSent, stored.Status)
	assert.Equal(t, 1, h.realtime.callCount())
}

type unavailableRecordStore struct {
	notify.RecordStore
	err error
}

func (s unavailableRecordStore) Create(ctx context.Context, rec notify.Record) error {
	return s.err
}

func TestSubmit_StoreUnavailabilityIsFatalToTheCall(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	resolver := prefs.NewResolver(prefs.NewMemoryStore())
	registry := pushsub.NewRegistry(pushsub.NewMemoryStore())

	coordinator, err := dispatch.NewCoordinator(
		unavailableRecordStore{RecordStore: notify.NewMemoryRecordStore(), err: boom},
		resolver,
		registry,
		dispatch.Collaborators{Realtime: &fakeRealtime{}},
	)
	require.NoError(t, err)

	_, err = coordinator.Submit(context.Background(), notify.Intent{
		UserID:   "user-1",
		Category: notify.CategorySystem,
		Title:    "Maintenance window",
		Priority: notify.PriorityHigh,
		Channels: []notify.Channel{notify.ChannelInApp},
	})
	require.ErrorIs(t, err, boom)
}
