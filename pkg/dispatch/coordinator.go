package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acornstash/notifier/pkg/logger"
	"github.com/acornstash/notifier/pkg/notify"
	"github.com/acornstash/notifier/pkg/prefs"
	"github.com/acornstash/notifier/pkg/pushsub"
	"github.com/acornstash/notifier/pkg/quiethours"
	"github.com/acornstash/notifier/pkg/router"
)

const (
	defaultAttemptTimeout = 10 * time.Second

	// dispatchLockGrace pads the dispatch lock past the attempt timeout so
	// the reprocessor never claims a record whose fan-out is still running.
	dispatchLockGrace = 30 * time.Second
)

// Coordinator is the dispatch engine: it routes an intent, persists the
// record and fans delivery out across the resolved channels concurrently.
// Channel failures are isolated and recorded on the record; callers only
// see store-level errors.
type Coordinator struct {
	records notify.RecordStore
	prefs   *prefs.Resolver
	subs    *pushsub.Registry
	collab  Collaborators

	attemptTimeout time.Duration
	clock          func() time.Time
	log            *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithAttemptTimeout bounds each per-channel delivery attempt.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.attemptTimeout = d
		}
	}
}

// NewCoordinator creates a dispatch coordinator with injected collaborators.
func NewCoordinator(records notify.RecordStore, resolver *prefs.Resolver, subs *pushsub.Registry, collab Collaborators, opts ...Option) (*Coordinator, error) {
	if records == nil || resolver == nil {
		return nil, ErrNilStore
	}

	c := &Coordinator{
		records:        records,
		prefs:          resolver,
		subs:           subs,
		collab:         collab,
		attemptTimeout: defaultAttemptTimeout,
		clock:          time.Now,
		log:            slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit routes and dispatches a notification intent.
//
// When routing removes every requested channel the call is a no-op: nothing
// is persisted and (nil, nil) is returned. When the intent is scheduled for
// the future the record is persisted with StatusScheduled and picked up
// later by the reprocessor. Otherwise delivery is attempted immediately and
// the returned record carries the aggregate outcome.
//
// Submit returns an error only for invalid intents and store unavailability.
// Per-channel delivery failures never reach the caller; operators find them
// on records with a non-sent status.
func (c *Coordinator) Submit(ctx context.Context, intent notify.Intent) (*notify.Record, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}

	now := c.clock()

	pref, err := c.prefs.ResolveCategory(ctx, intent.UserID, intent.Category)
	if err != nil {
		return nil, err
	}
	suppressed, err := c.quietSuppressed(ctx, intent.UserID, intent.Priority, now)
	if err != nil {
		return nil, err
	}

	channels := router.Resolve(intent.Channels, pref, suppressed)
	if len(channels) == 0 {
		c.log.LogAttrs(ctx, slog.LevelDebug, "all channels suppressed, skipping dispatch",
			logger.UserID(intent.UserID),
			logger.Category(string(intent.Category)),
		)
		return nil, nil
	}

	rec := notify.Record{
		ID:           uuid.New().String(),
		UserID:       intent.UserID,
		Category:     intent.Category,
		Title:        intent.Title,
		Body:         intent.Body,
		Data:         intent.Data,
		Priority:     intent.Priority,
		Channels:     slices.Clone(intent.Channels),
		Resolved:     channels,
		Status:       notify.StatusScheduled,
		ScheduledFor: intent.ScheduledFor,
		ExpiresAt:    intent.ExpiresAt,
		CreatedAt:    now,
	}

	if intent.ScheduledFor != nil && intent.ScheduledFor.After(now) {
		if err := c.records.Create(ctx, rec); err != nil {
			return nil, fmt.Errorf("persist scheduled record: %w", err)
		}
		c.log.LogAttrs(ctx, slog.LevelDebug, "notification deferred",
			logger.RecordID(rec.ID),
			logger.UserID(rec.UserID),
			slog.Time("scheduled_for", *intent.ScheduledFor),
		)
		return &rec, nil
	}

	// Lock the record for the duration of the immediate dispatch so a
	// concurrent reprocessor pass cannot claim it mid-flight.
	lockedUntil := now.Add(c.attemptTimeout + dispatchLockGrace)
	rec.LockedUntil = &lockedUntil
	if err := c.records.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist record: %w", err)
	}

	status, diag := c.fanOut(ctx, rec, channels)
	if err := c.records.FinishDispatch(context.WithoutCancel(ctx), rec.ID, channels, status, diag); err != nil {
		return nil, fmt.Errorf("finish dispatch: %w", err)
	}

	rec.Status = status
	rec.DeliveryErr = diag
	rec.LockedUntil = nil
	return &rec, nil
}

// Redispatch re-runs the immediate-dispatch path for a record the
// reprocessor claimed as due. Routing is re-resolved against current
// preferences and quiet hours: both are time-dependent facts that should
// reflect "now", not "when requested".
func (c *Coordinator) Redispatch(ctx context.Context, rec notify.Record) error {
	now := c.clock()

	pref, err := c.prefs.ResolveCategory(ctx, rec.UserID, rec.Category)
	if err != nil {
		return err
	}
	suppressed, err := c.quietSuppressed(ctx, rec.UserID, rec.Priority, now)
	if err != nil {
		return err
	}

	channels := router.Resolve(rec.Channels, pref, suppressed)
	if len(channels) == 0 {
		// A persisted record cannot be silently dropped, and scheduled must
		// not be a terminal state: close it out as failed with a diagnostic.
		err := c.records.FinishDispatch(ctx, rec.ID, nil, notify.StatusFailed, "all channels suppressed at dispatch time")
		if errors.Is(err, notify.ErrAlreadyDispatched) {
			return nil
		}
		return err
	}

	status, diag := c.fanOut(ctx, rec, channels)
	if err := c.records.FinishDispatch(context.WithoutCancel(ctx), rec.ID, channels, status, diag); err != nil {
		return fmt.Errorf("finish redispatch: %w", err)
	}

	c.log.LogAttrs(ctx, slog.LevelInfo, "scheduled notification dispatched",
		logger.RecordID(rec.ID),
		logger.UserID(rec.UserID),
		slog.String("status", string(status)),
	)
	return nil
}

// quietSuppressed evaluates the user's quiet-hours window. Urgent delivery
// is never suppressed, so the window is not even consulted.
func (c *Coordinator) quietSuppressed(ctx context.Context, userID string, priority notify.Priority, now time.Time) (bool, error) {
	if priority == notify.PriorityUrgent {
		return false, nil
	}

	cfg, err := c.prefs.QuietHours(ctx, userID)
	if err != nil {
		return false, err
	}

	suppressed, err := quiethours.IsSuppressed(cfg, now)
	if err != nil {
		// A stored window that no longer parses must not block delivery.
		c.log.LogAttrs(ctx, slog.LevelWarn, "invalid quiet hours config, treating as not suppressed",
			logger.UserID(userID),
			logger.Error(err),
		)
		return false, nil
	}
	return suppressed, nil
}

type attemptResult struct {
	channel notify.Channel
	err     error
}

// fanOut attempts delivery on every channel concurrently and independently,
// waits for all of them, and aggregates the outcome. One channel's failure
// never cancels its siblings.
func (c *Coordinator) fanOut(ctx context.Context, rec notify.Record, channels []notify.Channel) (notify.Status, string) {
	results := make(chan attemptResult, len(channels))

	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func(ch notify.Channel) {
			defer wg.Done()

			// Detached from the caller's cancellation: a shutdown mid-dispatch
			// lets in-flight attempts finish or time out rather than abandoning
			// them mid-write. The timeout alone bounds the attempt.
			actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.attemptTimeout)
			defer cancel()

			results <- attemptResult{channel: ch, err: c.boundedAttempt(actx, ch, rec)}
		}(ch)
	}
	wg.Wait()
	close(results)

	var failures []string
	succeeded := 0
	for res := range results {
		if res.err == nil {
			succeeded++
			continue
		}
		failures = append(failures, fmt.Sprintf("%s: %v", res.channel, res.err))
		c.log.LogAttrs(ctx, slog.LevelError, "channel delivery failed",
			logger.RecordID(rec.ID),
			logger.UserID(rec.UserID),
			logger.Channel(string(res.channel)),
			logger.Error(res.err),
		)
	}

	// Deterministic diagnostics regardless of goroutine completion order.
	slices.Sort(failures)

	switch {
	case len(failures) == 0:
		return notify.StatusSent, ""
	case succeeded == 0:
		return notify.StatusFailed, strings.Join(failures, "; ")
	default:
		return notify.StatusPartialFailure, strings.Join(failures, "; ")
	}
}

// boundedAttempt guarantees the timeout even against collaborators that
// ignore context cancellation.
func (c *Coordinator) boundedAttempt(ctx context.Context, ch notify.Channel, rec notify.Record) error {
	done := make(chan error, 1)
	go func() {
		done <- c.attempt(ctx, ch, rec)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("delivery timed out: %w", ctx.Err())
	}
}

func (c *Coordinator) attempt(ctx context.Context, ch notify.Channel, rec notify.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s delivery: %v", ch, r)
		}
	}()

	switch ch {
	case notify.ChannelInApp:
		return c.deliverInApp(ctx, rec)
	case notify.ChannelPush:
		return c.deliverPush(ctx, rec)
	case notify.ChannelEmail:
		return c.deliverEmail(ctx, rec)
	default:
		return notify.ErrUnknownChannel
	}
}

func (c *Coordinator) deliverInApp(ctx context.Context, rec notify.Record) error {
	if c.collab.Realtime == nil {
		return ErrChannelUnavailable
	}
	// Fire and forget: no retry, at-most-once.
	return c.collab.Realtime.Push(ctx, rec.UserID, rec)
}

func (c *Coordinator) deliverEmail(ctx context.Context, rec notify.Record) error {
	if c.collab.Mail == nil || c.collab.Directory == nil {
		return ErrChannelUnavailable
	}

	addr, err := c.collab.Directory.EmailAddress(ctx, rec.UserID)
	if err != nil {
		return fmt.Errorf("resolve email address: %w", err)
	}
	if addr == "" {
		return ErrNoEmailAddress
	}

	return c.collab.Mail.Send(ctx, MailMessage{
		To:      addr,
		Subject: rec.Title,
		HTML:    rec.Body,
		Text:    rec.Body,
	})
}

// deliverPush fans out to every active endpoint of the user. Zero endpoints
// is a silent no-op. An endpoint the provider reports gone is invalidated in
// the registry; the channel as a whole fails only when every endpoint fails.
func (c *Coordinator) deliverPush(ctx context.Context, rec notify.Record) error {
	if c.collab.Push == nil || c.subs == nil {
		return ErrChannelUnavailable
	}

	endpoints, err := c.subs.ListActive(ctx, rec.UserID)
	if err != nil {
		return fmt.Errorf("list push endpoints: %w", err)
	}
	if len(endpoints) == 0 {
		return nil
	}

	var failures []string
	delivered := 0
	for _, ep := range endpoints {
		err := c.collab.Push.Send(ctx, ep, rec)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, ErrEndpointGone):
			failures = append(failures, fmt.Sprintf("endpoint %s gone", ep.ID))
			if mErr := c.subs.MarkInvalid(ctx, ep.ID); mErr != nil {
				c.log.LogAttrs(ctx, slog.LevelError, "failed to invalidate gone endpoint",
					logger.EndpointID(ep.ID),
					logger.Error(mErr),
				)
			}
		default:
			failures = append(failures, fmt.Sprintf("endpoint %s: %v", ep.ID, err))
		}
	}

	if delivered > 0 {
		return nil
	}
	return fmt.Errorf("all %d endpoint(s) failed: %s", len(endpoints), strings.Join(failures, "; "))
}
