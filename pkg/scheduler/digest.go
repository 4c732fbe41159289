package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/acornstash/notifier/pkg/digest"
	"github.com/acornstash/notifier/pkg/logger"
	"github.com/acornstash/notifier/pkg/notify"
	"github.com/acornstash/notifier/pkg/prefs"
	"github.com/acornstash/notifier/pkg/schedule"
)

// Submitter accepts a notification intent for routing and delivery.
// Implemented by dispatch.Coordinator.
type Submitter interface {
	Submit(ctx context.Context, intent notify.Intent) (*notify.Record, error)
}

// DigestEmitter produces periodic activity summaries for users subscribed to
// a digest cadence. Each pass checks, per cadence, whether the most recent
// boundary has passed without a digest being emitted, and if so summarizes
// the elapsed period and submits one summary notification per active user.
type DigestEmitter struct {
	submitter Submitter
	resolver  *prefs.Resolver
	activity  digest.ActivityStore
	records   notify.RecordStore
	schedules map[prefs.DigestFrequency]schedule.Schedule
	clock     func() time.Time
	log       *slog.Logger
}

// DigestOption configures a DigestEmitter.
type DigestOption func(*DigestEmitter)

// WithDigestLogger sets the logger.
func WithDigestLogger(log *slog.Logger) DigestOption {
	return func(e *DigestEmitter) { e.log = log }
}

// WithDigestClock overrides the time source. Intended for tests.
func WithDigestClock(clock func() time.Time) DigestOption {
	return func(e *DigestEmitter) { e.clock = clock }
}

// WithCadence overrides the boundary schedule for a digest frequency.
func WithCadence(freq prefs.DigestFrequency, sched schedule.Schedule) DigestOption {
	return func(e *DigestEmitter) { e.schedules[freq] = sched }
}

// NewDigestEmitter creates a digest emitter. Default cadences are daily at
// 18:00 and weekly on Sunday at 18:00, evaluated in the process time zone.
func NewDigestEmitter(
	submitter Submitter,
	resolver *prefs.Resolver,
	activity digest.ActivityStore,
	records notify.RecordStore,
	opts ...DigestOption,
) (*DigestEmitter, error) {
	if submitter == nil || resolver == nil || activity == nil || records == nil {
		return nil, fmt.Errorf("digest emitter: all collaborators are required")
	}

	e := &DigestEmitter{
		submitter: submitter,
		resolver:  resolver,
		activity:  activity,
		records:   records,
		schedules: map[prefs.DigestFrequency]schedule.Schedule{
			prefs.DigestDaily:  schedule.DailyAt(18, 0),
			prefs.DigestWeekly: schedule.WeeklyOn(time.Sunday, 18, 0),
		},
		clock: time.Now,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run executes one digest pass across all cadences. It returns the number of
// digests emitted. Per-user failures are logged and skipped so one broken
// account never starves the rest of the cohort.
func (e *DigestEmitter) Run(ctx context.Context) (int, error) {
	emitted := 0
	for _, freq := range []prefs.DigestFrequency{prefs.DigestDaily, prefs.DigestWeekly} {
		n, err := e.runCadence(ctx, freq)
		emitted += n
		if err != nil {
			return emitted, err
		}
	}
	return emitted, nil
}

func (e *DigestEmitter) runCadence(ctx context.Context, freq prefs.DigestFrequency) (int, error) {
	sched, ok := e.schedules[freq]
	if !ok {
		return 0, nil
	}

	now := e.clock()
	boundary := sched.Prev(now)

	users, err := e.resolver.ListByDigest(ctx, freq)
	if err != nil {
		return 0, fmt.Errorf("list %s digest subscribers: %w", freq, err)
	}

	emitted := 0
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return emitted, err
		}

		ok, err := e.emitForUser(ctx, userID, freq, sched, boundary, now)
		if err != nil {
			e.log.ErrorContext(ctx, "digest emission failed",
				logger.UserID(userID),
				slog.String("frequency", string(freq)),
				logger.Error(err),
			)
			continue
		}
		if ok {
			emitted++
		}
	}
	return emitted, nil
}

// emitForUser emits at most one digest for the user's current period.
// Reports whether a digest was submitted.
func (e *DigestEmitter) emitForUser(
	ctx context.Context,
	userID string,
	freq prefs.DigestFrequency,
	sched schedule.Schedule,
	boundary, now time.Time,
) (bool, error) {
	last, err := e.records.List(ctx, userID, notify.ListOptions{
		Categories: []notify.Category{notify.CategoryDigest},
		Limit:      1,
	})
	if err != nil {
		return false, fmt.Errorf("load last digest: %w", err)
	}
	// Already emitted since the boundary: the period is covered.
	if len(last) > 0 && !last[0].CreatedAt.Before(boundary) {
		return false, nil
	}

	agg, err := e.activity.Summarize(ctx, userID, now.Add(-sched.Period()), now)
	if err != nil {
		return false, fmt.Errorf("summarize activity: %w", err)
	}
	// Quiet period, no digest. The gate above still holds next pass, so the
	// user is rechecked until the next boundary.
	if agg.IsZero() {
		return false, nil
	}

	title, body := composeDigest(freq, agg)
	_, err = e.submitter.Submit(ctx, notify.Intent{
		UserID:   userID,
		Category: notify.CategoryDigest,
		Title:    title,
		Body:     body,
		Data: map[string]any{
			"amount_saved":          agg.AmountSaved,
			"achievements_unlocked": agg.AchievementsUnlocked,
			"challenges_completed":  agg.ChallengesCompleted,
			"yield_earned":          agg.YieldEarned,
			"streak_days":           agg.StreakDays,
			"frequency":             string(freq),
		},
		Priority: notify.PriorityLow,
		Channels: []notify.Channel{notify.ChannelEmail},
	})
	if err != nil {
		return false, fmt.Errorf("submit digest: %w", err)
	}

	e.log.InfoContext(ctx, "digest emitted",
		logger.UserID(userID),
		slog.String("frequency", string(freq)),
		slog.Float64("amount_saved", agg.AmountSaved),
	)
	return true, nil
}

func composeDigest(freq prefs.DigestFrequency, agg digest.Aggregate) (string, string) {
	period := "today"
	if freq == prefs.DigestWeekly {
		period = "this week"
	}

	title := fmt.Sprintf("Your savings recap for %s", period)

	var lines []string
	if agg.AmountSaved > 0 {
		lines = append(lines, fmt.Sprintf("You saved $%.2f %s.", agg.AmountSaved, period))
	}
	if agg.YieldEarned > 0 {
		lines = append(lines, fmt.Sprintf("Your stash earned $%.2f in yield.", agg.YieldEarned))
	}
	if agg.AchievementsUnlocked > 0 {
		lines = append(lines, fmt.Sprintf("You unlocked %d achievement(s).", agg.AchievementsUnlocked))
	}
	if agg.ChallengesCompleted > 0 {
		lines = append(lines, fmt.Sprintf("You completed %d challenge(s).", agg.ChallengesCompleted))
	}
	if agg.StreakDays > 1 {
		lines = append(lines, fmt.Sprintf("You're on a %d-day saving streak. Keep it going!", agg.StreakDays))
	}
	return title, strings.Join(lines, " ")
}
