// Package schedule provides cadence calculations for the periodic digest
// emitter: given "daily at 18:00" or "weekly on Sunday at 18:00", it answers
// when the next boundary falls and when the most recent one passed.
package schedule

import (
	"fmt"
	"time"
)

// Schedule determines the cadence boundaries of a periodic job.
type Schedule interface {
	// Next returns the first boundary strictly after from.
	Next(from time.Time) time.Time
	// Prev returns the most recent boundary at or before from.
	Prev(from time.Time) time.Time
	// Period returns the nominal distance between boundaries.
	Period() time.Duration
	String() string
}

// dailySchedule runs once per day at the specified wall-clock time.
type dailySchedule struct {
	hour   int
	minute int
}

func (s dailySchedule) Next(from time.Time) time.Time {
	next := time.Date(
		from.Year(), from.Month(), from.Day(),
		s.hour, s.minute, 0, 0, from.Location(),
	)
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s dailySchedule) Prev(from time.Time) time.Time {
	prev := time.Date(
		from.Year(), from.Month(), from.Day(),
		s.hour, s.minute, 0, 0, from.Location(),
	)
	if prev.After(from) {
		prev = prev.AddDate(0, 0, -1)
	}
	return prev
}

func (s dailySchedule) Period() time.Duration {
	return 24 * time.Hour
}

func (s dailySchedule) String() string {
	return fmt.Sprintf("daily at %02d:%02d", s.hour, s.minute)
}

// weeklySchedule runs once per week on the specified day and time.
type weeklySchedule struct {
	weekday time.Weekday
	hour    int
	minute  int
}

func (s weeklySchedule) Next(from time.Time) time.Time {
	daysUntil := (int(s.weekday) - int(from.Weekday()) + 7) % 7

	next := from.AddDate(0, 0, daysUntil)
	next = time.Date(
		next.Year(), next.Month(), next.Day(),
		s.hour, s.minute, 0, 0, next.Location(),
	)
	if !next.After(from) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func (s weeklySchedule) Prev(from time.Time) time.Time {
	daysSince := (int(from.Weekday()) - int(s.weekday) + 7) % 7

	prev := from.AddDate(0, 0, -daysSince)
	prev = time.Date(
		prev.Year(), prev.Month(), prev.Day(),
		s.hour, s.minute, 0, 0, prev.Location(),
	)
	if prev.After(from) {
		prev = prev.AddDate(0, 0, -7)
	}
	return prev
}

func (s weeklySchedule) Period() time.Duration {
	return 7 * 24 * time.Hour
}

func (s weeklySchedule) String() string {
	return fmt.Sprintf("weekly on %s at %02d:%02d", s.weekday, s.hour, s.minute)
}

// intervalSchedule runs on fixed-duration boundaries anchored at the Unix
// epoch, so every process computes the same boundaries.
type intervalSchedule struct {
	interval time.Duration
}

func (s intervalSchedule) Next(from time.Time) time.Time {
	elapsed := from.Sub(time.Unix(0, 0).UTC())
	periods := elapsed / s.interval
	next := time.Unix(0, 0).UTC().Add((periods + 1) * s.interval)
	return next.In(from.Location())
}

func (s intervalSchedule) Prev(from time.Time) time.Time {
	elapsed := from.Sub(time.Unix(0, 0).UTC())
	periods := elapsed / s.interval
	prev := time.Unix(0, 0).UTC().Add(periods * s.interval)
	return prev.In(from.Location())
}

func (s intervalSchedule) Period() time.Duration {
	return s.interval
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %s", s.interval)
}

// DailyAt creates a schedule with a boundary every day at the given time.
func DailyAt(hour, minute int) Schedule {
	return dailySchedule{hour: hour, minute: minute}
}

// WeeklyOn creates a schedule with a boundary every week on the given day
// and time.
func WeeklyOn(weekday time.Weekday, hour, minute int) Schedule {
	return weeklySchedule{weekday: weekday, hour: hour, minute: minute}
}

// Every creates a schedule with epoch-anchored boundaries every interval.
// Intervals below one minute are clamped to one minute.
func Every(interval time.Duration) Schedule {
	return intervalSchedule{interval: max(interval, time.Minute)}
}
