package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/acornstash/notifier/pkg/schedule"
)

func TestDailyAt(t *testing.T) {
	t.Parallel()

	s := schedule.DailyAt(18, 0)

	// Before today's boundary.
	from := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC), s.Next(from))
	assert.Equal(t, time.Date(2025, time.March, 9, 18, 0, 0, 0, time.UTC), s.Prev(from))

	// Exactly at the boundary: Next moves on, Prev stays.
	at := time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.March, 11, 18, 0, 0, 0, time.UTC), s.Next(at))
	assert.Equal(t, at, s.Prev(at))

	// After today's boundary.
	after := time.Date(2025, time.March, 10, 22, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.March, 11, 18, 0, 0, 0, time.UTC), s.Next(after))
	assert.Equal(t, at, s.Prev(after))

	assert.Equal(t, 24*time.Hour, s.Period())
	assert.Equal(t, "daily at 18:00", s.String())
}

func TestWeeklyOn(t *testing.T) {
	t.Parallel()

	s := schedule.WeeklyOn(time.Sunday, 18, 0)

	// March 10 2025 is a Monday.
	monday := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.March, 16, 18, 0, 0, 0, time.UTC), s.Next(monday))
	assert.Equal(t, time.Date(2025, time.March, 9, 18, 0, 0, 0, time.UTC), s.Prev(monday))

	// Sunday before the boundary hour.
	sundayMorning := time.Date(2025, time.March, 16, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.March, 16, 18, 0, 0, 0, time.UTC), s.Next(sundayMorning))
	assert.Equal(t, time.Date(2025, time.March, 9, 18, 0, 0, 0, time.UTC), s.Prev(sundayMorning))

	// Sunday exactly at the boundary.
	sundayBoundary := time.Date(2025, time.March, 16, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.March, 23, 18, 0, 0, 0, time.UTC), s.Next(sundayBoundary))
	assert.Equal(t, sundayBoundary, s.Prev(sundayBoundary))

	assert.Equal(t, 7*24*time.Hour, s.Period())
	assert.Equal(t, "weekly on Sunday at 18:00", s.String())
}

func TestEvery(t *testing.T) {
	t.Parallel()

	s := schedule.Every(6 * time.Hour)

	from := time.Date(2025, time.March, 10, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC), s.Next(from))
	assert.Equal(t, time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC), s.Prev(from))

	// Exactly at a boundary: Prev stays, Next advances.
	at := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, at, s.Prev(at))
	assert.Equal(t, time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC), s.Next(at))

	assert.Equal(t, 6*time.Hour, s.Period())
	assert.Equal(t, "every 6h0m0s", s.String())

	// Sub-minute intervals are clamped.
	assert.Equal(t, time.Minute, schedule.Every(time.Second).Period())
}
