package quiethours

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidTime is returned when a wall-clock value is not "HH:MM".
	ErrInvalidTime = errors.New("invalid wall-clock time, expected HH:MM")

	// ErrInvalidTimeZone is returned when the configured zone name is unknown.
	ErrInvalidTimeZone = errors.New("invalid time zone")
)

// Config is a per-user suppression window. Start and End are wall-clock
// times with minute precision in the "HH:MM" 24-hour format, interpreted in
// TimeZone. When Start > End the window wraps midnight and spans two
// calendar days.
type Config struct {
	Enabled  bool   `json:"enabled"`
	Start    string `json:"start"`
	End      string `json:"end"`
	TimeZone string `json:"time_zone"`
}

// Disabled returns a config that never suppresses.
func Disabled() Config {
	return Config{}
}

// IsSuppressed reports whether a non-urgent push delivery should be
// suppressed at the given instant. The function is pure: it performs no I/O
// and is fully determined by its inputs.
//
// Boundary minutes are inclusive on both ends: at exactly Start and exactly
// End the window suppresses.
func IsSuppressed(cfg Config, now time.Time) (bool, error) {
	if !cfg.Enabled {
		return false, nil
	}

	start, err := parseMinute(cfg.Start)
	if err != nil {
		return false, err
	}
	end, err := parseMinute(cfg.End)
	if err != nil {
		return false, err
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrInvalidTimeZone, cfg.TimeZone)
	}

	local := now.In(loc)
	cur := local.Hour()*60 + local.Minute()

	if start <= end {
		// Same-day window, e.g. 13:00-15:00.
		return cur >= start && cur <= end, nil
	}
	// Overnight window, e.g. 22:00-08:00.
	return cur >= start || cur <= end, nil
}

// parseMinute converts "HH:MM" into minutes since midnight.
func parseMinute(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
