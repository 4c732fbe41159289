package prefs

import (
	"github.com/acornstash/notifier/pkg/notify"
	"github.com/acornstash/notifier/pkg/quiethours"
)

// CategoryPreference is the per-category channel enablement tuple.
type CategoryPreference struct {
	InApp bool `json:"in_app"`
	Push  bool `json:"push"`
	Email bool `json:"email"`
}

// DigestFrequency controls the cadence of periodic summary notifications.
type DigestFrequency string

const (
	DigestNone   DigestFrequency = "none"
	DigestDaily  DigestFrequency = "daily"
	DigestWeekly DigestFrequency = "weekly"
)

// Valid reports whether the frequency is a known cadence.
func (f DigestFrequency) Valid() bool {
	switch f {
	case DigestNone, DigestDaily, DigestWeekly:
		return true
	}
	return false
}

// UserPreferences is the stored per-user notification configuration.
// Categories may be sparse; absent entries fall back to the default table.
type UserPreferences struct {
	Categories map[notify.Category]CategoryPreference `json:"categories"`
	QuietHours quiethours.Config                      `json:"quiet_hours"`
	Digest     DigestFrequency                        `json:"digest"`
}

// Patch carries a partial preference update. Nil fields are left untouched;
// categories present in the map replace the stored tuple for that category.
type Patch struct {
	Categories map[notify.Category]CategoryPreference
	QuietHours *quiethours.Config
	Digest     *DigestFrequency
}

// categoryDefaults is the single source of truth for channel enablement when
// a user has no explicit configuration for a category. Transactions default
// to in-app only to avoid noise on every deposit; savings milestones are the
// headline product moment and go out on all three channels.
var categoryDefaults = map[notify.Category]CategoryPreference{
	notify.CategoryAchievement:      {InApp: true, Push: true, Email: false},
	notify.CategoryChallenge:        {InApp: true, Push: true, Email: false},
	notify.CategoryFriend:           {InApp: true, Push: true, Email: false},
	notify.CategoryTransaction:      {InApp: true, Push: false, Email: false},
	notify.CategorySystem:           {InApp: true, Push: false, Email: true},
	notify.CategorySavingsMilestone: {InApp: true, Push: true, Email: true},
	notify.CategoryDigest:           {InApp: false, Push: false, Email: true},
}

// DefaultFor returns the documented default preference for a category.
func DefaultFor(category notify.Category) CategoryPreference {
	return categoryDefaults[category]
}

// Defaults returns a fresh UserPreferences with every category at its
// documented default, quiet hours disabled and no digest.
func Defaults() UserPreferences {
	cats := make(map[notify.Category]CategoryPreference, len(categoryDefaults))
	for cat, pref := range categoryDefaults {
		cats[cat] = pref
	}
	return UserPreferences{
		Categories: cats,
		QuietHours: quiethours.Disabled(),
		Digest:     DigestNone,
	}
}
