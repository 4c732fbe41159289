// Package router decides which channels a notification is actually
// attempted on. Routing is a pure function of the requested channels, the
// user's category preference and the quiet-hours verdict; it performs no I/O.
package router

import (
	"slices"

	"github.com/acornstash/notifier/pkg/notify"
	"github.com/acornstash/notifier/pkg/prefs"
)

// Resolve returns the subset of requested channels to attempt, in canonical
// order and deduplicated.
//
// Preferences gate each channel independently. The quiet-hours verdict
// removes push only: push is the one channel capable of audible device
// interruption, while in-app and email sit quietly until the user looks.
// An empty result means dispatch must be skipped entirely.
func Resolve(requested []notify.Channel, pref prefs.CategoryPreference, quietSuppressed bool) []notify.Channel {
	out := make([]notify.Channel, 0, len(notify.AllChannels))
	for _, ch := range notify.AllChannels {
		if !slices.Contains(requested, ch) {
			continue
		}
		switch ch {
		case notify.ChannelInApp:
			if pref.InApp {
				out = append(out, ch)
			}
		case notify.ChannelPush:
			if pref.Push && !quietSuppressed {
				out = append(out, ch)
			}
		case notify.ChannelEmail:
			if pref.Email {
				out = append(out, ch)
			}
		}
	}
	return out
}
