package dispatch

import (
	"context"

	"github.com/acornstash/notifier/pkg/notify"
	"github.com/acornstash/notifier/pkg/pushsub"
)

// RealtimeBroadcaster delivers a record to the user's live in-app sessions.
// Best effort, at-most-once, no retry: a user with no open session simply
// misses the broadcast and reads the record from storage later.
type RealtimeBroadcaster interface {
	Push(ctx context.Context, userID string, rec notify.Record) error
}

// PushSender delivers a record to one device endpoint. Implementations must
// return an error wrapping ErrEndpointGone when the provider reports the
// endpoint as permanently invalid, so the coordinator can trigger cleanup.
type PushSender interface {
	Send(ctx context.Context, ep pushsub.Endpoint, rec notify.Record) error
}

// MailMessage is the payload handed to a MailSender.
type MailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// MailSender delivers a notification email.
type MailSender interface {
	Send(ctx context.Context, msg MailMessage) error
}

// Directory resolves a user's email address. Implemented over the product's
// user store.
type Directory interface {
	EmailAddress(ctx context.Context, userID string) (string, error)
}

// Collaborators bundles the channel-facing interfaces injected into the
// coordinator. A nil entry makes the corresponding channel fail with
// ErrChannelUnavailable when routed to.
type Collaborators struct {
	Realtime  RealtimeBroadcaster
	Push      PushSender
	Mail      MailSender
	Directory Directory
}
