package dispatch

import "errors"

var (
	// ErrEndpointGone marks a push endpoint the provider reports as
	// permanently invalid. PushSender implementations wrap it; the
	// coordinator reacts by invalidating the endpoint in the registry.
	ErrEndpointGone = errors.New("push endpoint gone")

	// ErrChannelUnavailable is returned for a routed channel whose
	// collaborator was not configured.
	ErrChannelUnavailable = errors.New("delivery channel not configured")

	// ErrNoEmailAddress is returned when the directory has no address for
	// the user.
	ErrNoEmailAddress = errors.New("no email address on file")

	// ErrNilStore is returned by the constructor when a required store is nil.
	ErrNilStore = errors.New("record store and preference resolver are required")
)
