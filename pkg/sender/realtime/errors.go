package realtime

import "errors"

var (
	// ErrNilClient is returned when a broadcaster is constructed without a
	// Redis client.
	ErrNilClient = errors.New("redis client is required")

	// ErrClosed is returned when operating on a closed broadcaster.
	ErrClosed = errors.New("broadcaster is closed")
)
