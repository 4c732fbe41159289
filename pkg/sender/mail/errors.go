package mail

import "errors"

var (
	// ErrInvalidConfig is returned when the sender configuration is
	// incomplete or malformed.
	ErrInvalidConfig = errors.New("invalid mail sender configuration")

	// ErrSendFailed wraps provider-side delivery failures.
	ErrSendFailed = errors.New("failed to send email")
)
