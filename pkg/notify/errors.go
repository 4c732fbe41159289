package notify

import "errors"

var (
	// ErrRecordNotFound is returned when a record does not exist for the user.
	ErrRecordNotFound = errors.New("notification record not found")

	// ErrMissingUserID is returned when an intent has no user.
	ErrMissingUserID = errors.New("intent user ID is required")

	// ErrUnknownCategory is returned when an intent carries a category
	// outside the closed enumeration.
	ErrUnknownCategory = errors.New("unknown notification category")

	// ErrUnknownPriority is returned when an intent carries an unknown priority.
	ErrUnknownPriority = errors.New("unknown notification priority")

	// ErrUnknownChannel is returned when an intent requests an unknown channel.
	ErrUnknownChannel = errors.New("unknown delivery channel")

	// ErrNoChannelsRequested is returned when an intent requests no channels at all.
	ErrNoChannelsRequested = errors.New("intent requests no delivery channels")

	// ErrAlreadyDispatched is returned when a finish is attempted on a record
	// whose status already left StatusScheduled.
	ErrAlreadyDispatched = errors.New("record already dispatched")
)
