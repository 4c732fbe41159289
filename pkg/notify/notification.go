package notify

import (
	"time"
)

// Channel is a delivery surface for a notification.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
)

// AllChannels lists every known channel in canonical order.
var AllChannels = []Channel{ChannelInApp, ChannelPush, ChannelEmail}

// Valid reports whether the channel is one of the known delivery surfaces.
func (c Channel) Valid() bool {
	switch c {
	case ChannelInApp, ChannelPush, ChannelEmail:
		return true
	}
	return false
}

// Category classifies a notification by the product event that produced it.
type Category string

const (
	CategoryAchievement      Category = "achievement"
	CategoryChallenge        Category = "challenge"
	CategoryFriend           Category = "friend"
	CategoryTransaction      Category = "transaction"
	CategorySystem           Category = "system"
	CategorySavingsMilestone Category = "savings_milestone"
	// CategoryDigest is reserved for periodic summary notifications emitted
	// by the digest scheduler. It is never used for per-event notifications.
	CategoryDigest Category = "digest"
)

// Valid reports whether the category is part of the closed enumeration.
func (c Category) Valid() bool {
	switch c {
	case CategoryAchievement, CategoryChallenge, CategoryFriend,
		CategoryTransaction, CategorySystem, CategorySavingsMilestone, CategoryDigest:
		return true
	}
	return false
}

// Priority represents the notification priority level.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether the priority is one of the known levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Status is the aggregate delivery state of a persisted notification record.
type Status string

const (
	// StatusScheduled means the record has not been dispatched yet, either
	// because its scheduled time is in the future or because dispatch is
	// currently in flight.
	StatusScheduled Status = "scheduled"
	// StatusSent means every attempted channel succeeded.
	StatusSent Status = "sent"
	// StatusPartialFailure means at least one channel succeeded and at least
	// one failed.
	StatusPartialFailure Status = "partial_failure"
	// StatusFailed means every attempted channel failed.
	StatusFailed Status = "failed"
)

// Intent is the request to notify a user, before routing and persistence.
// It is constructed by originating collaborators (achievements, challenges,
// savings transactions) and handed to the dispatch coordinator.
type Intent struct {
	UserID       string         `json:"user_id"`
	Category     Category       `json:"category"`
	Title        string         `json:"title"`
	Body         string         `json:"body"`
	Data         map[string]any `json:"data,omitempty"`
	Priority     Priority       `json:"priority"`
	Channels     []Channel      `json:"channels"`
	ScheduledFor *time.Time     `json:"scheduled_for,omitempty"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
}

// Validate checks the intent at the boundary where external input enters.
// Violations are programmer errors, not delivery failures.
func (i Intent) Validate() error {
	if i.UserID == "" {
		return ErrMissingUserID
	}
	if !i.Category.Valid() {
		return ErrUnknownCategory
	}
	if !i.Priority.Valid() {
		return ErrUnknownPriority
	}
	if len(i.Channels) == 0 {
		return ErrNoChannelsRequested
	}
	for _, ch := range i.Channels {
		if !ch.Valid() {
			return ErrUnknownChannel
		}
	}
	return nil
}

// Record is the persisted, trackable unit the engine owns. A record is
// immutable once its status leaves StatusScheduled, except for the read
// state.
type Record struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Category     Category       `json:"category"`
	Title        string         `json:"title"`
	Body         string         `json:"body"`
	Data         map[string]any `json:"data,omitempty"`
	Priority     Priority       `json:"priority"`
	Channels     []Channel      `json:"channels"`          // channels requested by the intent
	Resolved     []Channel      `json:"resolved_channels"` // subset actually attempted after routing
	Status       Status         `json:"status"`
	Read         bool           `json:"read"`
	ReadAt       *time.Time     `json:"read_at,omitempty"`
	DeliveryErr  string         `json:"delivery_error,omitempty"`
	ScheduledFor *time.Time     `json:"scheduled_for,omitempty"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	// LockedUntil guards a record against concurrent dispatch: a claimed
	// record stays invisible to ClaimDue until the lock expires or the
	// dispatch finishes.
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// IsExpired returns true if the record has expired at the given instant.
func (r *Record) IsExpired(now time.Time) bool {
	if r.ExpiresAt == nil {
		return false
	}
	return now.After(*r.ExpiresAt)
}

// MarkAsRead marks the record as read at the given instant.
func (r *Record) MarkAsRead(now time.Time) {
	r.Read = true
	r.ReadAt = &now
}
