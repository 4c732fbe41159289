package pushsub

import "time"

// Endpoint is a single push delivery target for a user. A user may hold
// several (one per device). The ID identifies the device installation; the
// Token is the FCM registration token the push sender needs.
type Endpoint struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Token       string    `json:"token"`
	DeviceName  string    `json:"device_name,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}
