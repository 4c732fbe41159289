// Package push implements the push delivery channel over Firebase Cloud
// Messaging. FCMSender satisfies dispatch.PushSender; tokens the provider
// reports as unregistered surface as dispatch.ErrEndpointGone so the
// coordinator can retire the endpoint.
package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/acornstash/notifier/pkg/dispatch"
	"github.com/acornstash/notifier/pkg/notify"
	"github.com/acornstash/notifier/pkg/pushsub"
)

// Config holds the Firebase credentials for the FCM sender.
type Config struct {
	CredentialsFile string `env:"FCM_CREDENTIALS_FILE,required"` // path to the service account JSON
}

// FCMSender delivers notifications to device tokens via Firebase Cloud
// Messaging.
type FCMSender struct {
	client *messaging.Client
}

// NewFCMSender initializes the Firebase app and its messaging client.
func NewFCMSender(ctx context.Context, cfg Config) (*FCMSender, error) {
	if cfg.CredentialsFile == "" {
		return nil, fmt.Errorf("fcm: credentials file is required")
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init messaging client: %w", err)
	}
	return &FCMSender{client: client}, nil
}

// Send pushes the record to one device endpoint.
func (s *FCMSender) Send(ctx context.Context, ep pushsub.Endpoint, rec notify.Record) error {
	msg := &messaging.Message{
		Token: ep.Token,
		Notification: &messaging.Notification{
			Title: rec.Title,
			Body:  rec.Body,
		},
		Data: payloadData(rec),
		Android: &messaging.AndroidConfig{
			Priority: androidPriority(rec.Priority),
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	if _, err := s.client.Send(ctx, msg); err != nil {
		if messaging.IsUnregistered(err) {
			return fmt.Errorf("%w: %v", dispatch.ErrEndpointGone, err)
		}
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}

// payloadData flattens the record into the string-only map FCM requires.
// The client uses record_id and category for deep linking.
func payloadData(rec notify.Record) map[string]string {
	data := map[string]string{
		"record_id": rec.ID,
		"category":  string(rec.Category),
		"priority":  string(rec.Priority),
	}
	for k, v := range rec.Data {
		switch val := v.(type) {
		case string:
			data[k] = val
		default:
			data[k] = fmt.Sprintf("%v", val)
		}
	}
	return data
}

func androidPriority(p notify.Priority) string {
	switch p {
	case notify.PriorityHigh, notify.PriorityUrgent:
		return "high"
	default:
		return "normal"
	}
}
