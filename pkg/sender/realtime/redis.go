package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/acornstash/notifier/pkg/notify"
)

const defaultChannelPrefix = "notifier:user:"

// RedisBroadcaster fans notification records out over Redis pub/sub, one
// channel per user. Publishing is fire-and-forget: subscribers that are not
// listening at publish time never see the record.
type RedisBroadcaster struct {
	client redis.UniversalClient
	prefix string
}

// RedisOption configures a RedisBroadcaster.
type RedisOption func(*RedisBroadcaster)

// WithChannelPrefix overrides the pub/sub channel prefix. Useful when
// several environments share one Redis.
func WithChannelPrefix(prefix string) RedisOption {
	return func(b *RedisBroadcaster) {
		if prefix != "" {
			b.prefix = prefix
		}
	}
}

// NewRedisBroadcaster creates a broadcaster over the given Redis client.
func NewRedisBroadcaster(client redis.UniversalClient, opts ...RedisOption) (*RedisBroadcaster, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	b := &RedisBroadcaster{
		client: client,
		prefix: defaultChannelPrefix,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Push publishes the record to the user's channel as JSON.
func (b *RedisBroadcaster) Push(ctx context.Context, userID string, rec notify.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := b.client.Publish(ctx, b.prefix+userID, payload).Err(); err != nil {
		return fmt.Errorf("publish record: %w", err)
	}
	return nil
}

// Subscribe returns a channel of records published for the user. The
// subscription lives until ctx is canceled; the returned channel is closed
// on teardown. Malformed payloads are skipped.
func (b *RedisBroadcaster) Subscribe(ctx context.Context, userID string) (<-chan notify.Record, error) {
	sub := b.client.Subscribe(ctx, b.prefix+userID)

	// Confirm the subscription before handing the channel out, so a caller
	// that publishes right after Subscribe returns cannot race it.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan notify.Record, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var rec notify.Record
				if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
					continue
				}
				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
