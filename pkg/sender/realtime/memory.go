package realtime

import (
	"context"
	"sync"

	"github.com/acornstash/notifier/pkg/notify"
)

// MemoryBroadcaster is an in-process broadcaster for development and tests.
// Sends are non-blocking: a subscriber whose buffer is full misses the
// record rather than stalling dispatch. Safe for concurrent use.
type MemoryBroadcaster struct {
	mu     sync.RWMutex
	subs   map[string]map[chan notify.Record]struct{} // userID -> subscriber channels
	buf    int
	closed bool
}

// NewMemoryBroadcaster creates an in-memory broadcaster. bufferSize sets the
// per-subscriber channel buffer; a minimum of 1 is enforced so sends never
// block.
func NewMemoryBroadcaster(bufferSize int) *MemoryBroadcaster {
	return &MemoryBroadcaster{
		subs: make(map[string]map[chan notify.Record]struct{}),
		buf:  max(bufferSize, 1),
	}
}

// Push delivers the record to every live subscription of the user. Records
// for users without subscribers are dropped silently.
func (b *MemoryBroadcaster) Push(ctx context.Context, userID string, rec notify.Record) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	for ch := range b.subs[userID] {
		select {
		case ch <- rec:
		default:
			// Slow consumer, drop for this subscriber only.
		}
	}
	return nil
}

// Subscribe registers a live session for the user. The subscription is torn
// down and its channel closed when ctx is canceled.
func (b *MemoryBroadcaster) Subscribe(ctx context.Context, userID string) <-chan notify.Record {
	ch := make(chan notify.Record, b.buf)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch
	}
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[chan notify.Record]struct{})
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unsubscribe(userID, ch)
	}()
	return ch
}

// Close shuts the broadcaster down and closes all subscriber channels. Safe
// to call more than once.
func (b *MemoryBroadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, chans := range b.subs {
		for ch := range chans {
			close(ch)
		}
	}
	clear(b.subs)
	return nil
}

func (b *MemoryBroadcaster) unsubscribe(userID string, ch chan notify.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	if chans, ok := b.subs[userID]; ok {
		if _, ok := chans[ch]; ok {
			delete(chans, ch)
			close(ch)
		}
		if len(chans) == 0 {
			delete(b.subs, userID)
		}
	}
}
