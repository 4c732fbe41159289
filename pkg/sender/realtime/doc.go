// Package realtime implements the in-app delivery channel: broadcasters that
// push a notification record to the user's live sessions.
//
// Two implementations are provided. RedisBroadcaster publishes records over
// Redis pub/sub on a per-user channel, which lets any edge server holding
// the user's connection pick them up. MemoryBroadcaster keeps subscriptions
// in process and is used in development and tests.
//
// Both satisfy dispatch.RealtimeBroadcaster. Delivery is best effort and
// at-most-once: a user with no live session misses the broadcast and reads
// the record from storage instead.
package realtime
