// Package scheduler contains the periodic jobs of the notification engine:
// the reprocessor, which claims due scheduled records and hands them back to
// the dispatch coordinator, and the digest emitter, which turns per-user
// activity roll-ups into periodic summary notifications.
//
// Both jobs are single-pass: an external cron (or the cmd/scheduler binary)
// invokes Run on each tick. Claim locks on records make concurrent passes
// safe, so overlapping invocations do not double-deliver.
package scheduler
