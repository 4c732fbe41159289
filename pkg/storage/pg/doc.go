// Package pg provides the PostgreSQL persistence layer of the notification
// engine: connection pooling with startup retry, schema migrations, and the
// pgx-backed implementations of the record, preference, push endpoint and
// activity stores.
//
// All stores share one pgxpool.Pool. ClaimDue relies on FOR UPDATE SKIP
// LOCKED, so concurrent scheduler passes never claim the same record.
package pg
