// Package prefs holds per-user notification configuration: channel
// enablement per category, the quiet-hours window and the digest cadence.
//
// The Resolver is the adapter the rest of the engine consumes. It owns the
// "absent configuration means defaults" rule so the fallback table exists in
// exactly one place; raw Store implementations never synthesize defaults.
package prefs
