// Package pushsub tracks push delivery endpoints per user: multiple devices
// may subscribe, endpoints reported dead by the push provider are
// invalidated so the next dispatch skips them, and long-inactive rows are
// purged by a periodic sweep.
package pushsub
