// Package dispatch implements the delivery coordinator of the notification
// engine.
//
// Submit takes a notification intent, resolves the user's preferences and
// quiet-hours window, routes the requested channels, persists the record and
// fans delivery out concurrently across the resolved channels. Each channel
// attempt is isolated: it runs in its own goroutine, is bounded by a
// timeout, and its failure never cancels sibling attempts or reaches the
// intent originator. The aggregate outcome lands on the record as sent,
// partial_failure or failed, with a diagnostic naming the failing channels.
//
// Redispatch serves the scheduler: it re-runs the immediate-dispatch path
// for a due record, re-routing against current preferences.
//
// All channel transports are injected through the Collaborators interfaces;
// implementations live under pkg/sender.
package dispatch
