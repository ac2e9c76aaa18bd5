// Package alerts owns the alert lifecycle: creation from an assessment,
// listing, and the terminal resolve and dismiss transitions.
//
// An alert starts active and moves at most once, to resolved or dismissed.
// Any other transition fails with apperr.Conflict and leaves the record
// unchanged. Newly created alerts are delivered to the configured webhooks in
// the background; delivery failures are logged and never affect the caller.
package alerts
