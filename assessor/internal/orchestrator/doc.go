// Package orchestrator drives the spoilage risk pipeline.
//
// A scheduled run moves through four phases:
//
//	Fetching    load every batch whose effective status is monitored
//	Evaluating  per batch, concurrently: latest reading, warehouse, eligibility;
//	            eligible batches are submitted to the rate-limited queue
//	Draining    wait until the queue has no pending or in-flight task
//	Complete    report batch counts and queued task results
//
// Each evaluated batch lands in exactly one of enqueued, skipped or failed.
// A queued task that later errors counts as TaskFailed, not Failed.
//
// Only a failure to load the batch set aborts a run. Every per-batch error is
// caught at the batch boundary, logged with its apperr kind (operational
// errors at warn, unexpected ones at error) and counted; the run continues.
//
// AssessBatchNow is the manual single-batch path. It bypasses the eligibility
// rules but still honours the cooldown and the queue, and returns typed errors
// to the caller instead of downgrading them.
//
// Runs never overlap: a second concurrent RunScheduledAssessment fails with
// apperr.Conflict, and the cron driver skips a tick while a run is active.
package orchestrator
