// Package api implements the HTTP JSON surface of the assessor.
//
// New(deps) returns an http.Handler that serves:
//
//	GET  /api/v1/alerts                 paginated alert list, newest first
//	GET  /api/v1/alerts/{id}            single alert
//	POST /api/v1/alerts/{id}/resolve    active -> resolved (actor from X-Actor)
//	POST /api/v1/alerts/{id}/dismiss    active -> dismissed (actor from X-Actor)
//	POST /api/v1/batches/{id}/assess    manual single-batch assessment
//	GET  /api/v1/stream                 alert events over WebSocket (when mounted)
//	GET  /metrics                       pipeline counters, Prometheus text format
//	GET  /healthz                       liveness plus queue state
//
// Errors are {"error": "..."} with the status derived from the apperr kind.
// Authentication is left to whatever sits in front of the listener.
package api
