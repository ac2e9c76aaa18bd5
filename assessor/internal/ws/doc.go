// Package ws streams alert events to dashboard clients over WebSocket.
//
// The Hub is mounted at GET /api/v1/stream. Every message is a JSON envelope
// {"event": ..., "data": ...}:
//
//	snapshot       active alerts, sent on connect and every interval
//	alert.created  one alert, sent as soon as it is recorded
//
// The Hub implements alerts.Notifier, so it is registered next to the
// webhooks. A client whose send buffer is full is disconnected.
package ws
