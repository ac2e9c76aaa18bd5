package api

import "time"

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// HealthResponse is the payload for GET /healthz.
type HealthResponse struct {
	Status string      `json:"status"`
	Time   time.Time   `json:"time"`
	Queue  *QueueState `json:"queue,omitempty"`
}

// QueueState mirrors the inference queue counters.
type QueueState struct {
	Idle      bool `json:"idle"`
	Pending   int  `json:"pending"`
	InFlight  int  `json:"inFlight"`
	Completed int  `json:"completed"`
}
