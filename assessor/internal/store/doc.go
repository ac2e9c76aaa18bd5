// Package store defines the collaborator ports the pipeline reads and writes
// through, and an in-memory implementation of all of them.
//
// Absent records are reported as apperr.NotFound, except Sensors.Latest, which
// returns (nil, nil) when a warehouse has no readings: missing sensor data is
// an expected state, not a lookup failure. Package sqlstore provides the
// gorm-backed implementation.
package store
