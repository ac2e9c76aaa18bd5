// Package types defines the domain types shared by the assessor packages and
// the storage collaborators: batches, warehouses, sensor readings, safe ranges,
// risk results and alerts. These are the canonical in-memory representations,
// separate from any persistence schema.
package types
