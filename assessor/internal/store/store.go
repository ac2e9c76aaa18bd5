package store

import (
	"context"
	"time"

	"github.com/itzrealashwin/AnnaRaksha/pkg/types"
)

// Batches is the batch store.
type Batches interface {
	// FindActive returns batches whose effective status is monitored.
	FindActive(ctx context.Context) ([]types.Batch, error)
	Get(ctx context.Context, id string) (*types.Batch, error)
	// UpdateRisk applies u to one batch as a single write.
	UpdateRisk(ctx context.Context, id string, u types.RiskUpdate) error
}

// Sensors is the sensor-reading store.
type Sensors interface {
	// Latest returns the most recent reading for a warehouse, or nil.
	Latest(ctx context.Context, warehouseID string) (*types.SensorReading, error)
}

// Warehouses is the warehouse store.
type Warehouses interface {
	Get(ctx context.Context, id string) (*types.Warehouse, error)
}

// Alerts is the alert store.
type Alerts interface {
	Create(ctx context.Context, a *types.Alert) error
	Get(ctx context.Context, id string) (*types.Alert, error)
	// List returns matching alerts newest first.
	List(ctx context.Context, f types.AlertFilter, p types.Page) (types.AlertPage, error)
	// Transition moves an active alert to a terminal status. A non-active
	// alert is left untouched and apperr.Conflict is returned.
	Transition(ctx context.Context, id string, to types.AlertStatus, actor string, at time.Time) (*types.Alert, error)
}

// Set bundles one implementation of every port.
type Set struct {
	Batches    Batches
	Sensors    Sensors
	Warehouses Warehouses
	Alerts     Alerts

	// Close releases the backing resources. It may be nil.
	Close func() error
}
