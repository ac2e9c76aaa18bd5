package types

import "time"

// EnvironmentClass is the storage regime of a warehouse.
type EnvironmentClass string

const (
	EnvCold    EnvironmentClass = "cold"
	EnvDry     EnvironmentClass = "dry"
	EnvGeneral EnvironmentClass = "general"
	EnvOpenAir EnvironmentClass = "open-air"
)

// Valid reports whether e is a known environment class.
func (e EnvironmentClass) Valid() bool {
	switch e {
	case EnvCold, EnvDry, EnvGeneral, EnvOpenAir:
		return true
	}
	return false
}

// Band is an inclusive numeric range.
type Band struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Contains reports whether v lies within [Min, Max].
func (b Band) Contains(v float64) bool { return v >= b.Min && v <= b.Max }

// Mid is the midpoint of the band.
func (b Band) Mid() float64 { return (b.Min + b.Max) / 2 }

// SafeRange is the acceptable temperature (°C) and relative humidity (%) band for
// a produce type under one environment class.
type SafeRange struct {
	Temp     Band `json:"temp"`
	Humidity Band `json:"humidity"`
}

// Warehouse is the subset of warehouse state the pipeline reads.
type Warehouse struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	EnvironmentClass EnvironmentClass `json:"environmentClass"`

	// Optimal ranges are the configured setpoints; nil when not configured.
	OptimalTemp     *Band `json:"optimalTemp,omitempty"`
	OptimalHumidity *Band `json:"optimalHumidity,omitempty"`
}

// HasSetpoint reports whether both optimal ranges are configured.
func (w Warehouse) HasSetpoint() bool {
	return w.OptimalTemp != nil && w.OptimalHumidity != nil
}

// SensorReading is one environmental sample for a warehouse.
type SensorReading struct {
	WarehouseID string    `json:"warehouseId"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	RecordedAt  time.Time `json:"recordedAt"`
}
