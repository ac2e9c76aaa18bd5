// Package eligibility decides whether a batch should be sent for inference in
// the current cycle.
package eligibility

import (
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/catalog"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/cooldown"
	"github.com/itzrealashwin/AnnaRaksha/pkg/types"
)

// Decision is the outcome of one eligibility check.
type Decision int

const (
	// Suppressed: the batch is cooling down.
	Suppressed Decision = iota
	// Nominal: the reading is inside the known safe band.
	Nominal
	// OutOfRange: temperature or humidity is outside the known band.
	OutOfRange
	// UnknownRange: no band is known, inference establishes its own.
	UnknownRange
)

func (d Decision) String() string {
	switch d {
	case Suppressed:
		return "suppressed"
	case Nominal:
		return "nominal"
	case OutOfRange:
		return "out_of_range"
	case UnknownRange:
		return "unknown_range"
	default:
		return "invalid"
	}
}

// Eligible reports whether d should lead to an inference call.
func (d Decision) Eligible() bool {
	return d == OutOfRange || d == UnknownRange
}

// Guard combines the cooldown gate and the safe-range catalog.
type Guard struct {
	gate    *cooldown.Gate
	catalog *catalog.Catalog
}

func New(gate *cooldown.Gate, cat *catalog.Catalog) *Guard {
	return &Guard{gate: gate, catalog: cat}
}

// Decide classifies b given its latest reading. Callers must not pass a batch
// that has no reading; that case is filtered upstream.
func (g *Guard) Decide(b types.Batch, latest types.SensorReading, env types.EnvironmentClass) Decision {
	if g.gate.IsSuppressed(b) {
		return Suppressed
	}
	rng, ok := g.catalog.Lookup(b.ProduceType, env)
	if !ok {
		return UnknownRange
	}
	if !rng.Temp.Contains(latest.Temperature) || !rng.Humidity.Contains(latest.Humidity) {
		return OutOfRange
	}
	return Nominal
}

// ShouldAssess reports whether inference should run for b now.
func (g *Guard) ShouldAssess(b types.Batch, latest types.SensorReading, env types.EnvironmentClass) bool {
	return g.Decide(b, latest, env).Eligible()
}
