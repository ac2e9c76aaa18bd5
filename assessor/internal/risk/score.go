package risk

import (
	"math"
	"time"

	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/apperr"
	"github.com/itzrealashwin/AnnaRaksha/pkg/types"
)

// Environment penalty weights.
const (
	tempWeight     = 5.0
	humidityWeight = 1.2

	// A flat penalty applies past either deviation limit.
	tempDevLimit     = 5.0
	humidityDevLimit = 25.0
	excursionPenalty = 25.0
)

// Input holds the values fed into the local heuristic.
type Input struct {
	ShelfLifeDays float64
	DaysStored    int

	// HasReading is false when the warehouse has no sensor data; the
	// environment component is then zero.
	HasReading  bool
	Temperature float64
	Humidity    float64

	// OptimalTemp and OptimalHumidity are the warehouse setpoint. Only read
	// when HasReading is set.
	OptimalTemp     float64
	OptimalHumidity float64
}

// Output is the result of the local heuristic.
type Output struct {
	Score int
	Level types.RiskLevel

	DaysLeft      float64
	TimeComponent float64
	EnvComponent  float64
}

// Compute calculates the local risk score.
//
//	daysLeft = max(0, shelfLife - daysStored)
//	time     = 100                           daysLeft <= 0
//	         = 70 + (7 - daysLeft) * 4       daysLeft <= 7
//	         = 30 + (30 - daysLeft) * 1.33   daysLeft <= 30
//	         = 15                            daysLeft <= 0.3 * shelfLife
//	env      = |tDev| * 5 + |hDev| * 1.2  (+25 if |tDev| > 5 or |hDev| > 25)
//	score    = min(100, round(time + env))
func Compute(in Input) Output {
	out := Output{DaysLeft: math.Max(0, in.ShelfLifeDays-float64(in.DaysStored))}
	out.TimeComponent = timeComponent(out.DaysLeft, in.ShelfLifeDays)

	if in.HasReading {
		tDev := math.Abs(in.Temperature - in.OptimalTemp)
		hDev := math.Abs(in.Humidity - in.OptimalHumidity)
		out.EnvComponent = tDev*tempWeight + hDev*humidityWeight
		if tDev > tempDevLimit || hDev > humidityDevLimit {
			out.EnvComponent += excursionPenalty
		}
	}

	out.Score = int(math.Min(100, math.Round(out.TimeComponent+out.EnvComponent)))
	out.Level = types.LevelForScore(out.Score)
	return out
}

func timeComponent(daysLeft, shelfLife float64) float64 {
	switch {
	case daysLeft <= 0:
		return 100
	case daysLeft <= 7:
		return 70 + (7-daysLeft)*4
	case daysLeft <= 30:
		return 30 + (30-daysLeft)*1.33
	case daysLeft <= 0.3*shelfLife:
		return 15
	default:
		return 0
	}
}

// LocalInput builds the heuristic input for b at now. A reading with no
// warehouse setpoint is InvalidInput; no default setpoint is assumed.
func LocalInput(b types.Batch, reading *types.SensorReading, wh *types.Warehouse, now time.Time) (Input, error) {
	in := Input{ShelfLifeDays: b.ShelfLifeDays, DaysStored: b.DaysStored(now)}
	if reading == nil {
		return in, nil
	}
	if wh == nil || !wh.HasSetpoint() {
		return Input{}, apperr.Errorf(apperr.InvalidInput, "risk: local score",
			"warehouse %q has no optimal setpoint", b.WarehouseID)
	}
	in.HasReading = true
	in.Temperature = reading.Temperature
	in.Humidity = reading.Humidity
	in.OptimalTemp = wh.OptimalTemp.Mid()
	in.OptimalHumidity = wh.OptimalHumidity.Mid()
	return in, nil
}

// clampScore rounds an inference score into [0, 100].
func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Max(0, math.Min(100, math.Round(v))))
}
