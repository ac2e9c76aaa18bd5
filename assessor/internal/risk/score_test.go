package risk

import (
	"testing"
	"time"

	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/apperr"
	"github.com/itzrealashwin/AnnaRaksha/pkg/types"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name      string
		in        Input
		wantScore int
		wantLevel types.RiskLevel
	}{
		{
			name:      "two days left, no sensor",
			in:        Input{ShelfLifeDays: 30, DaysStored: 28},
			wantScore: 90,
			wantLevel: types.RiskCritical,
		},
		{
			name:      "shelf life reached",
			in:        Input{ShelfLifeDays: 30, DaysStored: 30},
			wantScore: 100,
			wantLevel: types.RiskCritical,
		},
		{
			name:      "past shelf life",
			in:        Input{ShelfLifeDays: 30, DaysStored: 45},
			wantScore: 100,
			wantLevel: types.RiskCritical,
		},
		{
			name:      "twenty days left",
			in:        Input{ShelfLifeDays: 30, DaysStored: 10},
			wantScore: 43, // 30 + 10*1.33
			wantLevel: types.RiskMedium,
		},
		{
			name:      "last thirty percent of a long shelf life",
			in:        Input{ShelfLifeDays: 200, DaysStored: 150},
			wantScore: 15,
			wantLevel: types.RiskLow,
		},
		{
			name:      "early in a long shelf life",
			in:        Input{ShelfLifeDays: 200, DaysStored: 10},
			wantScore: 0,
			wantLevel: types.RiskLow,
		},
		{
			name: "temperature excursion",
			in: Input{ShelfLifeDays: 200, DaysStored: 10, HasReading: true,
				Temperature: 12, Humidity: 70, OptimalTemp: 3, OptimalHumidity: 70},
			wantScore: 70, // 9*5 + 25
			wantLevel: types.RiskHigh,
		},
		{
			name: "humidity excursion",
			in: Input{ShelfLifeDays: 200, DaysStored: 10, HasReading: true,
				Temperature: 3, Humidity: 40, OptimalTemp: 3, OptimalHumidity: 70},
			wantScore: 61, // 30*1.2 + 25
			wantLevel: types.RiskHigh,
		},
		{
			name: "small deviation rounds",
			in: Input{ShelfLifeDays: 200, DaysStored: 10, HasReading: true,
				Temperature: 3.3, Humidity: 70, OptimalTemp: 3, OptimalHumidity: 70},
			wantScore: 2, // round(1.5)
			wantLevel: types.RiskLow,
		},
		{
			name: "capped at 100",
			in: Input{ShelfLifeDays: 30, DaysStored: 28, HasReading: true,
				Temperature: 20, Humidity: 70, OptimalTemp: 3, OptimalHumidity: 70},
			wantScore: 100,
			wantLevel: types.RiskCritical,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Compute(tc.in)
			if got.Score != tc.wantScore {
				t.Errorf("Score: got %d, want %d (time=%.2f env=%.2f)",
					got.Score, tc.wantScore, got.TimeComponent, got.EnvComponent)
			}
			if got.Level != tc.wantLevel {
				t.Errorf("Level: got %s, want %s", got.Level, tc.wantLevel)
			}
			if got.Level != types.LevelForScore(got.Score) {
				t.Errorf("Level %s inconsistent with score %d", got.Level, got.Score)
			}
		})
	}
}

func TestCompute_TimeComponentForTwoDaysLeft(t *testing.T) {
	got := Compute(Input{ShelfLifeDays: 30, DaysStored: 28})
	if got.DaysLeft != 2 || got.TimeComponent != 90 || got.EnvComponent != 0 {
		t.Errorf("got daysLeft=%v time=%v env=%v, want 2/90/0", got.DaysLeft, got.TimeComponent, got.EnvComponent)
	}
}

func TestLocalInput(t *testing.T) {
	now := time.Date(2026, 3, 29, 12, 0, 0, 0, time.UTC)
	b := types.Batch{ID: "b1", WarehouseID: "w1", ArrivalDate: now.AddDate(0, 0, -28), ShelfLifeDays: 30}
	reading := &types.SensorReading{WarehouseID: "w1", Temperature: 12, Humidity: 70}

	in, err := LocalInput(b, nil, nil, now)
	if err != nil {
		t.Fatalf("no reading: %v", err)
	}
	if in.HasReading || in.DaysStored != 28 {
		t.Errorf("no reading: %+v", in)
	}

	bare := &types.Warehouse{ID: "w1", EnvironmentClass: types.EnvCold}
	if _, err := LocalInput(b, reading, bare, now); !apperr.Is(err, apperr.InvalidInput) {
		t.Errorf("no setpoint: got %v, want InvalidInput", err)
	}

	wh := &types.Warehouse{
		ID:              "w1",
		OptimalTemp:     &types.Band{Min: 2, Max: 4},
		OptimalHumidity: &types.Band{Min: 60, Max: 80},
	}
	in, err = LocalInput(b, reading, wh, now)
	if err != nil {
		t.Fatalf("with setpoint: %v", err)
	}
	if !in.HasReading || in.OptimalTemp != 3 || in.OptimalHumidity != 70 {
		t.Errorf("with setpoint: %+v", in)
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{-4, 0}, {0, 0}, {29.5, 30}, {84.4, 84}, {100, 100}, {104.6, 100},
	}
	for _, tc := range tests {
		if got := clampScore(tc.in); got != tc.want {
			t.Errorf("clampScore(%v): got %d, want %d", tc.in, got, tc.want)
		}
	}
}
