package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/apperr"
	"github.com/itzrealashwin/AnnaRaksha/pkg/types"
)

var ctx = context.Background()

// openTest returns a Store on a fresh SQLite file. The test is skipped when
// the SQLite driver is unavailable (built without cgo).
func openTest(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assessor.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	s, err := New(db)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBatches_RoundTripAndUpdateRisk(t *testing.T) {
	s := openTest(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	seed := []types.Batch{
		{ID: "b1", WarehouseID: "w1", ProduceType: "onion", ArrivalDate: now.AddDate(0, 0, -3), ShelfLifeDays: 30, Status: types.StatusFresh},
		{ID: "b2", WarehouseID: "w1", ProduceType: "tomato", ArrivalDate: now.AddDate(0, 0, -20), ShelfLifeDays: 10, Status: types.StatusMaturing},
		{ID: "b3", WarehouseID: "w1", ProduceType: "rice", ArrivalDate: now, ShelfLifeDays: 365, Status: types.StatusDisposed},
	}
	for _, b := range seed {
		if err := s.PutBatch(ctx, b); err != nil {
			t.Fatalf("PutBatch: %v", err)
		}
	}
	set := s.Set()

	active, err := set.Batches.FindActive(ctx)
	if err != nil {
		t.Fatalf("FindActive: %v", err)
	}
	if len(active) != 1 || active[0].ID != "b1" {
		t.Fatalf("FindActive: got %+v, want only b1", active)
	}

	u := types.RiskUpdate{Score: 90, Level: types.RiskCritical, AnalyzedAt: now, CooldownUntil: now.Add(30 * time.Minute)}
	if err := set.Batches.UpdateRisk(ctx, "b1", u); err != nil {
		t.Fatalf("UpdateRisk: %v", err)
	}
	b, err := set.Batches.Get(ctx, "b1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if b.RiskScore != 90 || b.RiskLevel != types.RiskCritical {
		t.Errorf("risk: got %d/%s", b.RiskScore, b.RiskLevel)
	}
	if b.CooldownUntil == nil || !b.CooldownUntil.Equal(now.Add(30*time.Minute)) {
		t.Errorf("CooldownUntil: got %v", b.CooldownUntil)
	}

	if err := set.Batches.UpdateRisk(ctx, "missing", u); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("UpdateRisk missing: got %v, want NotFound", err)
	}
	if _, err := set.Batches.Get(ctx, "missing"); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("Get missing: got %v, want NotFound", err)
	}
}

func TestSensorsAndWarehouses(t *testing.T) {
	s := openTest(t)
	set := s.Set()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if r, err := set.Sensors.Latest(ctx, "w1"); r != nil || err != nil {
		t.Fatalf("Latest with no readings: got %v, %v", r, err)
	}
	for i, temp := range []float64{3, 12, 7} {
		r := types.SensorReading{WarehouseID: "w1", Temperature: temp, Humidity: 70, RecordedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := s.AddReading(ctx, r); err != nil {
			t.Fatalf("AddReading: %v", err)
		}
	}
	r, err := set.Sensors.Latest(ctx, "w1")
	if err != nil || r == nil || r.Temperature != 7 {
		t.Fatalf("Latest: got %+v, %v; want temperature 7", r, err)
	}

	w := types.Warehouse{
		ID: "w1", Name: "North", EnvironmentClass: types.EnvCold,
		OptimalTemp:     &types.Band{Min: 2, Max: 4},
		OptimalHumidity: &types.Band{Min: 65, Max: 75},
	}
	if err := s.PutWarehouse(ctx, w); err != nil {
		t.Fatalf("PutWarehouse: %v", err)
	}
	got, err := set.Warehouses.Get(ctx, "w1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.HasSetpoint() || got.OptimalTemp.Mid() != 3 || got.EnvironmentClass != types.EnvCold {
		t.Errorf("warehouse: %+v", got)
	}
	if _, err := set.Warehouses.Get(ctx, "w9"); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("Get missing: got %v, want NotFound", err)
	}
}

func TestAlerts_ListAndTransition(t *testing.T) {
	s := openTest(t)
	set := s.Set()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, wh := range []string{"w1", "w2", "w1"} {
		a := &types.Alert{
			ID:          []string{"a0", "a1", "a2"}[i],
			Type:        types.AlertSpoilage,
			BatchID:     "b1",
			WarehouseID: wh,
			RiskLevel:   types.RiskHigh,
			RiskScore:   70,
			Status:      types.AlertActive,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := set.Alerts.Create(ctx, a); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	page, err := set.Alerts.List(ctx, types.AlertFilter{WarehouseID: "w1"}, types.Page{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 2 || page.Items[0].ID != "a2" {
		t.Errorf("List: %+v", page)
	}

	at := base.Add(time.Hour)
	a, err := set.Alerts.Transition(ctx, "a0", types.AlertResolved, "ops", at)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if a.Status != types.AlertResolved || a.ResolvedBy != "ops" || a.ResolvedAt == nil || !a.ResolvedAt.Equal(at) {
		t.Errorf("after transition: %+v", a)
	}

	if _, err := set.Alerts.Transition(ctx, "a0", types.AlertDismissed, "other", at.Add(time.Hour)); !apperr.Is(err, apperr.Conflict) {
		t.Fatalf("second transition: got %v, want Conflict", err)
	}
	got, _ := set.Alerts.Get(ctx, "a0")
	if got.Status != types.AlertResolved || !got.ResolvedAt.Equal(at) {
		t.Errorf("rejected transition mutated alert: %+v", got)
	}
	if _, err := set.Alerts.Transition(ctx, "zz", types.AlertResolved, "ops", at); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("missing alert: got %v, want NotFound", err)
	}

	page, _ = set.Alerts.List(ctx, types.AlertFilter{Status: types.AlertActive}, types.Page{})
	if page.Total != 2 {
		t.Errorf("active total: got %d, want 2", page.Total)
	}
}
