package sqlstore

import (
	"time"

	"github.com/itzrealashwin/AnnaRaksha/pkg/types"
)

type batchRow struct {
	ID                string `gorm:"primaryKey;type:varchar(64)"`
	WarehouseID       string `gorm:"index;type:varchar(64)"`
	ProduceType       string
	ArrivalDate       time.Time
	ShelfLifeDays     float64
	Status            string `gorm:"index;type:varchar(32)"`
	RiskScore         int
	RiskLevel         string `gorm:"type:varchar(16)"`
	LastAnalyzedAt    *time.Time
	CooldownUntil     *time.Time
	LastRiskUpdatedAt *time.Time
}

func (batchRow) TableName() string { return "batches" }

func (r batchRow) toDomain() types.Batch {
	return types.Batch{
		ID:                r.ID,
		WarehouseID:       r.WarehouseID,
		ProduceType:       r.ProduceType,
		ArrivalDate:       r.ArrivalDate,
		ShelfLifeDays:     r.ShelfLifeDays,
		Status:            types.BatchStatus(r.Status),
		RiskScore:         r.RiskScore,
		RiskLevel:         types.RiskLevel(r.RiskLevel),
		LastAnalyzedAt:    r.LastAnalyzedAt,
		CooldownUntil:     r.CooldownUntil,
		LastRiskUpdatedAt: r.LastRiskUpdatedAt,
	}
}

func batchFromDomain(b types.Batch) batchRow {
	return batchRow{
		ID:                b.ID,
		WarehouseID:       b.WarehouseID,
		ProduceType:       b.ProduceType,
		ArrivalDate:       b.ArrivalDate,
		ShelfLifeDays:     b.ShelfLifeDays,
		Status:            string(b.Status),
		RiskScore:         b.RiskScore,
		RiskLevel:         string(b.RiskLevel),
		LastAnalyzedAt:    b.LastAnalyzedAt,
		CooldownUntil:     b.CooldownUntil,
		LastRiskUpdatedAt: b.LastRiskUpdatedAt,
	}
}

type warehouseRow struct {
	ID                 string `gorm:"primaryKey;type:varchar(64)"`
	Name               string
	EnvironmentClass   string `gorm:"type:varchar(16)"`
	OptimalTempMin     *float64
	OptimalTempMax     *float64
	OptimalHumidityMin *float64
	OptimalHumidityMax *float64
}

func (warehouseRow) TableName() string { return "warehouses" }

func (r warehouseRow) toDomain() types.Warehouse {
	w := types.Warehouse{ID: r.ID, Name: r.Name, EnvironmentClass: types.EnvironmentClass(r.EnvironmentClass)}
	if r.OptimalTempMin != nil && r.OptimalTempMax != nil {
		w.OptimalTemp = &types.Band{Min: *r.OptimalTempMin, Max: *r.OptimalTempMax}
	}
	if r.OptimalHumidityMin != nil && r.OptimalHumidityMax != nil {
		w.OptimalHumidity = &types.Band{Min: *r.OptimalHumidityMin, Max: *r.OptimalHumidityMax}
	}
	return w
}

func warehouseFromDomain(w types.Warehouse) warehouseRow {
	r := warehouseRow{ID: w.ID, Name: w.Name, EnvironmentClass: string(w.EnvironmentClass)}
	if w.OptimalTemp != nil {
		r.OptimalTempMin, r.OptimalTempMax = &w.OptimalTemp.Min, &w.OptimalTemp.Max
	}
	if w.OptimalHumidity != nil {
		r.OptimalHumidityMin, r.OptimalHumidityMax = &w.OptimalHumidity.Min, &w.OptimalHumidity.Max
	}
	return r
}

type sensorReadingRow struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	WarehouseID string `gorm:"index:idx_reading_latest,priority:1;type:varchar(64)"`
	Temperature float64
	Humidity    float64
	RecordedAt  time.Time `gorm:"index:idx_reading_latest,priority:2"`
}

func (sensorReadingRow) TableName() string { return "sensor_readings" }

type alertRow struct {
	ID                  string `gorm:"primaryKey;type:varchar(64)"`
	Type                string `gorm:"type:varchar(32)"`
	BatchID             string `gorm:"index;type:varchar(64)"`
	WarehouseID         string `gorm:"index;type:varchar(64)"`
	RiskLevel           string `gorm:"type:varchar(16)"`
	RiskScore           int
	Reason              string
	RecommendedAction   string
	TimeToCriticalHours *float64
	Provenance          string `gorm:"type:varchar(16)"`
	Status              string `gorm:"index;type:varchar(16)"`
	ResolvedBy          string
	ResolvedAt          *time.Time
	CreatedAt           time.Time `gorm:"index"`
}

func (alertRow) TableName() string { return "alerts" }

func (r alertRow) toDomain() types.Alert {
	return types.Alert{
		ID:                  r.ID,
		Type:                types.AlertType(r.Type),
		BatchID:             r.BatchID,
		WarehouseID:         r.WarehouseID,
		RiskLevel:           types.RiskLevel(r.RiskLevel),
		RiskScore:           r.RiskScore,
		Reason:              r.Reason,
		RecommendedAction:   r.RecommendedAction,
		TimeToCriticalHours: r.TimeToCriticalHours,
		Provenance:          types.Provenance(r.Provenance),
		Status:              types.AlertStatus(r.Status),
		ResolvedBy:          r.ResolvedBy,
		ResolvedAt:          r.ResolvedAt,
		CreatedAt:           r.CreatedAt,
	}
}

func alertFromDomain(a types.Alert) alertRow {
	return alertRow{
		ID:                  a.ID,
		Type:                string(a.Type),
		BatchID:             a.BatchID,
		WarehouseID:         a.WarehouseID,
		RiskLevel:           string(a.RiskLevel),
		RiskScore:           a.RiskScore,
		Reason:              a.Reason,
		RecommendedAction:   a.RecommendedAction,
		TimeToCriticalHours: a.TimeToCriticalHours,
		Provenance:          string(a.Provenance),
		Status:              string(a.Status),
		ResolvedBy:          a.ResolvedBy,
		ResolvedAt:          a.ResolvedAt,
		CreatedAt:           a.CreatedAt,
	}
}
