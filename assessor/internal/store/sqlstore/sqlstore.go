// Package sqlstore implements the store ports on gorm, over SQLite or
// Postgres. Open migrates the schema on connect.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/apperr"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/config"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/logger"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/store"
	"github.com/itzrealashwin/AnnaRaksha/pkg/types"
)

// Store is a gorm-backed implementation of every store port.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects to the backend named by cfg and migrates the schema. gorm's
// own logging goes to log, which may be nil.
func Open(cfg config.StorageConfig, log *logger.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Backend {
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	case "postgres":
		dsn := cfg.DSN()
		if dsn == "" {
			return nil, fmt.Errorf("sqlstore: %s is not set", cfg.DSNEnv)
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("sqlstore: unsupported backend %q", cfg.Backend)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLog(log)})
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", cfg.Backend, err)
	}
	return New(db)
}

// New wraps an open connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&batchRow{}, &warehouseRow{}, &sensorReadingRow{}, &alertRow{}); err != nil {
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Set returns the ports backed by s.
func (s *Store) Set() store.Set {
	return store.Set{
		Batches:    batches{s},
		Sensors:    sensors{s},
		Warehouses: warehouses{s},
		Alerts:     alerts{s},
		Close:      s.Close,
	}
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// PutBatch inserts or replaces a batch.
func (s *Store) PutBatch(ctx context.Context, b types.Batch) error {
	row := batchFromDomain(b)
	return s.db.WithContext(ctx).Save(&row).Error
}

// PutWarehouse inserts or replaces a warehouse.
func (s *Store) PutWarehouse(ctx context.Context, w types.Warehouse) error {
	row := warehouseFromDomain(w)
	return s.db.WithContext(ctx).Save(&row).Error
}

// AddReading appends a sensor reading.
func (s *Store) AddReading(ctx context.Context, r types.SensorReading) error {
	row := sensorReadingRow{
		WarehouseID: r.WarehouseID,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		RecordedAt:  r.RecordedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// ── batches ───────────────────────────────────────────────────────────────────

type batches struct{ s *Store }

func (b batches) FindActive(ctx context.Context) ([]types.Batch, error) {
	statuses := make([]string, len(types.MonitoredStatuses))
	for i, st := range types.MonitoredStatuses {
		statuses[i] = string(st)
	}

	var rows []batchRow
	if err := b.s.db.WithContext(ctx).Where("status IN ?", statuses).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sqlstore: find active batches: %w", err)
	}
	now := b.s.now()
	out := make([]types.Batch, 0, len(rows))
	for _, r := range rows {
		batch := r.toDomain()
		if batch.EffectiveStatus(now).Monitored() {
			out = append(out, batch)
		}
	}
	return out, nil
}

func (b batches) Get(ctx context.Context, id string) (*types.Batch, error) {
	var row batchRow
	err := b.s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Errorf(apperr.NotFound, "store: batch", "batch %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get batch: %w", err)
	}
	out := row.toDomain()
	return &out, nil
}

func (b batches) UpdateRisk(ctx context.Context, id string, u types.RiskUpdate) error {
	res := b.s.db.WithContext(ctx).
		Model(&batchRow{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"risk_score":           u.Score,
			"risk_level":           string(u.Level),
			"last_analyzed_at":     u.AnalyzedAt,
			"cooldown_until":       u.CooldownUntil,
			"last_risk_updated_at": u.AnalyzedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("sqlstore: update risk: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Errorf(apperr.NotFound, "store: update risk", "batch %q not found", id)
	}
	return nil
}

// ── sensors and warehouses ───────────────────────────────────────────────────

type sensors struct{ s *Store }

func (r sensors) Latest(ctx context.Context, warehouseID string) (*types.SensorReading, error) {
	var rows []sensorReadingRow
	err := r.s.db.WithContext(ctx).
		Where("warehouse_id = ?", warehouseID).
		Order("recorded_at DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sqlstore: latest reading: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &types.SensorReading{
		WarehouseID: rows[0].WarehouseID,
		Temperature: rows[0].Temperature,
		Humidity:    rows[0].Humidity,
		RecordedAt:  rows[0].RecordedAt,
	}, nil
}

type warehouses struct{ s *Store }

func (w warehouses) Get(ctx context.Context, id string) (*types.Warehouse, error) {
	var row warehouseRow
	err := w.s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Errorf(apperr.NotFound, "store: warehouse", "warehouse %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get warehouse: %w", err)
	}
	out := row.toDomain()
	return &out, nil
}

// ── alerts ────────────────────────────────────────────────────────────────────

type alerts struct{ s *Store }

func (a alerts) Create(ctx context.Context, alert *types.Alert) error {
	row := alertFromDomain(*alert)
	if err := a.s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("sqlstore: create alert: %w", err)
	}
	return nil
}

func (a alerts) Get(ctx context.Context, id string) (*types.Alert, error) {
	var row alertRow
	err := a.s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Errorf(apperr.NotFound, "store: alert", "alert %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get alert: %w", err)
	}
	out := row.toDomain()
	return &out, nil
}

func (a alerts) List(ctx context.Context, f types.AlertFilter, p types.Page) (types.AlertPage, error) {
	p = p.Normalize()

	filtered := func() *gorm.DB {
		q := a.s.db.WithContext(ctx).Model(&alertRow{})
		if f.WarehouseID != "" {
			q = q.Where("warehouse_id = ?", f.WarehouseID)
		}
		if f.BatchID != "" {
			q = q.Where("batch_id = ?", f.BatchID)
		}
		if f.Status != "" {
			q = q.Where("status = ?", string(f.Status))
		}
		if f.RiskLevel != "" {
			q = q.Where("risk_level = ?", string(f.RiskLevel))
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return types.AlertPage{}, fmt.Errorf("sqlstore: count alerts: %w", err)
	}
	var rows []alertRow
	if err := filtered().Order("created_at DESC, id DESC").Offset(p.Offset()).Limit(p.Limit).Find(&rows).Error; err != nil {
		return types.AlertPage{}, fmt.Errorf("sqlstore: list alerts: %w", err)
	}

	page := types.AlertPage{Items: make([]types.Alert, 0, len(rows)), Total: int(total), Page: p.Page, Limit: p.Limit}
	for _, r := range rows {
		page.Items = append(page.Items, r.toDomain())
	}
	return page, nil
}

// Transition updates only rows still active, so a concurrent resolve and
// dismiss cannot both succeed.
func (a alerts) Transition(ctx context.Context, id string, to types.AlertStatus, actor string, at time.Time) (*types.Alert, error) {
	const op = "store: transition alert"
	res := a.s.db.WithContext(ctx).
		Model(&alertRow{}).
		Where("id = ? AND status = ?", id, string(types.AlertActive)).
		Updates(map[string]interface{}{
			"status":      string(to),
			"resolved_by": actor,
			"resolved_at": at,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("sqlstore: transition alert: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		cur, err := a.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, apperr.Errorf(apperr.Conflict, op, "alert %q is %s", id, cur.Status)
	}
	return a.Get(ctx, id)
}
