package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/apperr"
	"github.com/itzrealashwin/AnnaRaksha/pkg/types"
)

// Memory is a thread-safe in-memory implementation of every port. It is the
// default backend and the one used by tests.
type Memory struct {
	mu         sync.RWMutex
	batches    map[string]types.Batch
	warehouses map[string]types.Warehouse
	readings   map[string]types.SensorReading // latest per warehouse
	alerts     map[string]types.Alert
	now        func() time.Time // injectable for deterministic tests
}

func NewMemory() *Memory {
	return &Memory{
		batches:    make(map[string]types.Batch),
		warehouses: make(map[string]types.Warehouse),
		readings:   make(map[string]types.SensorReading),
		alerts:     make(map[string]types.Alert),
		now:        time.Now,
	}
}

// SetClock replaces the clock used to derive effective batch status.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Set returns the ports backed by m.
func (m *Memory) Set() Set {
	return Set{
		Batches:    memBatches{m},
		Sensors:    memSensors{m},
		Warehouses: memWarehouses{m},
		Alerts:     memAlerts{m},
	}
}

// PutBatch stores or replaces a batch.
func (m *Memory) PutBatch(b types.Batch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[b.ID] = b
}

// PutWarehouse stores or replaces a warehouse.
func (m *Memory) PutWarehouse(w types.Warehouse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warehouses[w.ID] = w
}

// AddReading records r if it is newer than the warehouse's current latest.
func (m *Memory) AddReading(r types.SensorReading) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.readings[r.WarehouseID]; ok && cur.RecordedAt.After(r.RecordedAt) {
		return
	}
	m.readings[r.WarehouseID] = r
}

// AlertCount returns the number of stored alerts.
func (m *Memory) AlertCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.alerts)
}

// ── batches ───────────────────────────────────────────────────────────────────

type memBatches struct{ m *Memory }

func (s memBatches) FindActive(_ context.Context) ([]types.Batch, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	now := s.m.now()
	out := make([]types.Batch, 0, len(s.m.batches))
	for _, b := range s.m.batches {
		if b.EffectiveStatus(now).Monitored() {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s memBatches) Get(_ context.Context, id string) (*types.Batch, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	b, ok := s.m.batches[id]
	if !ok {
		return nil, apperr.Errorf(apperr.NotFound, "store: batch", "batch %q not found", id)
	}
	return &b, nil
}

func (s memBatches) UpdateRisk(_ context.Context, id string, u types.RiskUpdate) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	b, ok := s.m.batches[id]
	if !ok {
		return apperr.Errorf(apperr.NotFound, "store: update risk", "batch %q not found", id)
	}
	u.Apply(&b)
	s.m.batches[id] = b
	return nil
}

// ── sensors and warehouses ───────────────────────────────────────────────────

type memSensors struct{ m *Memory }

func (s memSensors) Latest(_ context.Context, warehouseID string) (*types.SensorReading, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	r, ok := s.m.readings[warehouseID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

type memWarehouses struct{ m *Memory }

func (s memWarehouses) Get(_ context.Context, id string) (*types.Warehouse, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	w, ok := s.m.warehouses[id]
	if !ok {
		return nil, apperr.Errorf(apperr.NotFound, "store: warehouse", "warehouse %q not found", id)
	}
	return &w, nil
}

// ── alerts ────────────────────────────────────────────────────────────────────

type memAlerts struct{ m *Memory }

func (s memAlerts) Create(_ context.Context, a *types.Alert) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.alerts[a.ID]; ok {
		return apperr.Errorf(apperr.Conflict, "store: create alert", "alert %q already exists", a.ID)
	}
	s.m.alerts[a.ID] = *a
	return nil
}

func (s memAlerts) Get(_ context.Context, id string) (*types.Alert, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	a, ok := s.m.alerts[id]
	if !ok {
		return nil, apperr.Errorf(apperr.NotFound, "store: alert", "alert %q not found", id)
	}
	return &a, nil
}

func (s memAlerts) List(_ context.Context, f types.AlertFilter, p types.Page) (types.AlertPage, error) {
	p = p.Normalize()

	s.m.mu.RLock()
	matched := make([]types.Alert, 0, len(s.m.alerts))
	for _, a := range s.m.alerts {
		if f.Match(a) {
			matched = append(matched, a)
		}
	}
	s.m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	page := types.AlertPage{Items: []types.Alert{}, Total: len(matched), Page: p.Page, Limit: p.Limit}
	if off := p.Offset(); off >= 0 && off < len(matched) {
		end := off + p.Limit
		if end > len(matched) {
			end = len(matched)
		}
		page.Items = matched[off:end]
	}
	return page, nil
}

func (s memAlerts) Transition(_ context.Context, id string, to types.AlertStatus, actor string, at time.Time) (*types.Alert, error) {
	const op = "store: transition alert"
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.alerts[id]
	if !ok {
		return nil, apperr.Errorf(apperr.NotFound, op, "alert %q not found", id)
	}
	if a.Status != types.AlertActive {
		return nil, apperr.Errorf(apperr.Conflict, op, "alert %q is %s", id, a.Status)
	}
	a.Status = to
	a.ResolvedBy = actor
	a.ResolvedAt = &at
	s.m.alerts[id] = a
	return &a, nil
}
