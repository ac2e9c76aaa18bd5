package risk

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/cooldown"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/inference"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/logger"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/store"
	"github.com/itzrealashwin/AnnaRaksha/pkg/types"
)

// Written is what one write-back stored.
type Written struct {
	Update     types.RiskUpdate
	Provenance types.Provenance

	// Result is the normalised inference result. Zero for local writes.
	Result types.RiskResult
	// Local is the heuristic breakdown. Nil for inference writes.
	Local *Output
}

// Engine writes risk results back to batch state. It is safe for concurrent
// use; the cooldown window may be changed while running.
type Engine struct {
	batches store.Batches
	gate    *cooldown.Gate
	window  atomic.Int64 // time.Duration
	log     *logger.Logger
}

func NewEngine(batches store.Batches, gate *cooldown.Gate, window time.Duration, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	e := &Engine{batches: batches, gate: gate, log: log.With("component", "risk")}
	e.window.Store(int64(window))
	return e
}

// SetCooldown replaces the window used by subsequent writes.
func (e *Engine) SetCooldown(d time.Duration) { e.window.Store(int64(d)) }

func (e *Engine) Cooldown() time.Duration { return time.Duration(e.window.Load()) }

// ApplyLocal scores b with the local heuristic and writes the result.
func (e *Engine) ApplyLocal(ctx context.Context, b types.Batch, reading *types.SensorReading, wh *types.Warehouse) (*Written, error) {
	in, err := LocalInput(b, reading, wh, e.gate.Now())
	if err != nil {
		return nil, err
	}
	out := Compute(in)
	u, err := e.write(ctx, b.ID, out.Score)
	if err != nil {
		return nil, err
	}
	e.log.Info("risk: local score written",
		"batch_id", b.ID,
		"score", out.Score,
		"level", out.Level,
		"days_left", out.DaysLeft,
	)
	return &Written{Update: u, Provenance: types.ProvenanceLocal, Local: &out}, nil
}

// ApplyAssessment writes an inference result. The score is rounded and
// clamped to [0, 100]; the stored level is derived from it, and a level
// reported by the service that disagrees is logged and replaced.
func (e *Engine) ApplyAssessment(ctx context.Context, b types.Batch, a *inference.Assessment) (*Written, error) {
	if a == nil {
		return nil, fmt.Errorf("risk: apply assessment: nil assessment")
	}
	res := a.Result
	score := clampScore(res.RiskScore)
	level := types.LevelForScore(score)
	if res.RiskLevel != level {
		e.log.Info("risk: service level disagrees with score",
			"batch_id", b.ID,
			"score", score,
			"service_level", res.RiskLevel,
			"level", level,
		)
	}
	res.RiskScore = float64(score)
	res.RiskLevel = level
	if res.TimeToCriticalHours < 0 {
		res.TimeToCriticalHours = 0
	}

	u, err := e.write(ctx, b.ID, score)
	if err != nil {
		return nil, err
	}
	e.log.Info("risk: assessment written",
		"batch_id", b.ID,
		"score", score,
		"level", level,
		"provenance", a.Provenance,
		"attempts", a.Attempts,
	)
	return &Written{Update: u, Provenance: a.Provenance, Result: res}, nil
}

// write stores score with its derived level and a fresh cooldown window.
// AnalyzedAt is derived from the window end so both come from one clock read.
func (e *Engine) write(ctx context.Context, batchID string, score int) (types.RiskUpdate, error) {
	window := e.Cooldown()
	until := e.gate.NextWindow(window)
	u := types.RiskUpdate{
		Score:         score,
		Level:         types.LevelForScore(score),
		AnalyzedAt:    until.Add(-window),
		CooldownUntil: until,
	}
	if err := e.batches.UpdateRisk(ctx, batchID, u); err != nil {
		return types.RiskUpdate{}, fmt.Errorf("risk: write back %s: %w", batchID, err)
	}
	return u, nil
}
