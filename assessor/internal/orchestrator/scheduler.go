package orchestrator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/alerts"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/apperr"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/catalog"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/config"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/cooldown"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/eligibility"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/inference"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/logger"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/metrics"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/queue"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/risk"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/store"
	"github.com/itzrealashwin/AnnaRaksha/pkg/types"
)

var tracer = otel.Tracer("github.com/itzrealashwin/AnnaRaksha/assessor/internal/orchestrator")

// Phase is the state of a scheduled run.
type Phase string

const (
	PhaseFetching   Phase = "fetching"
	PhaseEvaluating Phase = "evaluating"
	PhaseDraining   Phase = "draining"
	PhaseComplete   Phase = "complete"
)

// Batch outcome labels, used for logs and the batches counter.
const (
	outcomeEnqueued      = "enqueued"
	outcomeNoSensor      = "skipped_no_sensor"
	outcomeNoWarehouse   = "skipped_no_warehouse"
	outcomeSuppressed    = "suppressed"
	outcomeNominal       = "nominal"
	outcomeAlreadyQueued = "already_queued"
	outcomeFailed        = "failed"
)

// Queued task result labels, used for the tasks counter.
const (
	taskResultAssessed = "assessed"
	taskResultFailed   = "failed"
)

// Policy is the hot-reloadable part of the configuration.
type Policy struct {
	// CreateOnLow also records alerts for Low results.
	CreateOnLow bool
	// FallbackOnFailure writes the local score when a scheduled inference
	// fails with ServiceUnavailable or InvalidResponse.
	FallbackOnFailure bool
	// EvalConcurrency bounds concurrent batch evaluations.
	EvalConcurrency int
}

// PolicyFromConfig extracts the Policy from cfg.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		CreateOnLow:       cfg.Alerts.CreateOnLow,
		FallbackOnFailure: cfg.Risk.FallbackOnFailure,
		EvalConcurrency:   cfg.Schedule.EvalConcurrency,
	}
}

// Deps are the collaborators a Scheduler coordinates. Metrics and Logger may
// be nil.
type Deps struct {
	Store     store.Set
	Catalog   *catalog.Catalog
	Gate      *cooldown.Gate
	Queue     *queue.Queue
	Inference inference.Client
	Risk      *risk.Engine
	Alerts    *alerts.Service
	Metrics   *metrics.Registry
	Logger    *logger.Logger
}

// RunReport summarises one scheduled run.
type RunReport struct {
	Phase      Phase     `json:"phase"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	// Evaluated counts batches whose evaluation was attempted.
	Evaluated int `json:"evaluated"`
	Enqueued  int `json:"enqueued"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`

	// Task results, known after the drain. Assessed plus TaskFailed is at
	// most Enqueued; the rest were abandoned on shutdown.
	Assessed      int `json:"assessed"`
	TaskFailed    int `json:"taskFailed"`
	Fallbacks     int `json:"fallbacks"`
	AlertsCreated int `json:"alertsCreated"`
}

// Outcome is the result of assessing one batch.
type Outcome struct {
	BatchID       string            `json:"batchId"`
	Score         int               `json:"riskScore"`
	Level         types.RiskLevel   `json:"riskLevel"`
	Provenance    types.Provenance  `json:"provenance"`
	AnalyzedAt    time.Time         `json:"lastAnalyzedAt"`
	CooldownUntil time.Time         `json:"cooldownUntil"`
	Fallback      bool              `json:"fallback,omitempty"`
	Result        *types.RiskResult `json:"result,omitempty"`
	Alert         *types.Alert      `json:"alert,omitempty"`
}

type runCounters struct {
	evaluated, enqueued, skipped, failed atomic.Int64
	assessed, taskFailed                 atomic.Int64
	fallbacks, alerts                    atomic.Int64
}

// Scheduler is safe for concurrent use.
type Scheduler struct {
	store     store.Set
	catalog   *catalog.Catalog
	gate      *cooldown.Gate
	guard     *eligibility.Guard
	queue     *queue.Queue
	inference inference.Client
	risk      *risk.Engine
	alerts    *alerts.Service
	metrics   *metrics.Registry
	log       *logger.Logger

	policy atomic.Pointer[Policy]

	// runMu is held for the whole of a scheduled run.
	runMu sync.Mutex

	// queued holds the IDs of batches submitted and not yet finished.
	queuedMu sync.Mutex
	queued   map[string]struct{}

	cronMu sync.Mutex
	cron   *cronState
}

func New(d Deps, p Policy) *Scheduler {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	s := &Scheduler{
		store:     d.Store,
		catalog:   d.Catalog,
		gate:      d.Gate,
		guard:     eligibility.New(d.Gate, d.Catalog),
		queue:     d.Queue,
		inference: d.Inference,
		risk:      d.Risk,
		alerts:    d.Alerts,
		metrics:   d.Metrics,
		log:       log.With("component", "orchestrator"),
		queued:    make(map[string]struct{}),
	}
	s.SetPolicy(p)
	return s
}

// SetPolicy replaces the policy used from the next evaluation on.
func (s *Scheduler) SetPolicy(p Policy) {
	if p.EvalConcurrency <= 0 {
		p.EvalConcurrency = config.DefaultEvalConcurrency
	}
	s.policy.Store(&p)
}

func (s *Scheduler) Policy() Policy { return *s.policy.Load() }

// RunScheduledAssessment performs one full run. The returned error is non-nil
// only when the batch set cannot be loaded or another run is in progress.
func (s *Scheduler) RunScheduledAssessment(ctx context.Context) (*RunReport, error) {
	const op = "orchestrator: run"
	if !s.runMu.TryLock() {
		return nil, apperr.Errorf(apperr.Conflict, op, "a run is already in progress")
	}
	defer s.runMu.Unlock()

	ctx, span := tracer.Start(ctx, "orchestrator.RunScheduledAssessment")
	defer span.End()

	report := &RunReport{Phase: PhaseFetching, StartedAt: s.gate.Now()}
	started := time.Now()
	s.log.Info("orchestrator: run started")

	batches, err := s.store.Batches.FindActive(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.observeRun("failed", started)
		s.log.Error("orchestrator: run aborted, could not load batches", "error", err)
		return nil, fmt.Errorf("%s: fetch active batches: %w", op, err)
	}

	report.Phase = PhaseEvaluating
	policy := s.Policy()
	var c runCounters

	g := new(errgroup.Group)
	g.SetLimit(policy.EvalConcurrency)
	for _, b := range batches {
		g.Go(func() error {
			s.evaluateSafely(ctx, b, &c)
			return nil
		})
	}
	_ = g.Wait()

	report.Phase = PhaseDraining
	s.log.Info("orchestrator: draining queue", "enqueued", c.enqueued.Load())
	_ = s.queue.Drain(context.WithoutCancel(ctx))

	report.Phase = PhaseComplete
	report.FinishedAt = s.gate.Now()
	report.Evaluated = int(c.evaluated.Load())
	report.Enqueued = int(c.enqueued.Load())
	report.Skipped = int(c.skipped.Load())
	report.Failed = int(c.failed.Load())
	report.Assessed = int(c.assessed.Load())
	report.TaskFailed = int(c.taskFailed.Load())
	report.Fallbacks = int(c.fallbacks.Load())
	report.AlertsCreated = int(c.alerts.Load())

	span.SetAttributes(
		attribute.Int("batches.evaluated", report.Evaluated),
		attribute.Int("batches.enqueued", report.Enqueued),
		attribute.Int("batches.failed", report.Failed),
		attribute.Int("tasks.failed", report.TaskFailed),
	)
	s.observeRun("complete", started)
	s.log.Info("orchestrator: run complete",
		"evaluated", report.Evaluated,
		"enqueued", report.Enqueued,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"assessed", report.Assessed,
		"task_failed", report.TaskFailed,
		"fallbacks", report.Fallbacks,
		"alerts", report.AlertsCreated,
		"took", time.Since(started).String(),
	)
	return report, nil
}

// evaluateSafely is the batch boundary: nothing raised while evaluating b
// escapes it.
func (s *Scheduler) evaluateSafely(ctx context.Context, b types.Batch, c *runCounters) {
	c.evaluated.Add(1)
	defer func() {
		if r := recover(); r != nil {
			c.failed.Add(1)
			s.count(metrics.BatchesTotal, outcomeFailed)
			s.log.Error("orchestrator: batch evaluation panicked", "batch_id", b.ID, "panic", r)
		}
	}()

	outcome, err := s.evaluate(ctx, b, c)
	if err != nil {
		c.failed.Add(1)
		s.count(metrics.BatchesTotal, outcomeFailed)
		s.logBatchError(b.ID, "evaluate", err)
		return
	}
	s.count(metrics.BatchesTotal, outcome)
	switch outcome {
	case outcomeEnqueued:
		c.enqueued.Add(1)
	default:
		c.skipped.Add(1)
	}
}

func (s *Scheduler) evaluate(ctx context.Context, b types.Batch, c *runCounters) (string, error) {
	reading, err := s.store.Sensors.Latest(ctx, b.WarehouseID)
	if err != nil {
		return "", err
	}
	if reading == nil {
		s.log.Info("orchestrator: skipping batch, no sensor data",
			"batch_id", b.ID, "warehouse_id", b.WarehouseID)
		return outcomeNoSensor, nil
	}

	wh, err := s.store.Warehouses.Get(ctx, b.WarehouseID)
	if apperr.Is(err, apperr.NotFound) {
		s.log.Warn("orchestrator: skipping batch, warehouse missing",
			"batch_id", b.ID, "warehouse_id", b.WarehouseID)
		return outcomeNoWarehouse, nil
	}
	if err != nil {
		return "", err
	}

	switch d := s.guard.Decide(b, *reading, wh.EnvironmentClass); d {
	case eligibility.Suppressed:
		s.log.Debug("orchestrator: batch cooling down", "batch_id", b.ID, "until", b.CooldownUntil)
		return outcomeSuppressed, nil
	case eligibility.Nominal:
		s.log.Debug("orchestrator: batch within safe range", "batch_id", b.ID)
		return outcomeNominal, nil
	default:
		s.log.Debug("orchestrator: batch eligible", "batch_id", b.ID, "decision", d.String())
	}

	if !s.claim(b.ID) {
		s.log.Debug("orchestrator: batch already queued", "batch_id", b.ID)
		return outcomeAlreadyQueued, nil
	}

	r, w := *reading, *wh
	s.queue.Submit(ctx, func(ctx context.Context) {
		defer s.release(b.ID)
		out, err := s.assessQueued(ctx, b.ID, r, w, true)
		if err != nil {
			c.taskFailed.Add(1)
			s.count(metrics.TasksTotal, taskResultFailed)
			s.logBatchError(b.ID, "assess", err)
			return
		}
		if out == nil {
			return
		}
		c.assessed.Add(1)
		s.count(metrics.TasksTotal, taskResultAssessed)
		if out.Fallback {
			c.fallbacks.Add(1)
		}
		if out.Alert != nil {
			c.alerts.Add(1)
		}
	})
	return outcomeEnqueued, nil
}

// AssessBatchNow assesses one batch immediately, bypassing the eligibility
// rules. It waits for its turn in the queue and surfaces every error.
func (s *Scheduler) AssessBatchNow(ctx context.Context, batchID string) (*Outcome, error) {
	const op = "orchestrator: assess now"

	b, err := s.store.Batches.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if st := b.EffectiveStatus(s.gate.Now()); !st.Monitored() {
		return nil, apperr.Errorf(apperr.Conflict, op, "batch %s is %s", b.ID, st)
	}
	if s.gate.IsSuppressed(*b) {
		return nil, apperr.Errorf(apperr.Conflict, op, "batch %s is cooling down until %s",
			b.ID, b.CooldownUntil.Format(time.RFC3339))
	}
	reading, err := s.store.Sensors.Latest(ctx, b.WarehouseID)
	if err != nil {
		return nil, err
	}
	if reading == nil {
		return nil, apperr.Errorf(apperr.NotFound, op, "no sensor readings for warehouse %s", b.WarehouseID)
	}
	wh, err := s.store.Warehouses.Get(ctx, b.WarehouseID)
	if err != nil {
		return nil, err
	}
	if !s.claim(b.ID) {
		return nil, apperr.Errorf(apperr.Conflict, op, "batch %s is already queued", b.ID)
	}

	var (
		out     *Outcome
		taskErr error
	)
	r, w := *reading, *wh
	f := s.queue.Submit(ctx, func(ctx context.Context) {
		defer s.release(b.ID)
		out, taskErr = s.assessQueued(ctx, b.ID, r, w, false)
	})
	if err := f.Wait(ctx); err != nil {
		return nil, err
	}
	if taskErr != nil {
		return nil, taskErr
	}
	if out == nil {
		return nil, apperr.Errorf(apperr.Conflict, op, "batch %s was assessed concurrently", b.ID)
	}
	return out, nil
}

// assessQueued runs inside the queue. It re-reads the batch so that a write
// made while the task waited is seen; a batch that entered cooldown or left
// the monitored set meanwhile is not assessed and (nil, nil) is returned.
func (s *Scheduler) assessQueued(ctx context.Context, batchID string, reading types.SensorReading, wh types.Warehouse, scheduled bool) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.assess", trace.WithAttributes(
		attribute.String("batch.id", batchID),
		attribute.Bool("scheduled", scheduled),
	))
	defer span.End()

	b, err := s.store.Batches.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if s.gate.IsSuppressed(*b) || !b.EffectiveStatus(s.gate.Now()).Monitored() {
		s.log.Info("orchestrator: batch changed while queued, not assessing", "batch_id", batchID)
		return nil, nil
	}

	prompt := s.prompt(*b, reading, wh)
	a, err := s.inference.Assess(ctx, prompt)
	if err != nil {
		s.countInference(err)
		span.SetStatus(codes.Error, err.Error())
		if scheduled && s.Policy().FallbackOnFailure && isInferenceFailure(err) {
			s.log.Warn("orchestrator: inference failed, writing local estimate",
				"batch_id", batchID, "kind", apperr.KindOf(err).String(), "error", err)
			written, ferr := s.risk.ApplyLocal(ctx, *b, &reading, &wh)
			if ferr != nil {
				return nil, ferr
			}
			s.count(metrics.RiskWritesTotal, string(written.Provenance))
			out := outcomeFrom(batchID, written)
			out.Fallback = true
			return out, nil
		}
		return nil, err
	}
	s.count(metrics.InferenceTotal, "success")

	written, err := s.risk.ApplyAssessment(ctx, *b, a)
	if err != nil {
		return nil, err
	}
	s.count(metrics.RiskWritesTotal, string(written.Provenance))
	out := outcomeFrom(batchID, written)
	res := written.Result
	out.Result = &res

	if written.Update.Level == types.RiskLow && !s.Policy().CreateOnLow {
		s.log.Debug("orchestrator: low risk, no alert", "batch_id", batchID)
		return out, nil
	}
	alert, err := s.alerts.Create(ctx, alerts.CreateInput{
		BatchID:     b.ID,
		WarehouseID: b.WarehouseID,
		Result:      written.Result,
		Provenance:  written.Provenance,
	})
	if err != nil {
		return out, fmt.Errorf("orchestrator: risk written but alert not created: %w", err)
	}
	s.count(metrics.AlertsTotal, string(alert.RiskLevel))
	out.Alert = alert
	return out, nil
}

func (s *Scheduler) prompt(b types.Batch, reading types.SensorReading, wh types.Warehouse) inference.Prompt {
	p := inference.Prompt{
		BatchID:       b.ID,
		Produce:       b.ProduceType,
		Environment:   wh.EnvironmentClass,
		DaysStored:    roundedDays(b.ArrivalDate, s.gate.Now()),
		ShelfLifeDays: b.ShelfLifeDays,
		Temperature:   reading.Temperature,
		Humidity:      reading.Humidity,
	}
	if rng, ok := s.catalog.Lookup(b.ProduceType, wh.EnvironmentClass); ok {
		p.SafeRange = &rng
	}
	return p
}

func roundedDays(from, to time.Time) int {
	d := to.Sub(from).Hours() / 24
	if d < 0 {
		return 0
	}
	return int(math.Round(d))
}

func outcomeFrom(batchID string, w *risk.Written) *Outcome {
	return &Outcome{
		BatchID:       batchID,
		Score:         w.Update.Score,
		Level:         w.Update.Level,
		Provenance:    w.Provenance,
		AnalyzedAt:    w.Update.AnalyzedAt,
		CooldownUntil: w.Update.CooldownUntil,
	}
}

func isInferenceFailure(err error) bool {
	switch apperr.KindOf(err) {
	case apperr.ServiceUnavailable, apperr.InvalidResponse:
		return true
	}
	return false
}

func (s *Scheduler) claim(batchID string) bool {
	s.queuedMu.Lock()
	defer s.queuedMu.Unlock()
	if _, ok := s.queued[batchID]; ok {
		return false
	}
	s.queued[batchID] = struct{}{}
	return true
}

func (s *Scheduler) release(batchID string) {
	s.queuedMu.Lock()
	defer s.queuedMu.Unlock()
	delete(s.queued, batchID)
}

func (s *Scheduler) logBatchError(batchID, stage string, err error) {
	kind := apperr.KindOf(err)
	if apperr.IsOperational(err) {
		s.log.Warn("orchestrator: batch failed",
			"batch_id", batchID, "stage", stage, "kind", kind.String(), "error", err)
		return
	}
	s.log.Error("orchestrator: batch failed unexpectedly",
		"batch_id", batchID, "stage", stage, "kind", kind.String(), "error", err)
}

func (s *Scheduler) count(name, label string) {
	if s.metrics != nil {
		s.metrics.Inc(name, label)
	}
}

func (s *Scheduler) countInference(err error) {
	switch apperr.KindOf(err) {
	case apperr.ServiceUnavailable:
		s.count(metrics.InferenceTotal, "unavailable")
	case apperr.InvalidResponse:
		s.count(metrics.InferenceTotal, "invalid_response")
	default:
		s.count(metrics.InferenceTotal, "error")
	}
}

func (s *Scheduler) observeRun(result string, started time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveRun(result, time.Now(), time.Since(started))
	}
}
