package alerts

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/apperr"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/logger"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/store"
	"github.com/itzrealashwin/AnnaRaksha/pkg/types"
)

// Notifier receives every newly created alert.
type Notifier interface {
	Notify(ctx context.Context, a types.Alert)
}

// Notifiers fans an alert out to every member in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, a types.Alert) {
	for _, n := range ns {
		n.Notify(ctx, a)
	}
}

// CreateInput is one qualifying assessment.
type CreateInput struct {
	BatchID     string           `validate:"required"`
	WarehouseID string           `validate:"required"`
	Result      types.RiskResult // validated as a nested struct
	Provenance  types.Provenance
	// Type defaults to spoilage.
	Type types.AlertType `validate:"omitempty,oneof=spoilage nearExpiry highDuration forecastWarning"`
}

// Service is safe for concurrent use.
type Service struct {
	store    store.Alerts
	notifier Notifier
	log      *logger.Logger
	now      func() time.Time
	newID    func() string
}

// NewService returns a Service over st. n may be nil.
func NewService(st store.Alerts, n Notifier, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:    st,
		notifier: n,
		log:      log.With("component", "alerts"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Create records one alert for a qualifying assessment.
func (s *Service) Create(ctx context.Context, in CreateInput) (*types.Alert, error) {
	const op = "alerts: create"
	if err := types.Validator().Struct(in); err != nil {
		return nil, apperr.New(apperr.InvalidInput, op, err)
	}
	if in.Type == "" {
		in.Type = types.AlertSpoilage
	}

	ttc := in.Result.TimeToCriticalHours
	a := types.Alert{
		ID:                  s.newID(),
		Type:                in.Type,
		BatchID:             in.BatchID,
		WarehouseID:         in.WarehouseID,
		RiskLevel:           in.Result.RiskLevel,
		RiskScore:           int(math.Round(in.Result.RiskScore)),
		Reason:              in.Result.Reason,
		RecommendedAction:   in.Result.RecommendedAction,
		TimeToCriticalHours: &ttc,
		Provenance:          in.Provenance,
		Status:              types.AlertActive,
		CreatedAt:           s.now(),
	}
	if err := s.store.Create(ctx, &a); err != nil {
		return nil, err
	}

	s.log.Warn("alert created",
		"alert_id", a.ID,
		"batch_id", a.BatchID,
		"warehouse_id", a.WarehouseID,
		"level", a.RiskLevel,
		"score", a.RiskScore,
	)
	if s.notifier != nil {
		go s.notifier.Notify(context.WithoutCancel(ctx), a)
	}
	return &a, nil
}

// List returns matching alerts, newest first.
func (s *Service) List(ctx context.Context, f types.AlertFilter, p types.Page) (types.AlertPage, error) {
	if f.Status != "" && f.Status != types.AlertActive && !f.Status.Terminal() {
		return types.AlertPage{}, apperr.Errorf(apperr.InvalidInput, "alerts: list", "unknown status %q", f.Status)
	}
	if f.RiskLevel != "" && !f.RiskLevel.Valid() {
		return types.AlertPage{}, apperr.Errorf(apperr.InvalidInput, "alerts: list", "unknown risk level %q", f.RiskLevel)
	}
	return s.store.List(ctx, f, p.Normalize())
}

func (s *Service) Get(ctx context.Context, id string) (*types.Alert, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Errorf(apperr.InvalidInput, "alerts: get", "id is required")
	}
	return s.store.Get(ctx, id)
}

// Resolve marks an active alert as addressed by actor.
func (s *Service) Resolve(ctx context.Context, id, actor string) (*types.Alert, error) {
	return s.transition(ctx, "alerts: resolve", id, actor, types.AlertResolved)
}

// Dismiss marks an active alert as disregarded by actor.
func (s *Service) Dismiss(ctx context.Context, id, actor string) (*types.Alert, error) {
	return s.transition(ctx, "alerts: dismiss", id, actor, types.AlertDismissed)
}

func (s *Service) transition(ctx context.Context, op, id, actor string, to types.AlertStatus) (*types.Alert, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Errorf(apperr.InvalidInput, op, "id is required")
	}
	if strings.TrimSpace(actor) == "" {
		return nil, apperr.Errorf(apperr.InvalidInput, op, "actor is required")
	}
	a, err := s.store.Transition(ctx, id, to, actor, s.now())
	if err != nil {
		return nil, err
	}
	s.log.Info("alert "+string(to), "alert_id", id, "actor", actor)
	return a, nil
}
