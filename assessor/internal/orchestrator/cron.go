package orchestrator

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/apperr"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/config"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/logger"
)

type cronState struct {
	c    *cron.Cron
	spec string
	id   cron.EntryID
	ctx  context.Context
}

// Start schedules RunScheduledAssessment on spec, a standard five-field cron
// expression. The schedule stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()
	if s.cron != nil {
		return apperr.Errorf(apperr.Conflict, "orchestrator: start", "scheduler already started")
	}

	cl := cronLogger{log: s.log}
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl))
	st := &cronState{c: c, ctx: ctx}
	if err := s.schedule(st, spec); err != nil {
		return err
	}
	s.cron = st
	c.Start()
	s.log.Info("orchestrator: schedule started", "cron", spec)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		s.log.Info("orchestrator: schedule stopped")
	}()
	return nil
}

// Reschedule replaces the cron expression of a started scheduler.
func (s *Scheduler) Reschedule(spec string) error {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()
	if s.cron == nil {
		return apperr.Errorf(apperr.Conflict, "orchestrator: reschedule", "scheduler not started")
	}
	if spec == s.cron.spec {
		return nil
	}
	old := s.cron.id
	if err := s.schedule(s.cron, spec); err != nil {
		return err
	}
	s.cron.c.Remove(old)
	s.log.Info("orchestrator: schedule changed", "cron", spec)
	return nil
}

// Schedule returns the active cron expression, or "" before Start.
func (s *Scheduler) Schedule() string {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()
	if s.cron == nil {
		return ""
	}
	return s.cron.spec
}

func (s *Scheduler) schedule(st *cronState, spec string) error {
	id, err := st.c.AddFunc(spec, func() {
		if _, err := s.RunScheduledAssessment(st.ctx); err != nil {
			s.log.Error("orchestrator: scheduled run failed", "error", err)
		}
	})
	if err != nil {
		return apperr.New(apperr.InvalidInput, "orchestrator: schedule", fmt.Errorf("cron %q: %w", spec, err))
	}
	st.id = id
	st.spec = spec
	return nil
}

// ApplyConfig pushes the hot-reloadable settings of cfg into a running
// scheduler: policy, cooldown window and cron expression. A run in progress
// keeps the policy it started with.
func (s *Scheduler) ApplyConfig(cfg *config.Config) error {
	s.SetPolicy(PolicyFromConfig(cfg))
	s.risk.SetCooldown(cfg.Cooldown.Window)
	s.log.Info("orchestrator: config applied",
		"cooldown", cfg.Cooldown.Window.String(),
		"create_on_low", cfg.Alerts.CreateOnLow,
		"fallback_on_failure", cfg.Risk.FallbackOnFailure,
	)
	if s.Schedule() == "" {
		return nil
	}
	return s.Reschedule(cfg.Schedule.Cron)
}

// cronLogger routes cron's internal logging through the service logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
