// Package scheduler drives the arena's periodic cycles off cron specs:
// trading rounds, elimination, and the daily reflection summary.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"paper-arena/internal/arena"
	"paper-arena/internal/config"
	"paper-arena/internal/errors"
)

// Scheduler wraps a cron runner around the arena controller.
type Scheduler struct {
	cron       *cron.Cron
	controller *arena.Controller
	log        zerolog.Logger
}

// New creates a Scheduler. Jobs are registered with Register before Start.
func New(controller *arena.Controller, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		controller: controller,
		log:        logger,
	}
}

// Register wires the three cycles to their cron specs. An empty spec
// disables that cycle.
func (s *Scheduler) Register(ctx context.Context, cfg config.ScheduleConfig) error {
	if cfg.RoundCron != "" {
		if _, err := s.cron.AddFunc(cfg.RoundCron, func() { s.runRound(ctx) }); err != nil {
			return errors.Wrap(err, "round schedule")
		}
	}
	if cfg.EliminationCron != "" {
		if _, err := s.cron.AddFunc(cfg.EliminationCron, func() { s.runElimination(ctx) }); err != nil {
			return errors.Wrap(err, "elimination schedule")
		}
	}
	if cfg.SummaryCron != "" {
		if _, err := s.cron.AddFunc(cfg.SummaryCron, func() { s.runSummary(ctx) }); err != nil {
			return errors.Wrap(err, "summary schedule")
		}
	}
	s.log.Info().
		Str("round", cfg.RoundCron).
		Str("elimination", cfg.EliminationCron).
		Str("summary", cfg.SummaryCron).
		Msg("schedules registered")
	return nil
}

// Start begins firing registered jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for any running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runRound(ctx context.Context) {
	report, err := s.controller.RunTradingRound(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrRoundInProgress) {
			s.log.Warn().Msg("previous cycle still running, round skipped")
			return
		}
		s.log.Error().Err(err).Msg("scheduled round failed")
		return
	}
	s.log.Info().Int("round", report.Round).Int("trades", len(report.Trades)).Msg("scheduled round done")
}

func (s *Scheduler) runElimination(ctx context.Context) {
	result, err := s.controller.RunElimination(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrRoundInProgress) {
			s.log.Warn().Msg("previous cycle still running, elimination skipped")
			return
		}
		s.log.Error().Err(err).Msg("scheduled elimination failed")
		return
	}
	if result.Skipped {
		return
	}
	s.log.Info().Int("eliminated", len(result.Eliminated)).Int("next_round", result.NextRound).Msg("scheduled elimination done")
}

func (s *Scheduler) runSummary(ctx context.Context) {
	reflections := s.controller.GenerateDailySummary(ctx)
	s.log.Info().Int("reflections", len(reflections)).Msg("daily summaries written")
}
