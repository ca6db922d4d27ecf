/*
scheduler.go - Automatic daily trigger for the due-occurrence processor

PURPOSE:
  Fires the same RunDue the manual endpoint exposes, once per day on a
  cron cadence. The processor itself is clock-injected and trigger-free;
  this file is the only place wall-clock scheduling lives.

DESIGN:
  - robfig/cron drives the cadence (default: 06:00 every day)
  - Each firing is one ordinary RunDue(today) - overdue schedules catch
    up one period per firing
  - A firing that overlaps a manual run is safe: identical fingerprints
    collapse to no-ops at the storage boundary

USAGE:
  sched := api.NewDailyScheduler(processor, "0 6 * * *", logger)
  sched.Start()
  // ... later
  sched.Stop()

SEE ALSO:
  - recurrence/processor.go: What each firing executes
  - handlers.go: RunDue, the manual twin of this trigger
*/
package api

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/recurrence"
)

// DailyScheduler fires due-occurrence runs on a cron cadence.
type DailyScheduler struct {
	processor *recurrence.Processor
	spec      string
	log       zerolog.Logger

	cron *cron.Cron
}

// NewDailyScheduler creates a scheduler. The spec is standard 5-field cron
// syntax; an empty spec defaults to 06:00 daily.
func NewDailyScheduler(processor *recurrence.Processor, spec string, log zerolog.Logger) *DailyScheduler {
	if spec == "" {
		spec = "0 6 * * *"
	}
	return &DailyScheduler{processor: processor, spec: spec, log: log}
}

// Start begins firing. Returns an error only for an invalid cron spec.
func (s *DailyScheduler) Start() error {
	c := cron.New()
	_, err := c.AddFunc(s.spec, s.fire)
	if err != nil {
		return err
	}
	s.cron = c
	c.Start()
	s.log.Info().Str("spec", s.spec).Msg("daily scheduler started")
	return nil
}

// Stop halts the trigger and waits for an in-flight run to finish.
func (s *DailyScheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.log.Info().Msg("daily scheduler stopped")
}

func (s *DailyScheduler) fire() {
	// Zero target = the processor's clock decides what "today" is.
	result, err := s.processor.RunDue(context.Background(), ledger.Date{})
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled run failed")
		return
	}
	for _, f := range result.Failures {
		s.log.Warn().
			Str("definition_id", string(f.DefinitionID)).
			Err(f.Err).
			Msg("definition skipped in scheduled run")
	}
	s.log.Info().
		Int("created", result.Created).
		Int("failed", len(result.Failures)).
		Msg("scheduled run complete")
}
