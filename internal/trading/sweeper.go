package trading

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultSweepSchedule runs the idempotency sweep hourly
const DefaultSweepSchedule = "@every 1h"

// Sweeper periodically evicts expired idempotency records
type Sweeper struct {
	service  *Service
	schedule string
	cron     *cron.Cron
}

// NewSweeper validates schedule and prepares a cron runner for it
func NewSweeper(service *Service, schedule string) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	s := &Sweeper{
		service:  service,
		schedule: schedule,
		cron:     cron.New(),
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.sweep() }); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the sweeper until ctx is done
func (s *Sweeper) Start(ctx context.Context) {
	logger := log.With().Str("component", "idempotency_sweeper").Logger()
	logger.Info().Str("schedule", s.schedule).Msg("starting idempotency sweeper")

	s.cron.Start()
	<-ctx.Done()

	logger.Info().Msg("shutting down idempotency sweeper")
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() int {
	removed := s.service.EvictExpiredIdempotencyRecords()
	if removed > 0 {
		log.Info().
			Str("component", "idempotency_sweeper").
			Int("removed", removed).
			Msg("evicted expired idempotency records")
	}
	return removed
}
