// Package jobs runs the background schedules: the cache sweep and the
// nightly workload rollup.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/citamed/citamed/internal/domain/appointment"
	"github.com/citamed/citamed/internal/domain/professional"
	"github.com/citamed/citamed/internal/platform/cache"
	"github.com/citamed/citamed/pkg/timeslot"
)

const (
	// Runs shortly after midnight so the rollup reflects the finished day.
	monthlyHoursSchedule = "5 0 * * *"

	rollupTimeout = 2 * time.Minute
	rosterPage    = 200
)

// Scheduler owns the cron runner and the jobs registered on it.
type Scheduler struct {
	cron   *cron.Cron
	store  *cache.InMemoryStore
	appts  appointment.Repository
	roster professional.Repository
	logger zerolog.Logger
}

func NewScheduler(store *cache.InMemoryStore, appts appointment.Repository, roster professional.Repository, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		store:  store,
		appts:  appts,
		roster: roster,
		logger: logger,
	}
}

// Start registers the schedules and launches the runner.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@every "+cache.SweepInterval.String(), func() {
		s.store.Sweep()
	}); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(monthlyHoursSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), rollupTimeout)
		defer cancel()
		if err := s.RecomputeMonthlyHours(ctx); err != nil {
			s.logger.Error().Err(err).Msg("monthly hours rollup failed")
		}
	}); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the runner and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RecomputeMonthlyHours rewrites every professional's totalHoursThisMonth
// from the current month's non-cancelled appointments.
func (s *Scheduler) RecomputeMonthlyHours(ctx context.Context) error {
	now := time.Now()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	from := timeslot.DateOf(first)
	to := timeslot.DateOf(first.AddDate(0, 1, -1))

	updated := 0
	for offset := 0; ; offset += rosterPage {
		page, _, err := s.roster.List(ctx, professional.Filter{}, rosterPage, offset)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			break
		}
		for _, p := range page {
			appts, err := s.appts.FindByProfessional(ctx, p.ID, from, to)
			if err != nil {
				return err
			}
			minutes := 0
			for _, a := range appts {
				if a.Status.Blocking() {
					minutes += a.DurationMin
				}
			}
			hours := float64(minutes) / 60
			if hours == p.TotalHoursThisMonth {
				continue
			}
			if err := s.roster.SetMonthlyHours(ctx, p.ID, hours); err != nil {
				return err
			}
			updated++
		}
		if len(page) < rosterPage {
			break
		}
	}

	s.store.Clear()
	s.logger.Info().Int("updated", updated).Msg("monthly hours rollup complete")
	return nil
}
