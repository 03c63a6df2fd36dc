// Package schedule fires a callback once a day at a fixed local wall-clock
// time.
package schedule

import (
	"context"
	"time"

	"grana/internal/log"
)

// Scheduler fires once per local calendar day at hour:minute in loc. The
// next fire is always recomputed with time.Date after each run, so DST
// shifts move the fire with the wall clock instead of drifting by the
// offset, and runs missed while the process was down are skipped rather
// than replayed.
type Scheduler struct {
	loc    *time.Location
	hour   int
	minute int
	logger *log.Logger
	now    func() time.Time
}

func New(loc *time.Location, hour, minute int, logger *log.Logger) *Scheduler {
	return &Scheduler{
		loc:    loc,
		hour:   hour,
		minute: minute,
		logger: logger.WithComponent(log.ComponentSchedule),
		now:    time.Now,
	}
}

// NextFire returns the first hour:minute wall-clock instant strictly after t.
func (s *Scheduler) NextFire(t time.Time) time.Time {
	local := t.In(s.loc)
	fire := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !fire.After(t) {
		fire = time.Date(local.Year(), local.Month(), local.Day()+1, s.hour, s.minute, 0, 0, s.loc)
	}
	return fire
}

// Run blocks, invoking fn at each fire until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, fn func(context.Context)) error {
	for {
		fire := s.NextFire(s.now())
		s.logger.InfoContext(ctx, "Next scheduled report", "fire_at", fire.Format(time.RFC3339))

		timer := time.NewTimer(fire.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		s.logger.InfoContext(ctx, "Scheduled report firing")
		fn(ctx)
	}
}
