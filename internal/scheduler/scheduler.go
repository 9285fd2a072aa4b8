// internal/scheduler/scheduler.go
// In-process timers for the weekly and daily jobs

package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Schedule holds the UTC run times of the periodic jobs
type Schedule struct {
	WeeklyMatchWeekday time.Weekday
	WeeklyMatchHour    int
	WeeklyMatchMinute  int
	DailySweepHour     int
	ArchiveWeekday     time.Weekday
	ArchiveHour        int
}

// DefaultSchedule runs generation Sunday 04:30, the sweeps daily at 18:00 and
// archival Sunday at midnight
var DefaultSchedule = Schedule{
	WeeklyMatchWeekday: time.Sunday,
	WeeklyMatchHour:    4,
	WeeklyMatchMinute:  30,
	DailySweepHour:     18,
	ArchiveWeekday:     time.Sunday,
	ArchiveHour:        0,
}

type Scheduler struct {
	runner   *Runner
	schedule Schedule
	logger   *zap.Logger
	now      func() time.Time
}

func NewScheduler(runner *Runner, schedule Schedule, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{runner: runner, schedule: schedule, logger: logger.Named("scheduler"), now: time.Now}
}

// Start launches the timers. They stop when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	sc := s.schedule

	go s.loop(ctx, func(now time.Time) time.Time {
		return nextWeekly(now, sc.WeeklyMatchWeekday, sc.WeeklyMatchHour, sc.WeeklyMatchMinute)
	}, JobWeeklyMatches)

	// rooms advance before they expire so the day 7 reminder precedes expiry
	go s.loop(ctx, func(now time.Time) time.Time {
		return nextDaily(now, sc.DailySweepHour, 0)
	}, JobAdvanceDays, JobExpireRooms, JobExpireMatches)

	go s.loop(ctx, func(now time.Time) time.Time {
		return nextWeekly(now, sc.ArchiveWeekday, sc.ArchiveHour, 0)
	}, JobArchiveRooms)

	s.logger.Info("scheduler started",
		zap.Stringer("weekly_matches", sc.WeeklyMatchWeekday),
		zap.Int("daily_sweep_hour", sc.DailySweepHour),
		zap.Stringer("archive", sc.ArchiveWeekday),
	)
}

func (s *Scheduler) loop(ctx context.Context, next func(time.Time) time.Time, jobs ...string) {
	for {
		now := s.now()
		timer := time.NewTimer(next(now).Sub(now))

		select {
		case <-timer.C:
			for _, name := range jobs {
				if _, err := s.runner.Run(ctx, name); err != nil {
					s.logger.Warn("scheduled job did not complete", zap.String("job", name), zap.Error(err))
				}
			}
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// nextDaily is the first hour:minute UTC strictly after now
func nextDaily(now time.Time, hour, minute int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// nextWeekly is the first weekday hour:minute UTC strictly after now
func nextWeekly(now time.Time, weekday time.Weekday, hour, minute int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	next = next.AddDate(0, 0, (int(weekday)-int(next.Weekday())+7)%7)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}
