// internal/scheduler/jobs.go

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sonuprasad23/spark/internal/common/apperr"
	"github.com/sonuprasad23/spark/internal/matching"
	"github.com/sonuprasad23/spark/internal/rooms"
)

const (
	JobWeeklyMatches = "weekly-matches"
	JobAdvanceDays   = "advance-days"
	JobExpireRooms   = "expire-rooms"
	JobArchiveRooms  = "archive-rooms"
	JobExpireMatches = "expire-matches"
)

var errJobRunning = errors.New("job already running")

// JobFunc runs one job and returns its summary
type JobFunc func(ctx context.Context) (interface{}, error)

// MatchJobs is the part of matching.Generator the jobs need
type MatchJobs interface {
	Run(ctx context.Context) (*matching.GenerationSummary, error)
	ExpireMatches(ctx context.Context) (*matching.ExpirySummary, error)
}

// RoomJobs is the part of rooms.Service the jobs need
type RoomJobs interface {
	AdvanceDays(ctx context.Context) (*rooms.DaySummary, error)
	ExpireRooms(ctx context.Context) (*rooms.ExpirySummary, error)
	ArchiveRooms(ctx context.Context) (*rooms.ArchiveSummary, error)
}

// NewJobs maps job names to the entry points that implement them
func NewJobs(matches MatchJobs, roomJobs RoomJobs) map[string]JobFunc {
	return map[string]JobFunc{
		JobWeeklyMatches: func(ctx context.Context) (interface{}, error) { return matches.Run(ctx) },
		JobExpireMatches: func(ctx context.Context) (interface{}, error) { return matches.ExpireMatches(ctx) },
		JobAdvanceDays:   func(ctx context.Context) (interface{}, error) { return roomJobs.AdvanceDays(ctx) },
		JobExpireRooms:   func(ctx context.Context) (interface{}, error) { return roomJobs.ExpireRooms(ctx) },
		JobArchiveRooms:  func(ctx context.Context) (interface{}, error) { return roomJobs.ArchiveRooms(ctx) },
	}
}

// Runner executes named jobs under a lock and a deadline
type Runner struct {
	jobs    map[string]JobFunc
	locker  Locker
	timeout time.Duration
	logger  *zap.Logger
}

func NewRunner(jobs map[string]JobFunc, locker Locker, timeout time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Runner{jobs: jobs, locker: locker, timeout: timeout, logger: logger.Named("jobs")}
}

// Names lists the registered jobs
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes job name once. It fails FailedPrecondition when another run
// holds the job's lock.
func (r *Runner) Run(ctx context.Context, name string) (interface{}, error) {
	job, ok := r.jobs[name]
	if !ok {
		return nil, apperr.NotFound(fmt.Sprintf("unknown job %q", name))
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	release, acquired, err := r.locker.Acquire(ctx, name, r.lockTTL())
	if err != nil {
		return nil, apperr.Internal("failed to acquire job lock", err)
	}
	if !acquired {
		jobRuns.WithLabelValues(name, "skipped").Inc()
		r.logger.Info("job already running elsewhere, skipping", zap.String("job", name))
		return nil, apperr.Wrap(apperr.CodeFailedPrecondition, "job is already running", errJobRunning)
	}
	defer release()

	start := time.Now()
	r.logger.Info("job started", zap.String("job", name))
	summary, err := job(ctx)
	elapsed := time.Since(start)
	jobDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	if err != nil {
		jobRuns.WithLabelValues(name, "failed").Inc()
		r.logger.Error("job failed", zap.String("job", name), zap.Duration("duration", elapsed), zap.Error(err))
		return summary, err
	}

	jobRuns.WithLabelValues(name, "succeeded").Inc()
	r.logger.Info("job finished",
		zap.String("job", name), zap.Duration("duration", elapsed), zap.Any("summary", summary))
	return summary, nil
}

// lockTTL outlives the job deadline so a crashed holder frees the key eventually
func (r *Runner) lockTTL() time.Duration {
	if r.timeout <= 0 {
		return time.Hour
	}
	return r.timeout + time.Minute
}
