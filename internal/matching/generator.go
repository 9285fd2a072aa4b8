// internal/matching/generator.go

package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sonuprasad23/spark/internal/common/apperr"
	"github.com/sonuprasad23/spark/internal/notification"
	"github.com/sonuprasad23/spark/internal/profile"
)

const (
	DefaultGenerationConcurrency = 8

	expirySweepPageSize = 500
)

var errNoPreferences = errors.New("user has no preferences")

// Generator produces the weekly match sets
type Generator struct {
	directory   profile.Directory
	repo        Repository
	filter      *CandidateFilter
	notifier    *notification.Dispatcher
	logger      *zap.Logger
	now         func() time.Time
	concurrency int
}

type GeneratorOption func(*Generator)

// WithGeneratorClock overrides time.Now
func WithGeneratorClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

// WithConcurrency bounds how many users are processed at once
func WithConcurrency(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

func NewGenerator(directory profile.Directory, repo Repository, filter *CandidateFilter, notifier *notification.Dispatcher, logger *zap.Logger, opts ...GeneratorOption) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Generator{
		directory:   directory,
		repo:        repo,
		filter:      filter,
		notifier:    notifier,
		logger:      logger.Named("generator"),
		now:         time.Now,
		concurrency: DefaultGenerationConcurrency,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run generates matches for every eligible user in the current cycle. Each
// user is handled independently: a failure is logged and counted and never
// stops the others. Re-running within a cycle only fills remaining quota.
func (g *Generator) Run(ctx context.Context) (*GenerationSummary, error) {
	start := g.now()
	cycle := CycleOf(start)

	users, err := g.directory.ListEligibleUsers(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list eligible users", err)
	}

	g.logger.Info("weekly generation started",
		zap.String("cycle", cycle.String()), zap.Int("users", len(users)))

	var processed, skipped, failed, created atomic.Int64

	var grp errgroup.Group
	grp.SetLimit(g.concurrency)

	for _, user := range users {
		user := user
		grp.Go(func() error {
			n, err := g.generateForUser(ctx, user, cycle)
			created.Add(int64(n))
			switch {
			case errors.Is(err, errNoPreferences):
				skipped.Add(1)
				recordGenerationUser("skipped")
				g.logger.Debug("skipping user without preferences", zap.String("user_id", user.ID))
			case err != nil:
				failed.Add(1)
				recordGenerationUser("failed")
				g.logger.Warn("match generation failed for user",
					zap.String("user_id", user.ID), zap.Int("created", n), zap.Error(err))
			default:
				processed.Add(1)
				recordGenerationUser("processed")
			}
			return nil
		})
	}
	_ = grp.Wait()

	summary := &GenerationSummary{
		Week:            cycle.Week,
		Year:            cycle.Year,
		UsersConsidered: len(users),
		UsersProcessed:  int(processed.Load()),
		UsersSkipped:    int(skipped.Load()),
		UsersFailed:     int(failed.Load()),
		MatchesCreated:  int(created.Load()),
		Duration:        g.now().Sub(start),
	}
	recordGenerationDuration(summary.Duration)

	g.logger.Info("weekly generation finished",
		zap.String("cycle", cycle.String()),
		zap.Int("processed", summary.UsersProcessed),
		zap.Int("skipped", summary.UsersSkipped),
		zap.Int("failed", summary.UsersFailed),
		zap.Int("matches_created", summary.MatchesCreated),
		zap.Duration("duration", summary.Duration),
	)

	if err := ctx.Err(); err != nil {
		return summary, apperr.Internal("weekly generation interrupted", err)
	}
	return summary, nil
}

// generateForUser returns how many records it created, even on error
func (g *Generator) generateForUser(ctx context.Context, user *profile.UserProfile, cycle Cycle) (int, error) {
	prefs, err := g.directory.GetPreferences(ctx, user.ID)
	if errors.Is(err, profile.ErrPreferencesNotFound) {
		return 0, errNoPreferences
	}
	if err != nil {
		return 0, err
	}

	existing, err := g.repo.ListByUser(ctx, user.ID, cycle)
	if err != nil {
		return 0, fmt.Errorf("count existing matches: %w", err)
	}
	remaining := user.WeeklyQuota() - len(existing)
	if remaining <= 0 {
		return 0, nil
	}

	candidates, err := g.filter.Candidates(ctx, user, prefs, cycle)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	ranked, err := g.rank(ctx, user, candidates)
	if err != nil {
		return 0, err
	}
	if len(ranked) > remaining {
		ranked = ranked[:remaining]
	}

	now := g.now()
	created := 0
	for _, c := range ranked {
		ok, err := g.repo.CreateIfAbsent(ctx, newRecord(user, c.User, c.Score, cycle, now))
		if err != nil {
			g.notifyNewMatches(ctx, user.ID, created)
			return created, fmt.Errorf("create match with %s: %w", c.User.ID, err)
		}
		if ok {
			created++
			recordMatchCreated(c.Score)
		}
	}

	g.notifyNewMatches(ctx, user.ID, created)
	return created, nil
}

func (g *Generator) notifyNewMatches(ctx context.Context, userID string, created int) {
	if created > 0 {
		g.notifier.NewMatches(ctx, userID, created)
	}
}

// rank full-scores candidates, drops those under the cutoff, and sorts by
// score descending then candidate id ascending
func (g *Generator) rank(ctx context.Context, user *profile.UserProfile, candidates []*profile.UserProfile) ([]*CandidatePreview, error) {
	ids := make([]string, 0, len(candidates)+1)
	ids = append(ids, user.ID)
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	answers, err := g.directory.GetQuestionnaires(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load questionnaires: %w", err)
	}

	ranked := make([]*CandidatePreview, 0, len(candidates))
	for _, c := range candidates {
		score := FullScore(user, c, answers[user.ID], answers[c.ID])
		if score < MinCompatibilityScore {
			continue
		}
		ranked = append(ranked, &CandidatePreview{User: c, Score: score})
	}
	sortRanked(ranked)
	return ranked, nil
}

func sortRanked(ranked []*CandidatePreview) {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].User.ID < ranked[j].User.ID
	})
}

// ExpireMatches marks open records past their expiry as expired
func (g *Generator) ExpireMatches(ctx context.Context) (*ExpirySummary, error) {
	summary := &ExpirySummary{}
	now := g.now()

	for {
		page, err := g.repo.ListExpirable(ctx, now, expirySweepPageSize)
		if err != nil {
			return summary, apperr.Internal("failed to list expirable matches", err)
		}
		if len(page) == 0 {
			break
		}

		progressed := 0
		for _, rec := range page {
			expired := false
			_, err := g.repo.Mutate(ctx, rec.ID, func(m, _ *MatchRecord) (bool, error) {
				if !m.Open() || m.ExpiresAt.After(now) {
					return false, nil
				}
				m.Status = StatusExpired
				expired = true
				return true, nil
			})
			if err != nil {
				summary.Failed++
				g.logger.Warn("failed to expire match", zap.String("match_id", rec.ID), zap.Error(err))
				continue
			}
			progressed++
			if expired {
				summary.Expired++
				matchesExpired.Inc()
			}
		}

		if len(page) < expirySweepPageSize || progressed == 0 {
			break
		}
	}

	g.logger.Info("match expiry sweep finished",
		zap.Int("expired", summary.Expired), zap.Int("failed", summary.Failed))
	return summary, nil
}
