// internal/matching/service.go

package matching

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sonuprasad23/spark/internal/common/apperr"
	"github.com/sonuprasad23/spark/internal/profile"
)

// previewScanLimit caps the on-demand preview query
const previewScanLimit = 100

// Service is the user-facing matching API
type Service interface {
	RecordAction(ctx context.Context, matchID, userID string, action Action) (*ActionResult, error)
	MarkViewed(ctx context.Context, matchID, userID string) (*MatchRecord, error)
	WeeklyMatches(ctx context.Context, userID string) ([]*MatchView, error)
	PreviewCandidates(ctx context.Context, userID string) ([]*CandidatePreview, error)
	Compatibility(ctx context.Context, userID, otherUserID string) (int, error)
}

type service struct {
	repo      Repository
	directory profile.Directory
	resolver  *Resolver
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(repo Repository, directory profile.Directory, resolver *Resolver, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		repo:      repo,
		directory: directory,
		resolver:  resolver,
		logger:    logger.Named("matching"),
		now:       time.Now,
	}
}

func (s *service) RecordAction(ctx context.Context, matchID, userID string, action Action) (*ActionResult, error) {
	return s.resolver.RecordAction(ctx, matchID, userID, action)
}

// MarkViewed moves the owner's pending record to viewed
func (s *service) MarkViewed(ctx context.Context, matchID, userID string) (*MatchRecord, error) {
	if matchID == "" {
		return nil, apperr.InvalidArgument("matchId is required")
	}

	rec, err := s.repo.Mutate(ctx, matchID, func(m, _ *MatchRecord) (bool, error) {
		if m.UserID != userID {
			return false, errNotParticipant
		}
		if m.Status != StatusPending {
			return false, nil
		}
		m.Status = StatusViewed
		return true, nil
	})
	switch {
	case errors.Is(err, ErrMatchNotFound):
		return nil, apperr.NotFound("match not found")
	case errors.Is(err, errNotParticipant):
		return nil, apperr.PermissionDenied("only the match owner can view it")
	case err != nil:
		return nil, apperr.Internal("failed to mark match viewed", err)
	}
	return rec, nil
}

// WeeklyMatches lists the caller's records for the current cycle by score
func (s *service) WeeklyMatches(ctx context.Context, userID string) ([]*MatchView, error) {
	records, err := s.repo.ListByUser(ctx, userID, CycleOf(s.now()))
	if err != nil {
		return nil, apperr.Internal("failed to list matches", err)
	}

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.MatchedUserID)
	}
	users, err := s.directory.GetUsers(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("failed to load matched users", err)
	}

	views := make([]*MatchView, 0, len(records))
	for _, rec := range records {
		views = append(views, &MatchView{MatchRecord: rec, MatchedUser: users[rec.MatchedUserID]})
	}
	sortViews(views)
	return views, nil
}

func sortViews(views []*MatchView) {
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].CompatibilityScore != views[j].CompatibilityScore {
			return views[i].CompatibilityScore > views[j].CompatibilityScore
		}
		return views[i].MatchedUserID < views[j].MatchedUserID
	})
}

// PreviewCandidates ranks candidates with the quick score, honoring the
// optional cities filter, capped at the caller's weekly quota
func (s *service) PreviewCandidates(ctx context.Context, userID string) ([]*CandidatePreview, error) {
	user, err := s.directory.GetUser(ctx, userID)
	if errors.Is(err, profile.ErrUserNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load user", err)
	}

	prefs, err := s.directory.GetPreferences(ctx, userID)
	if errors.Is(err, profile.ErrPreferencesNotFound) {
		return nil, apperr.NotFound("preferences not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load preferences", err)
	}

	query := profile.CandidateQuery{Cities: prefs.Cities, Limit: previewScanLimit}
	if prefs.LookingFor != profile.LookingForBoth && prefs.LookingFor != "" {
		query.Gender = profile.Gender(prefs.LookingFor)
	}
	query.MinAge, query.MaxAge = prefs.Bounds()

	pool, err := s.directory.QueryCandidates(ctx, query)
	if err != nil {
		return nil, apperr.Internal("failed to query candidates", err)
	}

	partners, err := s.repo.PartnersInCycle(ctx, userID, CycleOf(s.now()))
	if err != nil {
		return nil, apperr.Internal("failed to load existing matches", err)
	}

	ranked := make([]*CandidatePreview, 0, len(pool))
	for _, cand := range pool {
		if cand.ID == userID {
			continue
		}
		if _, paired := partners[cand.ID]; paired {
			continue
		}
		if !prefs.Accepts(cand) || !prefs.AcceptsCity(cand.City) {
			continue
		}
		score := QuickScore(user, cand)
		if score < MinCompatibilityScore {
			continue
		}
		ranked = append(ranked, &CandidatePreview{User: cand, Score: score})
	}
	sortRanked(ranked)

	if quota := user.WeeklyQuota(); len(ranked) > quota {
		ranked = ranked[:quota]
	}
	return ranked, nil
}

// Compatibility returns the full score between two users
func (s *service) Compatibility(ctx context.Context, userID, otherUserID string) (int, error) {
	if otherUserID == "" {
		return 0, apperr.InvalidArgument("userId is required")
	}

	users, err := s.directory.GetUsers(ctx, []string{userID, otherUserID})
	if err != nil {
		return 0, apperr.Internal("failed to load users", err)
	}
	a, okA := users[userID]
	b, okB := users[otherUserID]
	if !okA || !okB {
		return 0, apperr.NotFound("user not found")
	}

	answers, err := s.directory.GetQuestionnaires(ctx, []string{userID, otherUserID})
	if err != nil {
		return 0, apperr.Internal("failed to load questionnaires", err)
	}
	return FullScore(a, b, answers[userID], answers[otherUserID]), nil
}
