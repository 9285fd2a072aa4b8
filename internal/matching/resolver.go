// internal/matching/resolver.go

package matching

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sonuprasad23/spark/internal/common/apperr"
)

var (
	errNotParticipant   = errors.New("not a participant")
	errMatchExpired     = errors.New("match expired")
	errDecisionRecorded = errors.New("decision already recorded")
)

// RoomCreator opens the chat room for a mutual match. It must be
// create-if-absent on pairKey, return the room id either way, and refuse
// to reopen a room that was archived.
type RoomCreator interface {
	CreateRoomForMatch(ctx context.Context, pairKey, matchID, userA, userB string) (string, error)
}

// Resolver records connect/pass actions on weekly matches
type Resolver struct {
	repo   Repository
	rooms  RoomCreator
	logger *zap.Logger
	now    func() time.Time
}

func NewResolver(repo Repository, rooms RoomCreator, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{repo: repo, rooms: rooms, logger: logger.Named("resolver"), now: time.Now}
}

// WithClock overrides time.Now
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// RecordAction stores actingUserID's action on matchID. The action is
// mirrored onto the reverse-direction record when one exists, so a pair
// converges on one outcome whichever record each side acts on. Repeating the
// same action is a no-op; changing it is rejected.
func (r *Resolver) RecordAction(ctx context.Context, matchID, actingUserID string, action Action) (*ActionResult, error) {
	if matchID == "" {
		return nil, apperr.InvalidArgument("matchId is required")
	}
	if !action.Valid() {
		return nil, apperr.InvalidArgument("action must be connect or pass")
	}
	if actingUserID == "" {
		return nil, apperr.Unauthenticated("caller identity is required")
	}

	now := r.now()
	becameMutual := false
	rec, err := r.repo.Mutate(ctx, matchID, func(rec, mirror *MatchRecord) (bool, error) {
		wasMutual := rec.IsMutualMatch
		changed, err := applyAction(rec, mirror, actingUserID, action, now)
		becameMutual = changed && !wasMutual && rec.IsMutualMatch
		return changed, err
	})
	switch {
	case errors.Is(err, ErrMatchNotFound):
		return nil, apperr.NotFound("match not found")
	case errors.Is(err, errNotParticipant):
		return nil, apperr.PermissionDenied("not a participant in this match")
	case errors.Is(err, errMatchExpired):
		return nil, apperr.FailedPrecondition("match has expired")
	case errors.Is(err, errDecisionRecorded):
		return nil, apperr.FailedPrecondition("a different decision was already recorded")
	case err != nil:
		return nil, apperr.Internal("failed to record match action", err)
	}

	recordMatchAction(action, rec.Status)
	result := &ActionResult{
		MatchID:       rec.ID,
		Status:        rec.Status,
		IsMutualMatch: rec.IsMutualMatch,
		RoomID:        rec.RoomID,
	}
	// Replays of a mutual match open the room only when no earlier call
	// recorded it, which covers a crash between commit and room creation.
	if !rec.IsMutualMatch || (!becameMutual && rec.RoomID != "") {
		return result, nil
	}

	pairKey := PairMatchID(rec.UserID, rec.MatchedUserID, rec.Cycle())
	roomID, err := r.rooms.CreateRoomForMatch(ctx, pairKey, rec.ID, rec.UserID, rec.MatchedUserID)
	if err != nil {
		r.logger.Error("failed to open room for mutual match", zap.String("match_id", rec.ID), zap.Error(err))
		if apperr.Is(err, apperr.CodeFailedPrecondition) {
			return nil, err
		}
		return nil, apperr.Internal("match is mutual but the room could not be opened", err)
	}
	result.RoomID = roomID
	r.linkRoom(ctx, rec.ID, roomID)
	return result, nil
}

// linkRoom stores roomID on both directions of the match. A failure only
// means a later replay asks the room creator again.
func (r *Resolver) linkRoom(ctx context.Context, matchID, roomID string) {
	_, err := r.repo.Mutate(ctx, matchID, func(rec, mirror *MatchRecord) (bool, error) {
		changed := false
		for _, m := range []*MatchRecord{rec, mirror} {
			if m != nil && m.IsMutualMatch && m.RoomID != roomID {
				m.RoomID = roomID
				changed = true
			}
		}
		return changed, nil
	})
	if err != nil {
		r.logger.Warn("failed to link room to match",
			zap.String("match_id", matchID), zap.String("room_id", roomID), zap.Error(err))
	}
}

// applyAction is the transactional body of RecordAction
func applyAction(rec, mirror *MatchRecord, actor string, action Action, now time.Time) (bool, error) {
	if !rec.IsParticipant(actor) {
		return false, errNotParticipant
	}
	other := rec.Other(actor)

	previous := rec.decisionOf(actor)
	if previous == "" && mirror != nil {
		previous = mirror.decisionOf(actor)
	}
	if previous != "" {
		if previous != action {
			return false, errDecisionRecorded
		}
		return false, nil
	}

	if rec.Status == StatusExpired || (rec.Open() && !now.Before(rec.ExpiresAt)) {
		return false, errMatchExpired
	}

	peer := rec.decisionOf(other)
	if peer == "" && mirror != nil {
		peer = mirror.decisionOf(other)
	}

	for _, m := range []*MatchRecord{rec, mirror} {
		if m == nil || (m != rec && m.Status == StatusExpired) {
			continue
		}
		m.setDecision(actor, action)
		if peer != "" {
			m.setDecision(other, peer)
		}
		m.settle(now)
	}
	return true, nil
}
