// internal/rooms/lifecycle.go
// Decisions and the time-driven room transitions

package rooms

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sonuprasad23/spark/internal/common/apperr"
	"github.com/sonuprasad23/spark/internal/profile"
)

const (
	triggerDecision = "decision"
	triggerExpiry   = "expiry"
)

// Decide records a connect, pass or extend decision. Connect and pass resolve
// the room once both participants decided; replaying a decision returns the
// current outcome without notifying again.
func (s *service) Decide(ctx context.Context, roomID, userID string, decision Decision) (*DecisionResult, error) {
	if roomID == "" {
		return nil, apperr.InvalidArgument("roomId is required")
	}
	if !decision.Valid() {
		return nil, apperr.InvalidArgument("decision must be connect, pass or extend")
	}
	if userID == "" {
		return nil, apperr.Unauthenticated("caller identity is required")
	}
	if decision == DecisionExtend {
		return s.extend(ctx, roomID, userID)
	}

	var resolved Status
	room, err := s.repo.Mutate(ctx, roomID, func(room *Room) (bool, error) {
		var changed bool
		var err error
		resolved, changed, err = applyDecision(room, userID, decision)
		return changed, err
	})
	if err != nil {
		return nil, translate(err, "failed to record decision")
	}

	if resolved != "" {
		recordTransition(resolved, triggerDecision)
		s.logger.Info("room resolved",
			zap.String("room_id", room.ID), zap.String("status", string(resolved)))
		if resolved == StatusConnected {
			s.notifier.RoomConnected(ctx, room.ID, room.Participants, false)
		}
	}
	return resultOf(room, userID), nil
}

// applyDecision is the transactional body of Decide. It returns the status the
// room moved to, if this call resolved it.
func applyDecision(room *Room, userID string, decision Decision) (Status, bool, error) {
	if !room.IsParticipant(userID) {
		return "", false, errNotParticipant
	}
	if prev := room.Decisions[userID]; prev != "" {
		if prev != decision {
			return "", false, errDecisionChanged
		}
		return "", false, nil
	}
	if room.Status != StatusActive {
		return "", false, errRoomClosed
	}

	if room.Decisions == nil {
		room.Decisions = map[string]Decision{}
	}
	room.Decisions[userID] = decision
	if outcome, ok := room.outcome(); ok {
		room.Status = outcome
		return outcome, true, nil
	}
	return "", true, nil
}

func (s *service) extend(ctx context.Context, roomID, userID string) (*DecisionResult, error) {
	premium := false
	user, err := s.directory.GetUser(ctx, userID)
	switch {
	case err == nil:
		premium = user.IsPremium
	case !errors.Is(err, profile.ErrUserNotFound):
		return nil, apperr.Internal("failed to load user", err)
	}

	room, err := s.repo.Mutate(ctx, roomID, func(room *Room) (bool, error) {
		if !room.IsParticipant(userID) {
			return false, errNotParticipant
		}
		if room.Status != StatusActive {
			return false, errRoomClosed
		}
		if !premium {
			return false, errPremiumRequired
		}
		if room.ExtensionsUsed >= MaxExtensions {
			return false, errAlreadyExtended
		}
		room.ExpiresAt = room.ExpiresAt.Add(ExtensionLength)
		room.DayNumber -= int(ExtensionLength / day)
		if room.DayNumber < 1 {
			room.DayNumber = 1
		}
		room.ExtensionsUsed++
		return true, nil
	})
	if err != nil {
		return nil, translate(err, "failed to extend room")
	}

	roomExtensions.Inc()
	s.logger.Info("room extended",
		zap.String("room_id", room.ID), zap.Time("expires_at", room.ExpiresAt))

	result := resultOf(room, userID)
	result.Extended = true
	return result, nil
}

func resultOf(room *Room, userID string) *DecisionResult {
	mine := room.Decisions[userID]
	theirs := room.Decisions[room.Other(userID)]
	return &DecisionResult{
		RoomID:        room.ID,
		Status:        room.Status,
		MutualMatch:   room.Status == StatusConnected,
		AwaitingOther: room.Status == StatusActive && mine != "" && theirs == "",
		DayNumber:     room.DayNumber,
		ExpiresAt:     room.ExpiresAt,
	}
}

// AdvanceDays moves every active room to its current day and sends the
// decision reminders on day 6 and day 7
func (s *service) AdvanceDays(ctx context.Context) (*DaySummary, error) {
	now := s.now()
	rooms, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list active rooms", err)
	}

	summary := &DaySummary{Scanned: len(rooms)}
	for _, r := range rooms {
		if err := ctx.Err(); err != nil {
			return summary, apperr.Internal("day advancement interrupted", err)
		}

		var newDay int
		room, err := s.repo.Mutate(ctx, r.ID, func(room *Room) (bool, error) {
			newDay = 0
			if room.Status != StatusActive {
				return false, nil
			}
			d := room.CurrentDay(now)
			if d == room.DayNumber {
				return false, nil
			}
			room.DayNumber = d
			newDay = d
			return true, nil
		})
		if err != nil {
			summary.Failed++
			recordSweepItem("advance_days", "failed")
			s.logger.Warn("failed to advance room day", zap.String("room_id", r.ID), zap.Error(err))
			continue
		}
		if newDay == 0 {
			continue
		}

		summary.Updated++
		recordSweepItem("advance_days", "updated")
		if newDay >= ReminderDay {
			summary.Reminders += s.remind(ctx, room, newDay)
		}
	}

	s.logger.Info("room day advancement finished",
		zap.Int("scanned", summary.Scanned),
		zap.Int("updated", summary.Updated),
		zap.Int("reminders", summary.Reminders),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// remind sends each participant a reminder naming the other one
func (s *service) remind(ctx context.Context, room *Room, dayNumber int) int {
	users, err := s.directory.GetUsers(ctx, room.Participants)
	if err != nil {
		s.logger.Warn("failed to load participant names", zap.String("room_id", room.ID), zap.Error(err))
		users = nil
	}

	sent := 0
	for _, p := range room.Participants {
		s.notifier.DecisionReminder(ctx, room.ID, p, peerOf(room.Other(p), users).Name, dayNumber)
		sent++
	}
	return sent
}

// ExpireRooms closes active rooms past expiresAt. Rooms where both
// participants decided resolve as they would in Decide; the rest expire.
func (s *service) ExpireRooms(ctx context.Context) (*ExpirySummary, error) {
	now := s.now()
	rooms, err := s.repo.ListExpiring(ctx, now)
	if err != nil {
		return nil, apperr.Internal("failed to list expiring rooms", err)
	}

	summary := &ExpirySummary{Scanned: len(rooms)}
	for _, r := range rooms {
		if err := ctx.Err(); err != nil {
			return summary, apperr.Internal("room expiry interrupted", err)
		}

		var outcome Status
		room, err := s.repo.Mutate(ctx, r.ID, func(room *Room) (bool, error) {
			outcome = ""
			if room.Status != StatusActive || room.ExpiresAt.After(now) {
				return false, nil
			}
			if resolved, ok := room.outcome(); ok {
				room.Status = resolved
			} else {
				room.Status = StatusExpired
			}
			outcome = room.Status
			return true, nil
		})
		if err != nil {
			summary.Failed++
			recordSweepItem("expire_rooms", "failed")
			s.logger.Warn("failed to expire room", zap.String("room_id", r.ID), zap.Error(err))
			continue
		}
		if outcome == "" {
			continue
		}

		recordTransition(outcome, triggerExpiry)
		recordSweepItem("expire_rooms", string(outcome))
		switch outcome {
		case StatusConnected:
			summary.Connected++
			s.notifier.RoomConnected(ctx, room.ID, room.Participants, true)
		case StatusPassed:
			summary.Passed++
		case StatusExpired:
			summary.Expired++
			s.notifier.RoomExpired(ctx, room.ID, room.Participants)
		}
	}

	s.logger.Info("room expiry sweep finished",
		zap.Int("scanned", summary.Scanned),
		zap.Int("expired", summary.Expired),
		zap.Int("connected", summary.Connected),
		zap.Int("passed", summary.Passed),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// ArchiveRooms moves finished rooms to cold storage 30 days after they
// expired, one bounded batch at a time. Archived rooms no longer match the
// query, so an interrupted run resumes where it stopped.
func (s *service) ArchiveRooms(ctx context.Context) (*ArchiveSummary, error) {
	cutoff := s.now().Add(-ArchiveAfter)
	summary := &ArchiveSummary{}

	for {
		if err := ctx.Err(); err != nil {
			return summary, apperr.Internal("archive sweep interrupted", err)
		}

		page, err := s.repo.ListArchivable(ctx, cutoff, ArchiveBatchSize)
		if err != nil {
			return summary, apperr.Internal("failed to list archivable rooms", err)
		}
		if len(page) == 0 {
			break
		}
		if err := s.archive(ctx, page); err != nil {
			return summary, apperr.Internal("failed to archive rooms", err)
		}

		summary.Archived += len(page)
		summary.Batches++
		roomsArchived.Add(float64(len(page)))
		s.logger.Debug("archived room batch", zap.Int("rooms", len(page)))

		if len(page) < ArchiveBatchSize {
			break
		}
	}

	s.logger.Info("room archive sweep finished",
		zap.Int("archived", summary.Archived), zap.Int("batches", summary.Batches))
	return summary, nil
}

func (s *service) archive(ctx context.Context, rooms []*Room) error {
	if s.coldStore == nil {
		return s.repo.MoveToArchive(ctx, rooms)
	}
	if err := s.coldStore.Archive(ctx, rooms); err != nil {
		return err
	}
	ids := make([]string, 0, len(rooms))
	for _, room := range rooms {
		ids = append(ids, room.ID)
	}
	return s.repo.Delete(ctx, ids)
}
