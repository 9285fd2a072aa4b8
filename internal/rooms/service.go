// internal/rooms/service.go

package rooms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sonuprasad23/spark/internal/common/apperr"
	"github.com/sonuprasad23/spark/internal/common/storage"
	"github.com/sonuprasad23/spark/internal/notification"
	"github.com/sonuprasad23/spark/internal/profile"
)

var (
	errNotParticipant  = errors.New("not a participant")
	errRoomClosed      = errors.New("room is not active")
	errPremiumRequired = errors.New("premium required")
	errAlreadyExtended = errors.New("already extended")
	errDecisionChanged = errors.New("decision already recorded")
)

// lockedFeature carries the user-facing reason a message type is not yet available
type lockedFeature struct {
	message string
}

func (e *lockedFeature) Error() string { return e.message }

// Service is the room state machine
type Service interface {
	CreateRoom(ctx context.Context, matchID, userA, userB string) (*Room, error)
	// CreateRoomForMatch opens the room keyed by pairKey for the mutual match
	// matchID and returns its id. Both directions of a pairing share pairKey.
	CreateRoomForMatch(ctx context.Context, pairKey, matchID, userA, userB string) (string, error)
	GetRoom(ctx context.Context, roomID, userID string) (*Room, error)
	ActiveRooms(ctx context.Context, userID string) ([]*RoomView, error)

	SendMessage(ctx context.Context, userID string, msg OutgoingMessage) (*Message, error)
	ListMessages(ctx context.Context, roomID, userID string, limit int, before time.Time) ([]*Message, error)
	MarkRead(ctx context.Context, roomID, userID string) (int, error)
	MarkDelivered(ctx context.Context, roomID, userID string) (int, error)
	RequestMediaUpload(ctx context.Context, roomID, userID string, msgType MessageType, contentType string) (*storage.Upload, error)

	Decide(ctx context.Context, roomID, userID string, decision Decision) (*DecisionResult, error)

	AdvanceDays(ctx context.Context) (*DaySummary, error)
	ExpireRooms(ctx context.Context) (*ExpirySummary, error)
	ArchiveRooms(ctx context.Context) (*ArchiveSummary, error)
}

type Option func(*service)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithColdStore archives rooms to store instead of the Firestore archive collection
func WithColdStore(store ColdStore) Option {
	return func(s *service) { s.coldStore = store }
}

// WithPresigner enables media uploads
func WithPresigner(p storage.Presigner) Option {
	return func(s *service) { s.presigner = p }
}

type service struct {
	repo      Repository
	directory profile.Directory
	notifier  *notification.Dispatcher
	presigner storage.Presigner
	coldStore ColdStore
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(repo Repository, directory profile.Directory, notifier *notification.Dispatcher, logger *zap.Logger, opts ...Option) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &service{
		repo:      repo,
		directory: directory,
		notifier:  notifier,
		logger:    logger.Named("rooms"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRoom opens the room for matchID. A second call returns the existing
// room; a room that was already archived is never opened again.
func (s *service) CreateRoom(ctx context.Context, matchID, userA, userB string) (*Room, error) {
	return s.openRoom(ctx, matchID, matchID, userA, userB)
}

func (s *service) CreateRoomForMatch(ctx context.Context, pairKey, matchID, userA, userB string) (string, error) {
	if pairKey == "" {
		return "", apperr.InvalidArgument("pair key is required")
	}
	room, err := s.openRoom(ctx, pairKey, matchID, userA, userB)
	if err != nil {
		return "", err
	}
	return room.ID, nil
}

func (s *service) openRoom(ctx context.Context, key, matchID, userA, userB string) (*Room, error) {
	if matchID == "" || userA == "" || userB == "" {
		return nil, apperr.InvalidArgument("matchId and both participants are required")
	}
	if userA == userB {
		return nil, apperr.InvalidArgument("a room needs two different participants")
	}

	room := newRoom(matchID, userA, userB, s.now())
	room.ID = RoomID(key)

	if s.coldStore != nil {
		archived, err := s.coldStore.Contains(ctx, room.ID)
		if err != nil {
			return nil, apperr.Internal("failed to check room archive", err)
		}
		if archived {
			return nil, apperr.FailedPrecondition("the room for this match was archived")
		}
	}

	created, err := s.repo.CreateIfAbsent(ctx, room)
	if errors.Is(err, ErrRoomArchived) {
		return nil, apperr.FailedPrecondition("the room for this match was archived")
	}
	if err != nil {
		return nil, apperr.Internal("failed to create room", err)
	}
	if !created {
		existing, err := s.repo.Get(ctx, room.ID)
		if err != nil {
			return nil, apperr.Internal("failed to load existing room", err)
		}
		return existing, nil
	}

	roomsCreated.Inc()
	s.logger.Info("room created",
		zap.String("room_id", room.ID), zap.String("match_id", matchID))
	return room, nil
}

// participantRoom loads a room and checks userID belongs to it
func (s *service) participantRoom(ctx context.Context, roomID, userID string) (*Room, error) {
	if roomID == "" {
		return nil, apperr.InvalidArgument("roomId is required")
	}
	if userID == "" {
		return nil, apperr.Unauthenticated("caller identity is required")
	}
	room, err := s.repo.Get(ctx, roomID)
	if errors.Is(err, ErrRoomNotFound) {
		return nil, apperr.NotFound("room not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load room", err)
	}
	if !room.IsParticipant(userID) {
		return nil, apperr.PermissionDenied("not a participant in this room")
	}
	return room, nil
}

func (s *service) GetRoom(ctx context.Context, roomID, userID string) (*Room, error) {
	return s.participantRoom(ctx, roomID, userID)
}

// ActiveRooms lists the caller's open rooms with the peer, the latest message
// and the unread count
func (s *service) ActiveRooms(ctx context.Context, userID string) ([]*RoomView, error) {
	rooms, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to list rooms", err)
	}

	peers := make([]string, 0, len(rooms))
	for _, room := range rooms {
		peers = append(peers, room.Other(userID))
	}
	users, err := s.directory.GetUsers(ctx, peers)
	if err != nil {
		return nil, apperr.Internal("failed to load room peers", err)
	}

	views := make([]*RoomView, 0, len(rooms))
	for _, room := range rooms {
		unread, err := s.repo.CountUnread(ctx, room.ID, userID)
		if err != nil {
			return nil, apperr.Internal("failed to count unread messages", err)
		}
		view := &RoomView{
			Room:        room,
			OtherUser:   peerOf(room.Other(userID), users),
			UnreadCount: unread,
		}
		if room.MessageCount > 0 {
			latest, err := s.repo.ListMessages(ctx, room.ID, 1, time.Time{})
			if err != nil {
				return nil, apperr.Internal("failed to load last message", err)
			}
			if len(latest) > 0 {
				view.LastMessage = latest[0]
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// SendMessage stores a message after participant, status and day checks,
// then pushes it to the peer
func (s *service) SendMessage(ctx context.Context, userID string, out OutgoingMessage) (*Message, error) {
	if out.Type == "" {
		out.Type = MessageText
	}
	if out.RoomID == "" || (strings.TrimSpace(out.Text) == "" && out.MediaURL == "") {
		return nil, apperr.InvalidArgument("roomId and text or mediaUrl are required")
	}
	if !out.Type.Valid() {
		return nil, apperr.InvalidArgument("type must be text, voice or image")
	}
	if out.Type != MessageText && out.MediaURL == "" {
		return nil, apperr.InvalidArgument("mediaUrl is required for voice and image messages")
	}
	if userID == "" {
		return nil, apperr.Unauthenticated("caller identity is required")
	}

	now := s.now()
	var peer string
	msg, err := s.repo.AppendMessage(ctx, out.RoomID, func(room *Room) (*Message, error) {
		if !room.IsParticipant(userID) {
			return nil, errNotParticipant
		}
		if !room.Open() {
			return nil, errRoomClosed
		}
		if reason := room.unlockMessage(out.Type, now); reason != "" {
			return nil, &lockedFeature{message: reason}
		}
		peer = room.Other(userID)
		return &Message{
			ID:          uuid.New().String(),
			RoomID:      room.ID,
			SenderID:    userID,
			Text:        out.Text,
			Type:        out.Type,
			MediaURL:    out.MediaURL,
			DurationSec: out.DurationSec,
			Status:      MessageSent,
			CreatedAt:   now,
		}, nil
	})
	if err != nil {
		return nil, translate(err, "failed to send message")
	}
	messagesSent.WithLabelValues(string(msg.Type)).Inc()

	s.notifier.Chat(ctx, peer, msg.RoomID, s.displayName(ctx, userID), msg.Text, string(msg.Type))
	return msg, nil
}

// displayName is best-effort; a lookup failure falls back to the template default
func (s *service) displayName(ctx context.Context, userID string) string {
	u, err := s.directory.GetUser(ctx, userID)
	if err != nil {
		return ""
	}
	return u.Name
}

// ListMessages returns one page of history in chronological order. before
// pages backwards; a zero value starts from the newest message.
func (s *service) ListMessages(ctx context.Context, roomID, userID string, limit int, before time.Time) ([]*Message, error) {
	if _, err := s.participantRoom(ctx, roomID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	if limit > MaxMessageLimit {
		limit = MaxMessageLimit
	}

	messages, err := s.repo.ListMessages(ctx, roomID, limit, before)
	if err != nil {
		return nil, apperr.Internal("failed to list messages", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *service) MarkRead(ctx context.Context, roomID, userID string) (int, error) {
	return s.advance(ctx, roomID, userID, MessageRead)
}

func (s *service) MarkDelivered(ctx context.Context, roomID, userID string) (int, error) {
	return s.advance(ctx, roomID, userID, MessageDelivered)
}

func (s *service) advance(ctx context.Context, roomID, userID string, status MessageStatus) (int, error) {
	if _, err := s.participantRoom(ctx, roomID, userID); err != nil {
		return 0, err
	}
	n, err := s.repo.AdvanceMessages(ctx, roomID, userID, status)
	if err != nil {
		return n, apperr.Internal("failed to update message status", err)
	}
	return n, nil
}

// RequestMediaUpload issues a presigned upload for a voice note or image,
// applying the same day gating as SendMessage
func (s *service) RequestMediaUpload(ctx context.Context, roomID, userID string, msgType MessageType, contentType string) (*storage.Upload, error) {
	if s.presigner == nil {
		return nil, apperr.FailedPrecondition("media uploads are not enabled")
	}
	var family string
	switch msgType {
	case MessageVoice:
		family = "audio/"
	case MessageImage:
		family = "image/"
	default:
		return nil, apperr.InvalidArgument("type must be voice or image")
	}
	if !strings.HasPrefix(contentType, family) || !storage.AllowedContentType(contentType) {
		return nil, apperr.InvalidArgument(fmt.Sprintf("content type %q is not allowed for %s", contentType, msgType))
	}

	room, err := s.participantRoom(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !room.Open() {
		return nil, apperr.FailedPrecondition("room is not active")
	}
	if reason := room.unlockMessage(msgType, s.now()); reason != "" {
		return nil, apperr.FailedPrecondition(reason)
	}

	upload, err := s.presigner.PresignUpload(ctx, fmt.Sprintf("rooms/%s/%s", room.ID, msgType), contentType)
	if err != nil {
		return nil, apperr.Internal("failed to presign upload", err)
	}
	return upload, nil
}

func translate(err error, msg string) error {
	var locked *lockedFeature
	switch {
	case errors.As(err, &locked):
		return apperr.FailedPrecondition(locked.message)
	case errors.Is(err, ErrRoomNotFound):
		return apperr.NotFound("room not found")
	case errors.Is(err, errNotParticipant):
		return apperr.PermissionDenied("not a participant in this room")
	case errors.Is(err, errRoomClosed):
		return apperr.FailedPrecondition("room is not active")
	case errors.Is(err, errPremiumRequired):
		return apperr.FailedPrecondition("premium required to extend")
	case errors.Is(err, errAlreadyExtended):
		return apperr.FailedPrecondition("room was already extended")
	case errors.Is(err, errDecisionChanged):
		return apperr.FailedPrecondition("a different decision was already recorded")
	default:
		return apperr.Internal(msg, err)
	}
}
