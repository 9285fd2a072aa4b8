// internal/notification/dispatcher.go

package notification

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Dispatcher delivers best-effort notifications. Delivery failures are logged
// and counted but never returned: state changes are committed before any
// notification is attempted.
type Dispatcher struct {
	gateway Gateway
	logger  *zap.Logger
}

func NewDispatcher(gateway Gateway, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{gateway: gateway, logger: logger.Named("notification")}
}

func (d *Dispatcher) send(ctx context.Context, recipient string, kind Type, msg Rendered, payload map[string]string) {
	if d == nil || d.gateway == nil {
		return
	}
	err := d.gateway.Send(ctx, recipient, msg.Title, msg.Body, payload)
	if err != nil {
		recordFailed(kind)
		if errors.Is(err, ErrNoDeviceToken) {
			d.logger.Debug("skipping notification, no device token",
				zap.String("user_id", recipient), zap.String("type", string(kind)))
			return
		}
		d.logger.Warn("failed to send notification",
			zap.String("user_id", recipient), zap.String("type", string(kind)), zap.Error(err))
		return
	}
	recordSent(kind)
}

// NewMatches tells userID that count matches were created this cycle
func (d *Dispatcher) NewMatches(ctx context.Context, userID string, count int) {
	d.send(ctx, userID, TypeNewMatches, NewMatchesMessage(count),
		Payload(TypeNewMatches, "count", itoa(count)))
}

// Chat notifies the peer of a new message
func (d *Dispatcher) Chat(ctx context.Context, recipient, roomID, senderName, text, messageType string) {
	d.send(ctx, recipient, TypeChat, ChatMessage(senderName, text, messageType),
		Payload(TypeChat, "roomId", roomID))
}

// RoomConnected celebrates with both participants
func (d *Dispatcher) RoomConnected(ctx context.Context, roomID string, participants []string, onExpiry bool) {
	msg := RoomConnectedMessage()
	if onExpiry {
		msg = RoomConnectedOnExpiryMessage()
	}
	for _, p := range participants {
		d.send(ctx, p, TypeRoomConnected, msg, Payload(TypeRoomConnected, "roomId", roomID))
	}
}

// RoomExpired tells both participants the room ended
func (d *Dispatcher) RoomExpired(ctx context.Context, roomID string, participants []string) {
	for _, p := range participants {
		d.send(ctx, p, TypeRoomExpired, RoomExpiredMessage(), Payload(TypeRoomExpired, "roomId", roomID))
	}
}

// DecisionReminder nudges userID about otherName on day 6 and day 7
func (d *Dispatcher) DecisionReminder(ctx context.Context, roomID, userID, otherName string, day int) {
	d.send(ctx, userID, TypeDecisionReminder, DecisionReminderMessage(day, otherName),
		Payload(TypeDecisionReminder, "roomId", roomID, "day", itoa(day)))
}
