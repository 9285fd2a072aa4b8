package rooms

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonuprasad23/spark/internal/common/apperr"
	"github.com/sonuprasad23/spark/internal/notification"
	"github.com/sonuprasad23/spark/internal/profile"
)

func TestCreateRoomOncePerMatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	room, err := f.svc.CreateRoom(ctx, "match-1", "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, RoomID("match-1"), room.ID)
	assert.Equal(t, 1, room.DayNumber)
	assert.Equal(t, StatusActive, room.Status)
	assert.Equal(t, t0.Add(RoomLifetime), room.ExpiresAt)
	assert.Empty(t, room.Decisions)
	assert.Equal(t, 0, room.ExtensionsUsed)

	f.clock.Set(t0.Add(time.Hour))
	again, err := f.svc.CreateRoom(ctx, "match-1", "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, room.ID, again.ID)
	assert.Equal(t, t0, again.StartedAt)
	assert.Equal(t, 1, f.repo.Count())

	id, err := f.svc.CreateRoomForMatch(ctx, "match-1", "match-1-reverse", "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, room.ID, id)
	assert.Equal(t, 1, f.repo.Count())
	assert.Equal(t, "match-1", f.room(id).MatchID)
}

func TestCreateRoomForMatchKeysByPair(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	id, err := f.svc.CreateRoomForMatch(ctx, "pair-ab", "match-ba", "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, RoomID("pair-ab"), id)
	assert.Equal(t, "match-ba", f.room(id).MatchID)

	again, err := f.svc.CreateRoomForMatch(ctx, "pair-ab", "match-ab", "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, "match-ba", f.room(id).MatchID)

	_, err = f.svc.CreateRoomForMatch(ctx, "", "match-ab", "alice", "bob")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))
}

func TestCreateRoomRefusesArchivedRoom(t *testing.T) {
	f := newFixture()
	room := f.openRoom()
	ctx := context.Background()

	f.clock.Set(room.ExpiresAt.Add(time.Minute))
	_, err := f.svc.ExpireRooms(ctx)
	require.NoError(t, err)
	f.clock.Set(room.ExpiresAt.Add(ArchiveAfter + day))
	summary, err := f.svc.ArchiveRooms(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Archived)

	_, err = f.svc.CreateRoom(ctx, "match-1", "alice", "bob")
	assert.True(t, apperr.Is(err, apperr.CodeFailedPrecondition))
	assert.Equal(t, 0, f.repo.Count())

	_, err = f.svc.CreateRoomForMatch(ctx, "match-1", "match-1", "alice", "bob")
	assert.True(t, apperr.Is(err, apperr.CodeFailedPrecondition))
	assert.Equal(t, 0, f.repo.Count())
}

func TestCreateRoomValidation(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateRoom(context.Background(), "", "alice", "bob")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	_, err = f.svc.CreateRoom(context.Background(), "match-1", "alice", "alice")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))
}

func TestSendMessageDayGating(t *testing.T) {
	f := newFixture()
	room := f.openRoom()
	ctx := context.Background()
	voice := OutgoingMessage{RoomID: room.ID, Type: MessageVoice, MediaURL: "https://cdn.example.com/v.m4a", DurationSec: 12}
	image := OutgoingMessage{RoomID: room.ID, Type: MessageImage, MediaURL: "https://cdn.example.com/p.jpg"}

	f.clock.atDay(2)
	_, err := f.svc.SendMessage(ctx, "alice", voice)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeFailedPrecondition))
	assert.Equal(t, "Voice notes unlock on Day 3", apperr.MessageOf(err))

	f.clock.atDay(3)
	msg, err := f.svc.SendMessage(ctx, "alice", voice)
	require.NoError(t, err)
	assert.Equal(t, MessageVoice, msg.Type)
	assert.Equal(t, 12, msg.DurationSec)

	f.clock.atDay(4)
	_, err = f.svc.SendMessage(ctx, "alice", image)
	assert.Equal(t, "Images unlock on Day 5", apperr.MessageOf(err))

	f.clock.atDay(5)
	_, err = f.svc.SendMessage(ctx, "alice", image)
	require.NoError(t, err)

	assert.Equal(t, 2, f.room(room.ID).MessageCount)
}

func TestSendMessageUnlocksEverythingOnceConnected(t *testing.T) {
	f := newFixture()
	room := f.openRoom()
	room.Status = StatusConnected
	f.repo.Put(room)

	f.clock.atDay(1)
	_, err := f.svc.SendMessage(context.Background(), "bob", OutgoingMessage{
		RoomID: room.ID, Type: MessageImage, MediaURL: "https://cdn.example.com/p.jpg",
	})
	require.NoError(t, err)
}

func TestSendMessageUpdatesRoomAndNotifiesPeer(t *testing.T) {
	f := newFixture()
	room := f.openRoom()

	f.clock.Set(t0.Add(2 * time.Hour))
	msg, err := f.svc.SendMessage(context.Background(), "alice", OutgoingMessage{RoomID: room.ID, Text: "hey there"})
	require.NoError(t, err)
	assert.Equal(t, MessageText, msg.Type)
	assert.Equal(t, MessageSent, msg.Status)
	assert.NotEmpty(t, msg.ID)

	stored := f.room(room.ID)
	assert.Equal(t, 1, stored.MessageCount)
	assert.Equal(t, t0.Add(2*time.Hour), stored.LastMessageAt)

	sent := f.gateway.SentTo("bob")
	require.Len(t, sent, 1)
	assert.Equal(t, "Alice", sent[0].Title)
	assert.Equal(t, "hey there", sent[0].Body)
	assert.Equal(t, string(notification.TypeChat), sent[0].Payload["type"])
	assert.Empty(t, f.gateway.SentTo("alice"))
}

func TestSendMessageSurvivesPushFailure(t *testing.T) {
	f := newFixture()
	room := f.openRoom()
	f.gateway.FailWith(notification.ErrNoDeviceToken)

	_, err := f.svc.SendMessage(context.Background(), "alice", OutgoingMessage{RoomID: room.ID, Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.room(room.ID).MessageCount)
}

func TestSendMessageRejections(t *testing.T) {
	f := newFixture()
	room := f.openRoom()
	closed := finishedRoom(1, StatusExpired, t0)
	f.repo.Put(closed)

	tests := []struct {
		name string
		user string
		msg  OutgoingMessage
		code apperr.Code
	}{
		{"no content", "alice", OutgoingMessage{RoomID: room.ID}, apperr.CodeInvalidArgument},
		{"no room id", "alice", OutgoingMessage{Text: "hi"}, apperr.CodeInvalidArgument},
		{"unknown type", "alice", OutgoingMessage{RoomID: room.ID, Text: "hi", Type: "video"}, apperr.CodeInvalidArgument},
		{"voice without media", "alice", OutgoingMessage{RoomID: room.ID, Text: "hi", Type: MessageVoice}, apperr.CodeInvalidArgument},
		{"anonymous", "", OutgoingMessage{RoomID: room.ID, Text: "hi"}, apperr.CodeUnauthenticated},
		{"stranger", "mallory", OutgoingMessage{RoomID: room.ID, Text: "hi"}, apperr.CodePermissionDenied},
		{"missing room", "alice", OutgoingMessage{RoomID: "nope", Text: "hi"}, apperr.CodeNotFound},
		{"closed room", "alice", OutgoingMessage{RoomID: closed.ID, Text: "hi"}, apperr.CodeFailedPrecondition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SendMessage(context.Background(), tt.user, tt.msg)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperr.CodeOf(err))
		})
	}
	assert.Equal(t, 0, f.room(room.ID).MessageCount)
}

func TestListMessagesPages(t *testing.T) {
	f := newFixture()
	room := f.openRoom()
	ctx := context.Background()

	texts := []string{"one", "two", "three", "four", "five"}
	for i, text := range texts {
		f.clock.Set(t0.Add(time.Duration(i+1) * time.Minute))
		_, err := f.svc.SendMessage(ctx, "alice", OutgoingMessage{RoomID: room.ID, Text: text})
		require.NoError(t, err)
	}

	page, err := f.svc.ListMessages(ctx, room.ID, "bob", 2, time.Time{})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "four", page[0].Text)
	assert.Equal(t, "five", page[1].Text)

	older, err := f.svc.ListMessages(ctx, room.ID, "bob", 2, page[0].CreatedAt)
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.Equal(t, "two", older[0].Text)
	assert.Equal(t, "three", older[1].Text)

	all, err := f.svc.ListMessages(ctx, room.ID, "alice", 0, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	_, err = f.svc.ListMessages(ctx, room.ID, "mallory", 10, time.Time{})
	assert.True(t, apperr.Is(err, apperr.CodePermissionDenied))
}

func TestMarkDeliveredAndReadOnlyMoveForward(t *testing.T) {
	f := newFixture()
	room := f.openRoom()
	ctx := context.Background()

	for _, text := range []string{"a", "b"} {
		_, err := f.svc.SendMessage(ctx, "bob", OutgoingMessage{RoomID: room.ID, Text: text})
		require.NoError(t, err)
	}
	_, err := f.svc.SendMessage(ctx, "alice", OutgoingMessage{RoomID: room.ID, Text: "mine"})
	require.NoError(t, err)

	n, err := f.svc.MarkDelivered(ctx, room.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.svc.MarkRead(ctx, room.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// read messages are never downgraded
	n, err = f.svc.MarkDelivered(ctx, room.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	msgs, err := f.svc.ListMessages(ctx, room.ID, "alice", 10, time.Time{})
	require.NoError(t, err)
	for _, m := range msgs {
		if m.SenderID == "bob" {
			assert.Equal(t, MessageRead, m.Status)
		} else {
			assert.Equal(t, MessageSent, m.Status)
		}
	}

	_, err = f.svc.MarkRead(ctx, room.ID, "mallory")
	assert.True(t, apperr.Is(err, apperr.CodePermissionDenied))
}

func TestActiveRooms(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.dir.PutUser(&profile.UserProfile{ID: "carol", Name: "Carol", IsActive: true, Photos: []string{"https://cdn.example.com/carol.jpg"}})

	quiet, err := f.svc.CreateRoom(ctx, "match-1", "alice", "bob")
	require.NoError(t, err)
	f.clock.Set(t0.Add(time.Minute))
	busy, err := f.svc.CreateRoom(ctx, "match-2", "carol", "alice")
	require.NoError(t, err)
	f.repo.Put(finishedRoom(1, StatusPassed, t0))

	f.clock.Set(t0.Add(time.Hour))
	_, err = f.svc.SendMessage(ctx, "alice", OutgoingMessage{RoomID: busy.ID, Text: "hey carol"})
	require.NoError(t, err)
	f.clock.Set(t0.Add(2 * time.Hour))
	_, err = f.svc.SendMessage(ctx, "carol", OutgoingMessage{RoomID: busy.ID, Text: "hi alice"})
	require.NoError(t, err)

	views, err := f.svc.ActiveRooms(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, busy.ID, views[0].ID)
	assert.Equal(t, "Carol", views[0].OtherUser.Name)
	assert.Equal(t, []string{"https://cdn.example.com/carol.jpg"}, views[0].OtherUser.Photos)
	assert.Equal(t, 1, views[0].UnreadCount)
	require.NotNil(t, views[0].LastMessage)
	assert.Equal(t, "hi alice", views[0].LastMessage.Text)
	assert.Equal(t, "carol", views[0].LastMessage.SenderID)
	assert.Equal(t, t0.Add(2*time.Hour), views[0].LastMessageAt)

	assert.Equal(t, quiet.ID, views[1].ID)
	assert.Equal(t, "Bob", views[1].OtherUser.Name)
	assert.Equal(t, 0, views[1].UnreadCount)
	assert.Nil(t, views[1].LastMessage)

	carol, err := f.svc.ActiveRooms(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, carol, 1)
	assert.Equal(t, 1, carol[0].UnreadCount)
	assert.Equal(t, "Alice", carol[0].OtherUser.Name)
}

func TestRequestMediaUpload(t *testing.T) {
	presigner := &fakePresigner{}
	f := newFixture(WithPresigner(presigner))
	room := f.openRoom()
	ctx := context.Background()

	f.clock.atDay(2)
	_, err := f.svc.RequestMediaUpload(ctx, room.ID, "alice", MessageVoice, "audio/mp4")
	assert.Equal(t, "Voice notes unlock on Day 3", apperr.MessageOf(err))

	f.clock.atDay(3)
	upload, err := f.svc.RequestMediaUpload(ctx, room.ID, "alice", MessageVoice, "audio/mp4")
	require.NoError(t, err)
	assert.NotEmpty(t, upload.UploadURL)
	assert.Equal(t, []string{"rooms/" + room.ID + "/voice"}, presigner.prefixes)

	_, err = f.svc.RequestMediaUpload(ctx, room.ID, "alice", MessageVoice, "image/png")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	_, err = f.svc.RequestMediaUpload(ctx, room.ID, "alice", MessageText, "text/plain")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	_, err = f.svc.RequestMediaUpload(ctx, room.ID, "mallory", MessageVoice, "audio/mp4")
	assert.True(t, apperr.Is(err, apperr.CodePermissionDenied))
}

func TestRequestMediaUploadDisabled(t *testing.T) {
	f := newFixture()
	room := f.openRoom()

	_, err := f.svc.RequestMediaUpload(context.Background(), room.ID, "alice", MessageImage, "image/png")
	assert.True(t, apperr.Is(err, apperr.CodeFailedPrecondition))
}
