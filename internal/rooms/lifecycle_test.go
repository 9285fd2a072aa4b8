package rooms

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonuprasad23/spark/internal/common/apperr"
	"github.com/sonuprasad23/spark/internal/notification"
	"github.com/sonuprasad23/spark/internal/profile"
)

func TestDecideMutualConnect(t *testing.T) {
	f := newFixture()
	room := f.openRoom()
	ctx := context.Background()

	res, err := f.svc.Decide(ctx, room.ID, "alice", DecisionConnect)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, res.Status)
	assert.True(t, res.AwaitingOther)
	assert.False(t, res.MutualMatch)
	assert.Empty(t, f.sentOfType(notification.TypeRoomConnected))

	res, err = f.svc.Decide(ctx, room.ID, "bob", DecisionConnect)
	require.NoError(t, err)
	assert.Equal(t, StatusConnected, res.Status)
	assert.True(t, res.MutualMatch)
	assert.False(t, res.AwaitingOther)

	celebrations := f.sentOfType(notification.TypeRoomConnected)
	require.Len(t, celebrations, 2)
	assert.Equal(t, "You matched! Start chatting 💕", celebrations[0].Title)

	// replays report the outcome without a second celebration
	res, err = f.svc.Decide(ctx, room.ID, "bob", DecisionConnect)
	require.NoError(t, err)
	assert.Equal(t, StatusConnected, res.Status)
	assert.Len(t, f.sentOfType(notification.TypeRoomConnected), 2)

	_, err = f.svc.Decide(ctx, room.ID, "alice", DecisionPass)
	assert.True(t, apperr.Is(err, apperr.CodeFailedPrecondition))
	assert.Equal(t, StatusConnected, f.room(room.ID).Status)
}

func TestDecidePass(t *testing.T) {
	f := newFixture()
	room := f.openRoom()
	ctx := context.Background()

	_, err := f.svc.Decide(ctx, room.ID, "alice", DecisionConnect)
	require.NoError(t, err)
	res, err := f.svc.Decide(ctx, room.ID, "bob", DecisionPass)
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, res.Status)
	assert.False(t, res.MutualMatch)
	assert.Empty(t, f.gateway.Sent())

	_, err = f.svc.SendMessage(ctx, "alice", OutgoingMessage{RoomID: room.ID, Text: "wait"})
	assert.True(t, apperr.Is(err, apperr.CodeFailedPrecondition))
}

func TestDecideConcurrentConnectsResolveOnce(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFixture()
		room := f.openRoom()

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for n, user := range []string{"alice", "bob"} {
			wg.Add(1)
			go func(n int, user string) {
				defer wg.Done()
				_, errs[n] = f.svc.Decide(context.Background(), room.ID, user, DecisionConnect)
			}(n, user)
		}
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		assert.Equal(t, StatusConnected, f.room(room.ID).Status)
		assert.Len(t, f.sentOfType(notification.TypeRoomConnected), 2)
	}
}

func TestDecideRejections(t *testing.T) {
	f := newFixture()
	room := f.openRoom()
	expired := finishedRoom(1, StatusExpired, t0)
	f.repo.Put(expired)

	tests := []struct {
		name     string
		roomID   string
		user     string
		decision Decision
		code     apperr.Code
	}{
		{"unknown decision", room.ID, "alice", "maybe", apperr.CodeInvalidArgument},
		{"no room id", "", "alice", DecisionConnect, apperr.CodeInvalidArgument},
		{"anonymous", room.ID, "", DecisionConnect, apperr.CodeUnauthenticated},
		{"stranger", room.ID, "mallory", DecisionConnect, apperr.CodePermissionDenied},
		{"missing room", "nope", "alice", DecisionConnect, apperr.CodeNotFound},
		{"expired room", expired.ID, "alice", DecisionConnect, apperr.CodeFailedPrecondition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Decide(context.Background(), tt.roomID, tt.user, tt.decision)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperr.CodeOf(err))
		})
	}
}

func TestExtend(t *testing.T) {
	f := newFixture()
	f.dir.PutUser(&profile.UserProfile{ID: "bob", Name: "Bob", IsActive: true, IsPremium: true})
	room := f.openRoom()
	ctx := context.Background()

	f.clock.atDay(5)
	_, err := f.svc.AdvanceDays(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, f.room(room.ID).DayNumber)

	_, err = f.svc.Decide(ctx, room.ID, "alice", DecisionExtend)
	require.Error(t, err)
	assert.Equal(t, "premium required to extend", apperr.MessageOf(err))

	res, err := f.svc.Decide(ctx, room.ID, "bob", DecisionExtend)
	require.NoError(t, err)
	assert.True(t, res.Extended)
	assert.Equal(t, 2, res.DayNumber)
	assert.Equal(t, t0.Add(RoomLifetime+ExtensionLength), res.ExpiresAt)

	stored := f.room(room.ID)
	assert.Equal(t, 1, stored.ExtensionsUsed)
	assert.Empty(t, stored.Decisions)
	assert.Equal(t, StatusActive, stored.Status)

	_, err = f.svc.Decide(ctx, room.ID, "bob", DecisionExtend)
	assert.Equal(t, "room was already extended", apperr.MessageOf(err))

	// the schedule follows the extension
	summary, err := f.svc.AdvanceDays(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 2, f.room(room.ID).CurrentDay(f.clock.Now()))

	_, err = f.svc.SendMessage(ctx, "bob", OutgoingMessage{RoomID: room.ID, Type: MessageImage, MediaURL: "https://cdn.example.com/p.jpg"})
	assert.Equal(t, "Images unlock on Day 5", apperr.MessageOf(err))
}

func TestExtendEarlyClampsToDayOne(t *testing.T) {
	f := newFixture()
	f.dir.PutUser(&profile.UserProfile{ID: "alice", Name: "Alice", IsActive: true, IsPremium: true})
	room := f.openRoom()

	f.clock.atDay(2)
	res, err := f.svc.Decide(context.Background(), room.ID, "alice", DecisionExtend)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DayNumber)
}

func TestAdvanceDaysSendsReminders(t *testing.T) {
	f := newFixture()
	room := f.openRoom()
	ctx := context.Background()

	f.clock.atDay(3)
	summary, err := f.svc.AdvanceDays(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 0, summary.Reminders)
	assert.Equal(t, 3, f.room(room.ID).DayNumber)

	f.clock.atDay(6)
	summary, err = f.svc.AdvanceDays(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Reminders)

	toAlice := f.gateway.SentTo("alice")
	require.Len(t, toAlice, 1)
	assert.Equal(t, "📅 1 day left to decide", toAlice[0].Title)
	assert.Contains(t, toAlice[0].Body, "Bob")
	assert.Equal(t, "6", toAlice[0].Payload["day"])

	summary, err = f.svc.AdvanceDays(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Updated)
	assert.Len(t, f.sentOfType(notification.TypeDecisionReminder), 2)

	f.clock.atDay(7)
	_, err = f.svc.AdvanceDays(ctx)
	require.NoError(t, err)
	toBob := f.gateway.SentTo("bob")
	require.Len(t, toBob, 2)
	assert.Equal(t, "⏰ Decision day!", toBob[1].Title)
	assert.Contains(t, toBob[1].Body, "Alice")

	// the day never runs past the last one
	f.clock.Set(t0.Add(9 * day))
	_, err = f.svc.AdvanceDays(ctx)
	require.NoError(t, err)
	assert.Equal(t, FinalDay, f.room(room.ID).DayNumber)
}

func TestExpireRoomsWithoutMutualDecision(t *testing.T) {
	f := newFixture()
	room := f.openRoom()
	ctx := context.Background()

	_, err := f.svc.Decide(ctx, room.ID, "alice", DecisionConnect)
	require.NoError(t, err)

	f.clock.Set(t0.Add(RoomLifetime - time.Minute))
	summary, err := f.svc.ExpireRooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Scanned)

	f.clock.Set(t0.Add(RoomLifetime))
	summary, err = f.svc.ExpireRooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Expired)
	assert.Equal(t, StatusExpired, f.room(room.ID).Status)

	expired := f.sentOfType(notification.TypeRoomExpired)
	require.Len(t, expired, 2)
	assert.Equal(t, "⏰ Connection room expired", expired[0].Title)
	assert.Empty(t, f.sentOfType(notification.TypeRoomConnected))

	summary, err = f.svc.ExpireRooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Expired)
	assert.Len(t, f.sentOfType(notification.TypeRoomExpired), 2)
}

func TestExpireRoomsResolvesDecidedRooms(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	mutual := newRoom("match-mutual", "alice", "bob", t0)
	mutual.Decisions = map[string]Decision{"alice": DecisionConnect, "bob": DecisionConnect}
	split := newRoom("match-split", "alice", "bob", t0)
	split.Decisions = map[string]Decision{"alice": DecisionConnect, "bob": DecisionPass}
	f.repo.Put(mutual)
	f.repo.Put(split)

	f.clock.Set(t0.Add(RoomLifetime + time.Hour))
	summary, err := f.svc.ExpireRooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Connected)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 0, summary.Expired)

	assert.Equal(t, StatusConnected, f.room(mutual.ID).Status)
	assert.Equal(t, StatusPassed, f.room(split.ID).Status)

	celebrations := f.sentOfType(notification.TypeRoomConnected)
	require.Len(t, celebrations, 2)
	assert.Equal(t, "🎉 It's a match!", celebrations[0].Title)
	assert.Equal(t, mutual.ID, celebrations[0].Payload["roomId"])
	assert.Empty(t, f.sentOfType(notification.TypeRoomExpired))
}

func TestExpireRoomsRacingLastDecision(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFixture()
		room := f.openRoom()
		ctx := context.Background()
		_, err := f.svc.Decide(ctx, room.ID, "alice", DecisionConnect)
		require.NoError(t, err)
		f.clock.Set(t0.Add(RoomLifetime + time.Minute))

		var wg sync.WaitGroup
		var decideErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, decideErr = f.svc.Decide(ctx, room.ID, "bob", DecisionConnect)
		}()
		go func() {
			defer wg.Done()
			_, _ = f.svc.ExpireRooms(ctx)
		}()
		wg.Wait()

		switch f.room(room.ID).Status {
		case StatusConnected:
			assert.NoError(t, decideErr)
			assert.Len(t, f.sentOfType(notification.TypeRoomConnected), 2)
			assert.Empty(t, f.sentOfType(notification.TypeRoomExpired))
		case StatusExpired:
			assert.True(t, apperr.Is(decideErr, apperr.CodeFailedPrecondition))
			assert.Empty(t, f.sentOfType(notification.TypeRoomConnected))
		default:
			t.Fatalf("unexpected status %q", f.room(room.ID).Status)
		}
	}
}

type flakyArchiveRepo struct {
	*MemoryRepository
	calls  int
	failOn int
}

func (r *flakyArchiveRepo) MoveToArchive(ctx context.Context, rooms []*Room) error {
	r.calls++
	if r.calls == r.failOn {
		return errors.New("deadline exceeded")
	}
	return r.MemoryRepository.MoveToArchive(ctx, rooms)
}

func seedArchivable(repo *MemoryRepository, n int) {
	for i := 0; i < n; i++ {
		status := StatusExpired
		if i%3 == 0 {
			status = StatusPassed
		}
		repo.Put(finishedRoom(i, status, t0))
	}
}

func TestArchiveRoomsInBatches(t *testing.T) {
	f := newFixture()
	seedArchivable(f.repo, 450)

	recent := finishedRoom(900, StatusExpired, t0.Add(20*day))
	connected := finishedRoom(901, StatusConnected, t0)
	f.repo.Put(recent)
	f.repo.Put(connected)

	f.clock.Set(t0.Add(ArchiveAfter + day))
	summary, err := f.svc.ArchiveRooms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 450, summary.Archived)
	assert.Equal(t, 3, summary.Batches)

	assert.Equal(t, 2, f.repo.Count())
	archived, ok := f.repo.Archived(finishedRoom(7, StatusExpired, t0).ID)
	require.True(t, ok)
	assert.Equal(t, StatusExpired, archived.Status)
	_, ok = f.repo.Archived(recent.ID)
	assert.False(t, ok)

	summary, err = f.svc.ArchiveRooms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Archived)
}

func TestArchiveRoomsResumesAfterFailure(t *testing.T) {
	mem := NewMemoryRepository()
	seedArchivable(mem, 450)
	repo := &flakyArchiveRepo{MemoryRepository: mem, failOn: 2}
	clock := &testClock{now: t0.Add(ArchiveAfter + day)}
	svc := NewService(repo, profile.NewMemoryDirectory(), nil, nil, WithClock(clock.Now))

	summary, err := svc.ArchiveRooms(context.Background())
	require.Error(t, err)
	assert.Equal(t, 200, summary.Archived)
	assert.Equal(t, 250, mem.Count())

	summary, err = svc.ArchiveRooms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 250, summary.Archived)
	assert.Equal(t, 2, summary.Batches)
	assert.Equal(t, 0, mem.Count())
}

type recordingColdStore struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func (s *recordingColdStore) Archive(ctx context.Context, rooms []*Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rooms == nil {
		s.rooms = map[string]*Room{}
	}
	for _, room := range rooms {
		s.rooms[room.ID] = room
	}
	return nil
}

func (s *recordingColdStore) Contains(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[id]
	return ok, nil
}

func TestArchiveRoomsToColdStore(t *testing.T) {
	store := &recordingColdStore{}
	f := newFixture(WithColdStore(store))
	seedArchivable(f.repo, 5)

	f.clock.Set(t0.Add(ArchiveAfter + day))
	summary, err := f.svc.ArchiveRooms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Archived)
	assert.Equal(t, 1, summary.Batches)

	assert.Len(t, store.rooms, 5)
	assert.Equal(t, 0, f.repo.Count())
	_, ok := f.repo.Archived(finishedRoom(0, StatusPassed, t0).ID)
	assert.False(t, ok)

	// a room in cold storage is not opened again
	_, err = f.svc.CreateRoom(context.Background(), "old-match-000", "alice", "bob")
	assert.True(t, apperr.Is(err, apperr.CodeFailedPrecondition))
	assert.Equal(t, 0, f.repo.Count())
}

func TestArchiveDocumentKeepsStoredFields(t *testing.T) {
	room := finishedRoom(1, StatusExpired, t0)
	assert.Same(t, room, archiveDocument(room))

	room.stored = map[string]interface{}{
		"matchId":    room.MatchID,
		"status":     "expired",
		"safetyFlag": "reviewed",
	}
	doc, ok := archiveDocument(room).(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "reviewed", doc["safetyFlag"])
}

// failingSweepRepo fails listing or a single room's transaction
type failingSweepRepo struct {
	*MemoryRepository
	listErr  error
	failRoom string
}

func (r *failingSweepRepo) ListActive(ctx context.Context) ([]*Room, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.MemoryRepository.ListActive(ctx)
}

func (r *failingSweepRepo) ListExpiring(ctx context.Context, now time.Time) ([]*Room, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.MemoryRepository.ListExpiring(ctx, now)
}

func (r *failingSweepRepo) Mutate(ctx context.Context, id string, fn MutateFunc) (*Room, error) {
	if id == r.failRoom {
		return nil, errors.New("transaction aborted")
	}
	return r.MemoryRepository.Mutate(ctx, id, fn)
}

func newSweepFixture(repo *failingSweepRepo, clock *testClock) (Service, *notification.MockGateway) {
	dir := profile.NewMemoryDirectory()
	gateway := notification.NewMockGateway()
	svc := NewService(repo, dir, notification.NewDispatcher(gateway, nil), nil, WithClock(clock.Now))
	return svc, gateway
}

func seedSweepRooms(repo *MemoryRepository, n int) []*Room {
	rooms := make([]*Room, 0, n)
	for i := 0; i < n; i++ {
		room := newRoom(fmt.Sprintf("sweep-match-%d", i), "alice", "bob", t0)
		repo.Put(room)
		rooms = append(rooms, room)
	}
	return rooms
}

func TestSweepsAbortWhenListingFails(t *testing.T) {
	mem := NewMemoryRepository()
	seedSweepRooms(mem, 3)
	repo := &failingSweepRepo{MemoryRepository: mem, listErr: errors.New("firestore unavailable")}
	clock := &testClock{now: t0.Add(RoomLifetime + time.Hour)}
	svc, gateway := newSweepFixture(repo, clock)
	ctx := context.Background()

	days, err := svc.AdvanceDays(ctx)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInternal, apperr.CodeOf(err))
	assert.Nil(t, days)

	expired, err := svc.ExpireRooms(ctx)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInternal, apperr.CodeOf(err))
	assert.Nil(t, expired)

	active, err := mem.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)
	for _, room := range active {
		assert.Equal(t, StatusActive, room.Status)
		assert.Equal(t, 1, room.DayNumber)
	}
	assert.Empty(t, gateway.Sent())
}

func TestAdvanceDaysIsolatesRoomFailures(t *testing.T) {
	mem := NewMemoryRepository()
	rooms := seedSweepRooms(mem, 3)
	repo := &failingSweepRepo{MemoryRepository: mem, failRoom: rooms[1].ID}
	clock := &testClock{}
	clock.atDay(4)
	svc, _ := newSweepFixture(repo, clock)

	summary, err := svc.AdvanceDays(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Scanned)
	assert.Equal(t, 2, summary.Updated)
	assert.Equal(t, 1, summary.Failed)

	for i, room := range rooms {
		got, err := mem.Get(context.Background(), room.ID)
		require.NoError(t, err)
		if i == 1 {
			assert.Equal(t, 1, got.DayNumber)
			continue
		}
		assert.Equal(t, 4, got.DayNumber)
	}
}

func TestExpireRoomsIsolatesRoomFailures(t *testing.T) {
	mem := NewMemoryRepository()
	rooms := seedSweepRooms(mem, 3)
	repo := &failingSweepRepo{MemoryRepository: mem, failRoom: rooms[0].ID}
	clock := &testClock{now: t0.Add(RoomLifetime + time.Hour)}
	svc, gateway := newSweepFixture(repo, clock)

	summary, err := svc.ExpireRooms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Scanned)
	assert.Equal(t, 2, summary.Expired)
	assert.Equal(t, 1, summary.Failed)

	first, err := mem.Get(context.Background(), rooms[0].ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, first.Status)
	for _, room := range rooms[1:] {
		got, err := mem.Get(context.Background(), room.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusExpired, got.Status)
	}
	assert.Len(t, gateway.Sent(), 4)
}
