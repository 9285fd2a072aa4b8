package rooms

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sonuprasad23/spark/internal/common/storage"
	"github.com/sonuprasad23/spark/internal/notification"
	"github.com/sonuprasad23/spark/internal/profile"
)

var t0 = time.Date(2026, 10, 12, 10, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// atDay moves the clock into the given room day of a room started at t0
func (c *testClock) atDay(d int) {
	c.Set(t0.Add(time.Duration(d-1)*day + time.Hour))
}

type fixture struct {
	repo    *MemoryRepository
	dir     *profile.MemoryDirectory
	gateway *notification.MockGateway
	clock   *testClock
	svc     Service
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		repo:    NewMemoryRepository(),
		dir:     profile.NewMemoryDirectory(),
		gateway: notification.NewMockGateway(),
		clock:   &testClock{now: t0},
	}
	f.dir.PutUser(&profile.UserProfile{ID: "alice", Name: "Alice", IsActive: true, ProfileCompleteness: 100})
	f.dir.PutUser(&profile.UserProfile{ID: "bob", Name: "Bob", IsActive: true, ProfileCompleteness: 100})

	opts = append([]Option{WithClock(f.clock.Now)}, opts...)
	f.svc = NewService(f.repo, f.dir, notification.NewDispatcher(f.gateway, nil), nil, opts...)
	return f
}

// openRoom creates the alice/bob room at t0
func (f *fixture) openRoom() *Room {
	f.clock.Set(t0)
	room, err := f.svc.CreateRoom(context.Background(), "match-1", "alice", "bob")
	if err != nil {
		panic(err)
	}
	return room
}

func (f *fixture) room(id string) *Room {
	room, err := f.repo.Get(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return room
}

func (f *fixture) sentOfType(kind notification.Type) []notification.SentNotification {
	var out []notification.SentNotification
	for _, n := range f.gateway.Sent() {
		if n.Payload["type"] == string(kind) {
			out = append(out, n)
		}
	}
	return out
}

// finishedRoom builds a terminal room that expired at expiresAt
func finishedRoom(n int, status Status, expiresAt time.Time) *Room {
	room := newRoom(fmt.Sprintf("old-match-%03d", n), "alice", "bob", expiresAt.Add(-RoomLifetime))
	room.Status = status
	return room
}

type fakePresigner struct {
	prefixes []string
}

func (p *fakePresigner) PresignUpload(ctx context.Context, prefix, contentType string) (*storage.Upload, error) {
	p.prefixes = append(p.prefixes, prefix)
	key := prefix + "/file"
	return &storage.Upload{
		UploadURL: "https://uploads.example.com/" + key,
		MediaURL:  "https://cdn.example.com/" + key,
		Key:       key,
		ExpiresAt: t0.Add(15 * time.Minute),
	}, nil
}
