package matching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sonuprasad23/spark/internal/profile"
)

var testNow = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func member(id string, gender profile.Gender, age int, city string) *profile.UserProfile {
	return &profile.UserProfile{
		ID:                  id,
		Name:                "user " + id,
		Age:                 age,
		Gender:              gender,
		City:                city,
		Interests:           []string{"hiking", "coffee"},
		ProfileCompleteness: 100,
		IsActive:            true,
	}
}

// fakeRooms records rooms opened per pair key
type fakeRooms struct {
	mu       sync.Mutex
	rooms    map[string]string
	matchIDs map[string]string
	calls    int
	err      error
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{rooms: make(map[string]string), matchIDs: make(map[string]string)}
}

func (f *fakeRooms) CreateRoomForMatch(ctx context.Context, pairKey, matchID, userA, userB string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if id, ok := f.rooms[pairKey]; ok {
		return id, nil
	}
	id := fmt.Sprintf("room-%d", len(f.rooms)+1)
	f.rooms[pairKey] = id
	f.matchIDs[id] = matchID
	return id, nil
}

func (f *fakeRooms) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rooms)
}
