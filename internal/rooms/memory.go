// internal/rooms/memory.go

package rooms

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps rooms and messages in maps. One mutex covers both,
// so Mutate and AppendMessage are as atomic as their Firestore transactions.
type MemoryRepository struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	archive  map[string]*Room
	messages map[string]*Message
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rooms:    make(map[string]*Room),
		archive:  make(map[string]*Room),
		messages: make(map[string]*Message),
	}
}

func cloneRoom(r *Room) *Room {
	cp := *r
	cp.Participants = append([]string(nil), r.Participants...)
	cp.Decisions = make(map[string]Decision, len(r.Decisions))
	for k, v := range r.Decisions {
		cp.Decisions[k] = v
	}
	return &cp
}

func cloneMessage(m *Message) *Message {
	cp := *m
	return &cp
}

// Put stores room unconditionally
func (r *MemoryRepository) Put(room *Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room.ID] = cloneRoom(room)
}

// Archived returns the archived copy of a room
func (r *MemoryRepository) Archived(id string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.archive[id]
	if !ok {
		return nil, false
	}
	return cloneRoom(room), true
}

// Count returns how many live rooms are stored
func (r *MemoryRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

func (r *MemoryRepository) CreateIfAbsent(ctx context.Context, room *Room) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.archive[room.ID]; ok {
		return false, ErrRoomArchived
	}
	if _, ok := r.rooms[room.ID]; ok {
		return false, nil
	}
	r.rooms[room.ID] = cloneRoom(room)
	return true, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return cloneRoom(room), nil
}

func (r *MemoryRepository) Mutate(ctx context.Context, id string, fn MutateFunc) (*Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	room := cloneRoom(stored)
	changed, err := fn(room)
	if err != nil {
		return nil, err
	}
	if changed {
		r.rooms[id] = cloneRoom(room)
	}
	return room, nil
}

func (r *MemoryRepository) filter(keep func(*Room) bool) []*Room {
	var out []*Room
	for _, room := range r.rooms {
		if keep(room) {
			out = append(out, cloneRoom(room))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *MemoryRepository) ListActive(ctx context.Context) ([]*Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(room *Room) bool { return room.Status == StatusActive }), nil
}

func (r *MemoryRepository) ListExpiring(ctx context.Context, now time.Time) ([]*Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(room *Room) bool {
		return room.Status == StatusActive && !room.ExpiresAt.After(now)
	}), nil
}

func (r *MemoryRepository) ListForUser(ctx context.Context, userID string) ([]*Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.filter(func(room *Room) bool { return room.Open() && room.IsParticipant(userID) })
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out, nil
}

func (r *MemoryRepository) ListArchivable(ctx context.Context, cutoff time.Time, limit int) ([]*Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.filter(func(room *Room) bool {
		return (room.Status == StatusExpired || room.Status == StatusPassed) && !room.ExpiresAt.After(cutoff)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) MoveToArchive(ctx context.Context, rooms []*Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range rooms {
		r.archive[room.ID] = cloneRoom(room)
		delete(r.rooms, room.ID)
	}
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.rooms, id)
	}
	return nil
}

func (r *MemoryRepository) AppendMessage(ctx context.Context, roomID string, fn AppendFunc) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	msg, err := fn(cloneRoom(stored))
	if err != nil {
		return nil, err
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	r.messages[msg.ID] = cloneMessage(msg)
	stored.LastMessageAt = msg.CreatedAt
	stored.MessageCount++
	return msg, nil
}

func (r *MemoryRepository) ListMessages(ctx context.Context, roomID string, limit int, before time.Time) ([]*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Message
	for _, msg := range r.messages {
		if msg.RoomID != roomID {
			continue
		}
		if !before.IsZero() && !msg.CreatedAt.Before(before) {
			continue
		}
		out = append(out, cloneMessage(msg))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) AdvanceMessages(ctx context.Context, roomID, readerID string, status MessageStatus) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, msg := range r.messages {
		if msg.RoomID == roomID && msg.SenderID != readerID && msg.Status.Before(status) {
			msg.Status = status
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) CountUnread(ctx context.Context, roomID, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, msg := range r.messages {
		if msg.RoomID == roomID && msg.SenderID != userID && msg.Status != MessageRead {
			n++
		}
	}
	return n, nil
}
