// internal/matching/memory.go

package matching

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is a Repository backed by a map. Mutate holds the lock for
// the whole read-modify-write so it has the same atomicity as a transaction.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]*MatchRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*MatchRecord)}
}

func cloneMatch(m *MatchRecord) *MatchRecord {
	cp := *m
	if m.DecidedAt != nil {
		t := *m.DecidedAt
		cp.DecidedAt = &t
	}
	return &cp
}

// Put stores rec unconditionally
func (r *MemoryRepository) Put(rec *MatchRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = cloneMatch(rec)
}

// All returns every record sorted by id
func (r *MemoryRepository) All() []*MatchRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*MatchRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, cloneMatch(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return cloneMatch(rec), nil
}

func (r *MemoryRepository) CreateIfAbsent(ctx context.Context, rec *MatchRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; ok {
		return false, nil
	}
	r.records[rec.ID] = cloneMatch(rec)
	return true, nil
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID string, c Cycle) ([]*MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*MatchRecord
	for _, rec := range r.records {
		if rec.UserID == userID && rec.Cycle() == c {
			out = append(out, cloneMatch(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) PartnersInCycle(ctx context.Context, userID string, c Cycle) (map[string]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	partners := make(map[string]struct{})
	for _, rec := range r.records {
		if rec.Cycle() == c && rec.IsParticipant(userID) {
			partners[rec.Other(userID)] = struct{}{}
		}
	}
	return partners, nil
}

func (r *MemoryRepository) Mutate(ctx context.Context, id string, fn MutateFunc) (*MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	rec := cloneMatch(stored)

	var mirror *MatchRecord
	if m, ok := r.records[rec.MirrorID()]; ok && m.ID != rec.ID {
		mirror = cloneMatch(m)
	}

	changed, err := fn(rec, mirror)
	if err != nil {
		return nil, err
	}
	if changed {
		r.records[rec.ID] = cloneMatch(rec)
		if mirror != nil {
			r.records[mirror.ID] = cloneMatch(mirror)
		}
	}
	return rec, nil
}

func (r *MemoryRepository) ListExpirable(ctx context.Context, now time.Time, limit int) ([]*MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*MatchRecord
	for _, rec := range r.records {
		if rec.Open() && !rec.ExpiresAt.After(now) {
			out = append(out, cloneMatch(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
