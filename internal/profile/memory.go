// internal/profile/memory.go
// In-memory Directory for local runs and tests

package profile

import (
	"context"
	"sort"
	"sync"
)

// MemoryDirectory keeps users and preferences in maps
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]*UserProfile
	prefs map[string]*Preferences
	quiz  map[string][]int
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		users: make(map[string]*UserProfile),
		prefs: make(map[string]*Preferences),
		quiz:  make(map[string][]int),
	}
}

// PutUser inserts or replaces a user
func (d *MemoryDirectory) PutUser(u *UserProfile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *u
	d.users[u.ID] = &cp
}

// PutPreferences inserts or replaces a user's preferences
func (d *MemoryDirectory) PutPreferences(p *Preferences) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *p
	d.prefs[p.UserID] = &cp
}

// PutQuestionnaire stores a user's answers
func (d *MemoryDirectory) PutQuestionnaire(userID string, answers []int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quiz[userID] = append([]int(nil), answers...)
}

func (d *MemoryDirectory) GetUser(ctx context.Context, userID string) (*UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (d *MemoryDirectory) GetUsers(ctx context.Context, userIDs []string) (map[string]*UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]*UserProfile, len(userIDs))
	for _, id := range userIDs {
		if u, ok := d.users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (d *MemoryDirectory) GetPreferences(ctx context.Context, userID string) (*Preferences, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.prefs[userID]
	if !ok {
		return nil, ErrPreferencesNotFound
	}
	cp := *p
	return &cp, nil
}

func (d *MemoryDirectory) GetPreferencesBatch(ctx context.Context, userIDs []string) (map[string]*Preferences, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]*Preferences, len(userIDs))
	for _, id := range userIDs {
		if p, ok := d.prefs[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (d *MemoryDirectory) GetQuestionnaires(ctx context.Context, userIDs []string) (map[string][]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string][]int, len(userIDs))
	for _, id := range userIDs {
		if a, ok := d.quiz[id]; ok && len(a) > 0 {
			out[id] = append([]int(nil), a...)
		}
	}
	return out, nil
}

func (d *MemoryDirectory) ListEligibleUsers(ctx context.Context) ([]*UserProfile, error) {
	return d.scan(ctx, 0, func(u *UserProfile) bool { return u.Eligible() })
}

func (d *MemoryDirectory) QueryCandidates(ctx context.Context, q CandidateQuery) ([]*UserProfile, error) {
	cities := &Preferences{Cities: q.Cities}
	return d.scan(ctx, q.Limit, func(u *UserProfile) bool {
		if !u.Eligible() {
			return false
		}
		if q.Gender != "" && u.Gender != q.Gender {
			return false
		}
		if q.MinAge > 0 && u.Age < q.MinAge {
			return false
		}
		if q.MaxAge > 0 && u.Age > q.MaxAge {
			return false
		}
		return cities.AcceptsCity(u.City)
	})
}

// scan walks users in id order so results are stable across calls
func (d *MemoryDirectory) scan(ctx context.Context, limit int, keep func(*UserProfile) bool) ([]*UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.users))
	for id := range d.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []*UserProfile
	for _, id := range ids {
		u := d.users[id]
		if !keep(u) {
			continue
		}
		cp := *u
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
