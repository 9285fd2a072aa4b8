// internal/profile/repository.go
// Read access to users and their preferences

package profile

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/sonuprasad23/spark/internal/common/database"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrPreferencesNotFound = errors.New("preferences not found")
)

// firestoreInLimit is the maximum number of values in a Firestore "in" filter
const firestoreInLimit = 30

// CandidateQuery narrows the store-side candidate scan
type CandidateQuery struct {
	Gender Gender // empty means any
	MinAge int
	MaxAge int
	Cities []string // empty means any
	Limit  int
}

// Directory is the user/preference store
type Directory interface {
	GetUser(ctx context.Context, userID string) (*UserProfile, error)
	GetUsers(ctx context.Context, userIDs []string) (map[string]*UserProfile, error)
	GetPreferences(ctx context.Context, userID string) (*Preferences, error)
	// GetPreferencesBatch returns preferences keyed by user id. Users without preferences are absent.
	GetPreferencesBatch(ctx context.Context, userIDs []string) (map[string]*Preferences, error)
	// GetQuestionnaires returns answers keyed by user id. Users without answers are absent.
	GetQuestionnaires(ctx context.Context, userIDs []string) (map[string][]int, error)
	ListEligibleUsers(ctx context.Context) ([]*UserProfile, error)
	QueryCandidates(ctx context.Context, q CandidateQuery) ([]*UserProfile, error)
}

type firestoreDirectory struct {
	client *firestore.Client
}

// NewFirestoreDirectory creates a Directory over the users and preferences collections
func NewFirestoreDirectory(client *firestore.Client) Directory {
	return &firestoreDirectory{client: client}
}

func (d *firestoreDirectory) GetUser(ctx context.Context, userID string) (*UserProfile, error) {
	snap, err := d.client.Collection(database.UsersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	return decodeUser(snap)
}

func (d *firestoreDirectory) GetUsers(ctx context.Context, userIDs []string) (map[string]*UserProfile, error) {
	users := make(map[string]*UserProfile, len(userIDs))
	if len(userIDs) == 0 {
		return users, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(userIDs))
	for _, id := range userIDs {
		refs = append(refs, d.client.Collection(database.UsersCollection).Doc(id))
	}

	snaps, err := d.client.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}

	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		user, err := decodeUser(snap)
		if err != nil {
			return nil, err
		}
		users[user.ID] = user
	}
	return users, nil
}

func (d *firestoreDirectory) GetPreferences(ctx context.Context, userID string) (*Preferences, error) {
	snap, err := d.client.Collection(database.PreferencesCollection).Doc(userID).Get(ctx)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrPreferencesNotFound
		}
		return nil, fmt.Errorf("failed to get preferences for %s: %w", userID, err)
	}

	var prefs Preferences
	if err := snap.DataTo(&prefs); err != nil {
		return nil, fmt.Errorf("failed to decode preferences %s: %w", userID, err)
	}
	prefs.UserID = snap.Ref.ID
	return &prefs, nil
}

func (d *firestoreDirectory) GetPreferencesBatch(ctx context.Context, userIDs []string) (map[string]*Preferences, error) {
	out := make(map[string]*Preferences, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(userIDs))
	for _, id := range userIDs {
		refs = append(refs, d.client.Collection(database.PreferencesCollection).Doc(id))
	}

	snaps, err := d.client.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		var prefs Preferences
		if err := snap.DataTo(&prefs); err != nil {
			return nil, fmt.Errorf("failed to decode preferences %s: %w", snap.Ref.ID, err)
		}
		prefs.UserID = snap.Ref.ID
		out[prefs.UserID] = &prefs
	}
	return out, nil
}

func (d *firestoreDirectory) GetQuestionnaires(ctx context.Context, userIDs []string) (map[string][]int, error) {
	answers := make(map[string][]int, len(userIDs))
	if len(userIDs) == 0 {
		return answers, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(userIDs))
	for _, id := range userIDs {
		refs = append(refs, d.client.Collection(database.QuestionnaireCollection).Doc(id))
	}

	snaps, err := d.client.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("failed to get questionnaires: %w", err)
	}

	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		var q Questionnaire
		if err := snap.DataTo(&q); err != nil {
			return nil, fmt.Errorf("failed to decode questionnaire %s: %w", snap.Ref.ID, err)
		}
		if len(q.Answers) > 0 {
			answers[snap.Ref.ID] = q.Answers
		}
	}
	return answers, nil
}

func (d *firestoreDirectory) ListEligibleUsers(ctx context.Context) ([]*UserProfile, error) {
	query := d.client.Collection(database.UsersCollection).
		Where("isActive", "==", true).
		Where("profileCompleteness", ">=", MinProfileCompleteness)

	return collectUsers(query.Documents(ctx), func(*UserProfile) bool { return true })
}

func (d *firestoreDirectory) QueryCandidates(ctx context.Context, q CandidateQuery) ([]*UserProfile, error) {
	query := d.client.Collection(database.UsersCollection).
		Where("isActive", "==", true)

	if q.Gender != "" {
		query = query.Where("gender", "==", string(q.Gender))
	}
	if q.MinAge > 0 {
		query = query.Where("age", ">=", q.MinAge)
	}
	if q.MaxAge > 0 {
		query = query.Where("age", "<=", q.MaxAge)
	}

	// Completeness is a second inequality field, so it is checked after the read.
	keep := func(u *UserProfile) bool { return u.ProfileCompleteness >= MinProfileCompleteness }

	if n := len(q.Cities); n > 0 && n <= firestoreInLimit {
		query = query.Where("city", "in", q.Cities)
	} else if n > firestoreInLimit {
		prefs := &Preferences{Cities: q.Cities}
		keep = func(u *UserProfile) bool {
			return u.ProfileCompleteness >= MinProfileCompleteness && prefs.AcceptsCity(u.City)
		}
	}

	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	return collectUsers(query.Documents(ctx), keep)
}

func collectUsers(iter *firestore.DocumentIterator, keep func(*UserProfile) bool) ([]*UserProfile, error) {
	defer iter.Stop()

	var users []*UserProfile
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query users: %w", err)
		}

		user, err := decodeUser(snap)
		if err != nil {
			return nil, err
		}
		if keep(user) {
			users = append(users, user)
		}
	}
	return users, nil
}

func decodeUser(snap *firestore.DocumentSnapshot) (*UserProfile, error) {
	var user UserProfile
	if err := snap.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", snap.Ref.ID, err)
	}
	user.ID = snap.Ref.ID
	return &user, nil
}
