// internal/matching/repository.go

package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/sonuprasad23/spark/internal/common/database"
)

var ErrMatchNotFound = errors.New("match not found")

// MutateFunc changes a record, and its mirror when one exists, inside a
// transaction. Returning false leaves both documents untouched.
type MutateFunc func(rec, mirror *MatchRecord) (bool, error)

type Repository interface {
	Get(ctx context.Context, id string) (*MatchRecord, error)
	// CreateIfAbsent stores rec under rec.ID and reports whether it was created
	CreateIfAbsent(ctx context.Context, rec *MatchRecord) (bool, error)
	// ListByUser returns the records generated for userID in cycle c
	ListByUser(ctx context.Context, userID string, c Cycle) ([]*MatchRecord, error)
	// PartnersInCycle returns everyone paired with userID in cycle c, in either direction
	PartnersInCycle(ctx context.Context, userID string, c Cycle) (map[string]struct{}, error)
	Mutate(ctx context.Context, id string, fn MutateFunc) (*MatchRecord, error)
	// ListExpirable returns open records whose expiresAt is not after now
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]*MatchRecord, error)
}

type firestoreRepository struct {
	client *firestore.Client
}

func NewFirestoreRepository(client *firestore.Client) Repository {
	return &firestoreRepository{client: client}
}

func (r *firestoreRepository) matches() *firestore.CollectionRef {
	return r.client.Collection(database.MatchesCollection)
}

func (r *firestoreRepository) Get(ctx context.Context, id string) (*MatchRecord, error) {
	snap, err := r.matches().Doc(id).Get(ctx)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %s: %w", id, err)
	}
	return decodeMatch(snap)
}

func (r *firestoreRepository) CreateIfAbsent(ctx context.Context, rec *MatchRecord) (bool, error) {
	_, err := r.matches().Doc(rec.ID).Create(ctx, rec)
	if err != nil {
		if database.IsAlreadyExists(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create match %s: %w", rec.ID, err)
	}
	return true, nil
}

func (r *firestoreRepository) ListByUser(ctx context.Context, userID string, c Cycle) ([]*MatchRecord, error) {
	query := r.matches().
		Where("userId", "==", userID).
		Where("weekNumber", "==", c.Week).
		Where("year", "==", c.Year)
	return collectMatches(query.Documents(ctx))
}

func (r *firestoreRepository) PartnersInCycle(ctx context.Context, userID string, c Cycle) (map[string]struct{}, error) {
	partners := make(map[string]struct{})

	for _, field := range []string{"userId", "matchedUserId"} {
		query := r.matches().
			Where(field, "==", userID).
			Where("weekNumber", "==", c.Week).
			Where("year", "==", c.Year)

		records, err := collectMatches(query.Documents(ctx))
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			partners[rec.Other(userID)] = struct{}{}
		}
	}
	return partners, nil
}

func (r *firestoreRepository) Mutate(ctx context.Context, id string, fn MutateFunc) (*MatchRecord, error) {
	var result *MatchRecord

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := r.matches().Doc(id)
		snap, err := tx.Get(ref)
		if err != nil {
			if database.IsNotFound(err) {
				return ErrMatchNotFound
			}
			return err
		}
		rec, err := decodeMatch(snap)
		if err != nil {
			return err
		}

		mirrorRef := r.matches().Doc(rec.MirrorID())
		var mirror *MatchRecord
		mirrorSnap, err := tx.Get(mirrorRef)
		switch {
		case err == nil:
			if mirror, err = decodeMatch(mirrorSnap); err != nil {
				return err
			}
		case database.IsNotFound(err):
		default:
			return err
		}

		changed, err := fn(rec, mirror)
		if err != nil {
			return err
		}
		result = rec
		if !changed {
			return nil
		}

		if err := tx.Set(ref, rec); err != nil {
			return err
		}
		if mirror != nil {
			return tx.Set(mirrorRef, mirror)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *firestoreRepository) ListExpirable(ctx context.Context, now time.Time, limit int) ([]*MatchRecord, error) {
	query := r.matches().
		Where("status", "in", []string{string(StatusPending), string(StatusViewed)}).
		Where("expiresAt", "<=", now).
		Limit(limit)
	return collectMatches(query.Documents(ctx))
}

func collectMatches(iter *firestore.DocumentIterator) ([]*MatchRecord, error) {
	defer iter.Stop()

	var records []*MatchRecord
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query matches: %w", err)
		}
		rec, err := decodeMatch(snap)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeMatch(snap *firestore.DocumentSnapshot) (*MatchRecord, error) {
	var rec MatchRecord
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode match %s: %w", snap.Ref.ID, err)
	}
	rec.ID = snap.Ref.ID
	return &rec, nil
}
