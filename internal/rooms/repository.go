// internal/rooms/repository.go

package rooms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/sonuprasad23/spark/internal/common/database"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomArchived = errors.New("room was archived")
)

// MutateFunc changes a room inside a transaction. Returning false leaves the
// stored document untouched.
type MutateFunc func(room *Room) (bool, error)

// AppendFunc validates the send against the current room and builds the message
type AppendFunc func(room *Room) (*Message, error)

// maxBatchWrites is the Firestore write-batch limit the archive sweep stays under
const maxBatchWrites = 400

// ArchiveBatchSize is how many rooms one archive batch moves (a set and a delete each)
const ArchiveBatchSize = maxBatchWrites / 2

type Repository interface {
	// CreateIfAbsent stores room under room.ID and reports whether it was created.
	// An id already moved to the archive fails with ErrRoomArchived.
	CreateIfAbsent(ctx context.Context, room *Room) (bool, error)
	Get(ctx context.Context, id string) (*Room, error)
	Mutate(ctx context.Context, id string, fn MutateFunc) (*Room, error)
	ListActive(ctx context.Context) ([]*Room, error)
	// ListExpiring returns active rooms whose expiresAt is not after now
	ListExpiring(ctx context.Context, now time.Time) ([]*Room, error)
	// ListForUser returns the user's active and connected rooms, latest message first
	ListForUser(ctx context.Context, userID string) ([]*Room, error)
	// ListArchivable returns expired and passed rooms whose expiresAt is not after cutoff
	ListArchivable(ctx context.Context, cutoff time.Time, limit int) ([]*Room, error)
	// MoveToArchive copies rooms into the archive collection as stored and deletes
	// them in one batch
	MoveToArchive(ctx context.Context, rooms []*Room) error
	Delete(ctx context.Context, ids []string) error

	// AppendMessage writes the message built by fn and bumps the room counters atomically
	AppendMessage(ctx context.Context, roomID string, fn AppendFunc) (*Message, error)
	// ListMessages returns up to limit messages created before before, newest first.
	// A zero before means no bound.
	ListMessages(ctx context.Context, roomID string, limit int, before time.Time) ([]*Message, error)
	// AdvanceMessages moves messages not sent by readerID forward to status
	AdvanceMessages(ctx context.Context, roomID, readerID string, status MessageStatus) (int, error)
	// CountUnread counts messages to userID that are not read yet
	CountUnread(ctx context.Context, roomID, userID string) (int, error)
}

type firestoreRepository struct {
	client *firestore.Client
}

func NewFirestoreRepository(client *firestore.Client) Repository {
	return &firestoreRepository{client: client}
}

func (r *firestoreRepository) rooms() *firestore.CollectionRef {
	return r.client.Collection(database.RoomsCollection)
}

func (r *firestoreRepository) messages() *firestore.CollectionRef {
	return r.client.Collection(database.MessagesCollection)
}

func (r *firestoreRepository) CreateIfAbsent(ctx context.Context, room *Room) (bool, error) {
	created := false

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		created = false
		archived, err := exists(tx, r.client.Collection(database.RoomsArchiveCollection).Doc(room.ID))
		if err != nil {
			return err
		}
		if archived {
			return ErrRoomArchived
		}
		live, err := exists(tx, r.rooms().Doc(room.ID))
		if err != nil || live {
			return err
		}
		created = true
		return tx.Create(r.rooms().Doc(room.ID), room)
	})
	if err != nil {
		if errors.Is(err, ErrRoomArchived) {
			return false, err
		}
		return false, fmt.Errorf("failed to create room %s: %w", room.ID, err)
	}
	return created, nil
}

func exists(tx *firestore.Transaction, ref *firestore.DocumentRef) (bool, error) {
	_, err := tx.Get(ref)
	switch {
	case err == nil:
		return true, nil
	case database.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

func (r *firestoreRepository) Get(ctx context.Context, id string) (*Room, error) {
	snap, err := r.rooms().Doc(id).Get(ctx)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room %s: %w", id, err)
	}
	return decodeRoom(snap)
}

func (r *firestoreRepository) Mutate(ctx context.Context, id string, fn MutateFunc) (*Room, error) {
	var result *Room

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := r.rooms().Doc(id)
		snap, err := tx.Get(ref)
		if err != nil {
			if database.IsNotFound(err) {
				return ErrRoomNotFound
			}
			return err
		}
		room, err := decodeRoom(snap)
		if err != nil {
			return err
		}

		changed, err := fn(room)
		if err != nil {
			return err
		}
		result = room
		if !changed {
			return nil
		}
		return tx.Set(ref, room)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *firestoreRepository) ListActive(ctx context.Context) ([]*Room, error) {
	return collectRooms(r.rooms().Where("status", "==", string(StatusActive)).Documents(ctx))
}

func (r *firestoreRepository) ListExpiring(ctx context.Context, now time.Time) ([]*Room, error) {
	query := r.rooms().
		Where("status", "==", string(StatusActive)).
		Where("expiresAt", "<=", now)
	return collectRooms(query.Documents(ctx))
}

func (r *firestoreRepository) ListForUser(ctx context.Context, userID string) ([]*Room, error) {
	query := r.rooms().
		Where("participants", "array-contains", userID).
		Where("status", "in", []string{string(StatusActive), string(StatusConnected)}).
		OrderBy("lastMessageAt", firestore.Desc)
	return collectRooms(query.Documents(ctx))
}

func (r *firestoreRepository) ListArchivable(ctx context.Context, cutoff time.Time, limit int) ([]*Room, error) {
	query := r.rooms().
		Where("status", "in", []string{string(StatusExpired), string(StatusPassed)}).
		Where("expiresAt", "<=", cutoff).
		Limit(limit)
	return collectRooms(query.Documents(ctx))
}

func (r *firestoreRepository) MoveToArchive(ctx context.Context, rooms []*Room) error {
	if len(rooms) == 0 {
		return nil
	}
	if len(rooms)*2 > maxBatchWrites {
		return fmt.Errorf("archive batch of %d rooms exceeds %d writes", len(rooms), maxBatchWrites)
	}

	archive := r.client.Collection(database.RoomsArchiveCollection)
	batch := r.client.Batch()
	for _, room := range rooms {
		batch.Set(archive.Doc(room.ID), archiveDocument(room))
		batch.Delete(r.rooms().Doc(room.ID))
	}
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit archive batch: %w", err)
	}
	return nil
}

func (r *firestoreRepository) Delete(ctx context.Context, ids []string) error {
	for start := 0; start < len(ids); start += maxBatchWrites {
		end := start + maxBatchWrites
		if end > len(ids) {
			end = len(ids)
		}
		batch := r.client.Batch()
		for _, id := range ids[start:end] {
			batch.Delete(r.rooms().Doc(id))
		}
		if _, err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("failed to delete rooms: %w", err)
		}
	}
	return nil
}

func (r *firestoreRepository) AppendMessage(ctx context.Context, roomID string, fn AppendFunc) (*Message, error) {
	var result *Message

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		roomRef := r.rooms().Doc(roomID)
		snap, err := tx.Get(roomRef)
		if err != nil {
			if database.IsNotFound(err) {
				return ErrRoomNotFound
			}
			return err
		}
		room, err := decodeRoom(snap)
		if err != nil {
			return err
		}

		msg, err := fn(room)
		if err != nil {
			return err
		}
		if msg.ID == "" {
			msg.ID = uuid.New().String()
		}

		if err := tx.Create(r.messages().Doc(msg.ID), msg); err != nil {
			return err
		}
		result = msg
		return tx.Update(roomRef, []firestore.Update{
			{Path: "lastMessageAt", Value: msg.CreatedAt},
			{Path: "messageCount", Value: firestore.Increment(1)},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *firestoreRepository) ListMessages(ctx context.Context, roomID string, limit int, before time.Time) ([]*Message, error) {
	query := r.messages().
		Where("roomId", "==", roomID).
		OrderBy("createdAt", firestore.Desc)
	if !before.IsZero() {
		query = query.StartAfter(before)
	}
	return collectMessages(query.Limit(limit).Documents(ctx))
}

func (r *firestoreRepository) AdvanceMessages(ctx context.Context, roomID, readerID string, status MessageStatus) (int, error) {
	var lower []string
	for _, s := range []MessageStatus{MessageSent, MessageDelivered} {
		if s.Before(status) {
			lower = append(lower, string(s))
		}
	}
	if len(lower) == 0 {
		return 0, nil
	}

	query := r.messages().
		Where("roomId", "==", roomID).
		Where("status", "in", lower)
	pending, err := collectMessages(query.Documents(ctx))
	if err != nil {
		return 0, err
	}

	var refs []*firestore.DocumentRef
	for _, msg := range pending {
		if msg.SenderID != readerID {
			refs = append(refs, r.messages().Doc(msg.ID))
		}
	}

	for start := 0; start < len(refs); start += maxBatchWrites {
		end := start + maxBatchWrites
		if end > len(refs) {
			end = len(refs)
		}
		batch := r.client.Batch()
		for _, ref := range refs[start:end] {
			batch.Update(ref, []firestore.Update{{Path: "status", Value: string(status)}})
		}
		if _, err := batch.Commit(ctx); err != nil {
			return start, fmt.Errorf("failed to update message status: %w", err)
		}
	}
	return len(refs), nil
}

func (r *firestoreRepository) CountUnread(ctx context.Context, roomID, userID string) (int, error) {
	query := r.messages().
		Where("roomId", "==", roomID).
		Where("status", "in", []string{string(MessageSent), string(MessageDelivered)})
	pending, err := collectMessages(query.Documents(ctx))
	if err != nil {
		return 0, err
	}

	count := 0
	for _, msg := range pending {
		if msg.SenderID != userID {
			count++
		}
	}
	return count, nil
}

func collectRooms(iter *firestore.DocumentIterator) ([]*Room, error) {
	defer iter.Stop()

	var rooms []*Room
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query rooms: %w", err)
		}
		room, err := decodeRoom(snap)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func decodeRoom(snap *firestore.DocumentSnapshot) (*Room, error) {
	var room Room
	if err := snap.DataTo(&room); err != nil {
		return nil, fmt.Errorf("failed to decode room %s: %w", snap.Ref.ID, err)
	}
	room.ID = snap.Ref.ID
	room.stored = snap.Data()
	if room.Decisions == nil {
		room.Decisions = map[string]Decision{}
	}
	return &room, nil
}

// archiveDocument is the document as it was read, so fields written by other
// services survive archival
func archiveDocument(room *Room) interface{} {
	if room.stored != nil {
		return room.stored
	}
	return room
}

func collectMessages(iter *firestore.DocumentIterator) ([]*Message, error) {
	defer iter.Stop()

	var messages []*Message
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query messages: %w", err)
		}
		var msg Message
		if err := snap.DataTo(&msg); err != nil {
			return nil, fmt.Errorf("failed to decode message %s: %w", snap.Ref.ID, err)
		}
		msg.ID = snap.Ref.ID
		messages = append(messages, &msg)
	}
	return messages, nil
}
