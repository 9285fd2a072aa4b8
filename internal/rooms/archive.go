// internal/rooms/archive.go
// Postgres cold storage for finished rooms

package rooms

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ColdStore keeps archived rooms outside the live collection. Archive must be
// idempotent on room id so an interrupted sweep can be re-run.
type ColdStore interface {
	Archive(ctx context.Context, rooms []*Room) error
	// Contains reports whether a room with id was archived
	Contains(ctx context.Context, id string) (bool, error)
}

const archiveSchema = `
CREATE TABLE IF NOT EXISTS rooms_archive (
    id              TEXT PRIMARY KEY,
    match_id        TEXT NOT NULL,
    participants    TEXT[] NOT NULL,
    day_number      INTEGER NOT NULL,
    status          TEXT NOT NULL,
    decisions       JSONB NOT NULL DEFAULT '{}',
    extensions_used INTEGER NOT NULL DEFAULT 0,
    message_count   INTEGER NOT NULL DEFAULT 0,
    started_at      TIMESTAMPTZ NOT NULL,
    expires_at      TIMESTAMPTZ NOT NULL,
    last_message_at TIMESTAMPTZ NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL,
    document        JSONB NOT NULL DEFAULT '{}',
    archived_at     TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

const addDocumentColumn = `
ALTER TABLE rooms_archive ADD COLUMN IF NOT EXISTS document JSONB NOT NULL DEFAULT '{}'`

const insertArchivedRoom = `
INSERT INTO rooms_archive (
    id, match_id, participants, day_number, status, decisions,
    extensions_used, message_count, started_at, expires_at,
    last_message_at, created_at, document
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO NOTHING`

type postgresColdStore struct {
	db *sqlx.DB
}

// NewPostgresColdStore creates the archive table if needed
func NewPostgresColdStore(ctx context.Context, db *sqlx.DB) (ColdStore, error) {
	if _, err := db.ExecContext(ctx, archiveSchema); err != nil {
		return nil, fmt.Errorf("failed to create rooms_archive table: %w", err)
	}
	if _, err := db.ExecContext(ctx, addDocumentColumn); err != nil {
		return nil, fmt.Errorf("failed to migrate rooms_archive table: %w", err)
	}
	return &postgresColdStore{db: db}, nil
}

func (s *postgresColdStore) Archive(ctx context.Context, rooms []*Room) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, insertArchivedRoom)
	if err != nil {
		return fmt.Errorf("failed to prepare archive insert: %w", err)
	}
	defer stmt.Close()

	for _, room := range rooms {
		decisions, err := json.Marshal(room.Decisions)
		if err != nil {
			return fmt.Errorf("failed to encode decisions of room %s: %w", room.ID, err)
		}
		document, err := json.Marshal(archiveDocument(room))
		if err != nil {
			return fmt.Errorf("failed to encode room %s: %w", room.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			room.ID, room.MatchID, pq.Array(room.Participants), room.DayNumber,
			string(room.Status), decisions, room.ExtensionsUsed, room.MessageCount,
			room.StartedAt, room.ExpiresAt, room.LastMessageAt, room.CreatedAt, document,
		)
		if err != nil {
			return fmt.Errorf("failed to archive room %s: %w", room.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archive transaction: %w", err)
	}
	return nil
}

func (s *postgresColdStore) Contains(ctx context.Context, id string) (bool, error) {
	var found bool
	err := s.db.GetContext(ctx, &found, `SELECT EXISTS (SELECT 1 FROM rooms_archive WHERE id = $1)`, id)
	if err != nil {
		return false, fmt.Errorf("failed to look up archived room %s: %w", id, err)
	}
	return found, nil
}
