package sqlite

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/liveline-bot/liveline/internal/store"
)

type QueueStore struct {
	db *sql.DB
}

func NewQueueStore(db *sql.DB) *QueueStore {
	return &QueueStore{db: db}
}

func (s *QueueStore) Insert(ctx context.Context, e store.QueueEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queue_entries (party_id, seq, enqueued_at) VALUES (?, ?, ?)
		ON CONFLICT (party_id) DO NOTHING`,
		e.PartyID.String(), int64(e.Seq), toMicro(e.EnqueuedAt))
	return err
}

func (s *QueueStore) Delete(ctx context.Context, partyID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM queue_entries WHERE party_id = ?`, partyID.String())
	return err
}

func (s *QueueStore) List(ctx context.Context) ([]store.QueueEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT party_id, seq, enqueued_at FROM queue_entries ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.QueueEntry
	for rows.Next() {
		var (
			e        store.QueueEntry
			partyID  string
			seq      int64
			enqueued int64
		)
		if err := rows.Scan(&partyID, &seq, &enqueued); err != nil {
			return nil, err
		}
		if e.PartyID, err = uuid.Parse(partyID); err != nil {
			return nil, err
		}
		e.Seq = uint64(seq)
		e.EnqueuedAt = fromMicro(enqueued)
		out = append(out, e)
	}
	return out, rows.Err()
}
