package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/liveline-bot/liveline/internal/store"
)

// SessionStore keeps the active slot and ended history in one table; the
// active session is the single row with ended_at NULL.
type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) SaveActive(ctx context.Context, rec *store.SessionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Drop any stale active row; the ended copy arrives via AppendHistory.
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE ended_at IS NULL`); err != nil {
		return err
	}
	if rec != nil {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sessions (id, party_id, started_at, ended_at) VALUES (?, ?, ?, NULL)`,
			rec.ID.String(), rec.PartyID.String(), toMicro(rec.StartedAt))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SessionStore) LoadActive(ctx context.Context) (*store.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, party_id, started_at FROM sessions WHERE ended_at IS NULL LIMIT 1`)

	var rec store.SessionRecord
	var id, partyID string
	var started int64
	err := row.Scan(&id, &partyID, &started)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if rec.PartyID, err = uuid.Parse(partyID); err != nil {
		return nil, err
	}
	rec.StartedAt = fromMicro(started)
	return &rec, nil
}

func (s *SessionStore) AppendHistory(ctx context.Context, rec store.SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, party_id, started_at, ended_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET ended_at = excluded.ended_at`,
		rec.ID.String(), rec.PartyID.String(), toMicro(rec.StartedAt), nullMicro(rec.EndedAt))
	return err
}

func (s *SessionStore) History(ctx context.Context, limit int) ([]store.SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, party_id, started_at, ended_at FROM sessions
		 WHERE ended_at IS NOT NULL ORDER BY ended_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.SessionRecord
	for rows.Next() {
		var (
			rec     store.SessionRecord
			id      string
			partyID string
			started int64
			ended   sql.NullInt64
		)
		if err := rows.Scan(&id, &partyID, &started, &ended); err != nil {
			return nil, err
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if rec.PartyID, err = uuid.Parse(partyID); err != nil {
			return nil, err
		}
		rec.StartedAt = fromMicro(started)
		rec.EndedAt = microPtr(ended)
		out = append(out, rec)
	}
	return out, rows.Err()
}
