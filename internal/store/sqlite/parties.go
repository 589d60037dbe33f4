package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/liveline-bot/liveline/internal/store"
)

// Timestamps are stored as unix microseconds; SQLite has no native
// time type and integer comparison keeps ordering cheap.
func toMicro(t time.Time) int64 { return t.UnixMicro() }

func fromMicro(v int64) time.Time { return time.UnixMicro(v).UTC() }

func nullMicro(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMicro(*t), Valid: true}
}

func microPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMicro(v.Int64)
	return &t
}

type PartyStore struct {
	db *sql.DB
}

func NewPartyStore(db *sql.DB) *PartyStore {
	return &PartyStore{db: db}
}

func (s *PartyStore) Upsert(ctx context.Context, p *store.Party) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO parties (id, transport_id, handle, first_seen, last_seen, contacted_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			transport_id = excluded.transport_id,
			handle       = excluded.handle,
			last_seen    = excluded.last_seen,
			contacted_at = excluded.contacted_at`,
		p.ID.String(), p.TransportID, p.Handle,
		toMicro(p.FirstSeen), toMicro(p.LastSeen), nullMicro(p.ContactedAt))
	return err
}

func (s *PartyStore) List(ctx context.Context) ([]store.Party, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, transport_id, handle, first_seen, last_seen, contacted_at
		 FROM parties ORDER BY first_seen`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Party
	for rows.Next() {
		var (
			p         store.Party
			id        string
			first     int64
			last      int64
			contacted sql.NullInt64
		)
		if err := rows.Scan(&id, &p.TransportID, &p.Handle, &first, &last, &contacted); err != nil {
			return nil, err
		}
		if p.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		p.FirstSeen = fromMicro(first)
		p.LastSeen = fromMicro(last)
		p.ContactedAt = microPtr(contacted)
		out = append(out, p)
	}
	return out, rows.Err()
}
