package sqlite

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/liveline-bot/liveline/internal/store"
)

type MessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) Append(ctx context.Context, rec store.MessageRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, party_id, from_admin, content_type, text, file_ref, seen_by_admin, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.PartyID.String(), rec.FromAdmin, rec.ContentType,
		rec.Text, rec.FileRef, rec.SeenByAdmin, toMicro(rec.Timestamp))
	return err
}

func (s *MessageStore) MarkSeen(ctx context.Context, partyID uuid.UUID) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET seen_by_admin = 1
		WHERE party_id = ? AND from_admin = 0 AND seen_by_admin = 0`,
		partyID.String())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *MessageStore) UnreadCount(ctx context.Context, partyID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE party_id = ? AND from_admin = 0 AND seen_by_admin = 0`,
		partyID.String()).Scan(&n)
	return n, err
}

// History returns archived messages for a party, oldest first within the
// requested window. Offset counts back from the most recent message.
func (s *MessageStore) History(ctx context.Context, partyID uuid.UUID, limit, offset int) ([]store.MessageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, party_id, from_admin, content_type, text, file_ref, seen_by_admin, ts
		FROM (
			SELECT * FROM messages WHERE party_id = ?
			ORDER BY ts DESC, id DESC LIMIT ? OFFSET ?
		) ORDER BY ts ASC, id ASC`,
		partyID.String(), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.MessageRecord
	for rows.Next() {
		var (
			rec     store.MessageRecord
			id      string
			pid     string
			tsMicro int64
		)
		if err := rows.Scan(&id, &pid, &rec.FromAdmin, &rec.ContentType,
			&rec.Text, &rec.FileRef, &rec.SeenByAdmin, &tsMicro); err != nil {
			return nil, err
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if rec.PartyID, err = uuid.Parse(pid); err != nil {
			return nil, err
		}
		rec.Timestamp = fromMicro(tsMicro)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *MessageStore) PurgeParty(ctx context.Context, partyID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE party_id = ?`, partyID.String())
	return err
}

func (s *MessageStore) PurgeAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages`)
	return err
}
