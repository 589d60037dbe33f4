package sqlite

import (
	"context"
	"database/sql"

	"github.com/liveline-bot/liveline/internal/store"
)

type RuleStore struct {
	db *sql.DB
}

func NewRuleStore(db *sql.DB) *RuleStore {
	return &RuleStore{db: db}
}

func (s *RuleStore) Upsert(ctx context.Context, r store.AutoReplyRule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auto_replies (keyword, reply, media_ref, position)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (keyword) DO UPDATE SET
			reply     = excluded.reply,
			media_ref = excluded.media_ref,
			position  = excluded.position`,
		r.Keyword, r.Reply, r.MediaRef, r.Position)
	return err
}

func (s *RuleStore) Delete(ctx context.Context, keyword string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM auto_replies WHERE keyword = ?`, keyword)
	return err
}

func (s *RuleStore) List(ctx context.Context) ([]store.AutoReplyRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT keyword, reply, media_ref, position FROM auto_replies ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.AutoReplyRule
	for rows.Next() {
		var r store.AutoReplyRule
		if err := rows.Scan(&r.Keyword, &r.Reply, &r.MediaRef, &r.Position); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
