// Package store defines the persistence interfaces and record types shared
// by the routing core. Implementations provide write-through-on-mutate and
// load-on-start semantics; the in-memory state owned by the routing engine
// stays authoritative within a process.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Party is a conversational counterpart. A party created by the admin
// addressing an unknown handle is a placeholder: TransportID is empty and
// ContactedAt is nil until the party first messages the bot.
type Party struct {
	ID          uuid.UUID  `json:"id"`
	TransportID string     `json:"transport_id,omitempty"`
	Handle      string     `json:"handle,omitempty"`
	FirstSeen   time.Time  `json:"first_seen"`
	LastSeen    time.Time  `json:"last_seen"`
	ContactedAt *time.Time `json:"contacted_at,omitempty"`
}

// Contacted reports whether the party has ever messaged the bot, i.e. it is
// reachable through the transport.
func (p *Party) Contacted() bool { return p.TransportID != "" }

// SessionRecord is one live session. EndedAt is nil while active; ended
// records are immutable history.
type SessionRecord struct {
	ID        uuid.UUID  `json:"id"`
	PartyID   uuid.UUID  `json:"party_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// QueueEntry is a pending request to become the active party. Seq breaks
// enqueue-time ties so ordering is total even with coarse clocks.
type QueueEntry struct {
	PartyID    uuid.UUID `json:"party_id"`
	Seq        uint64    `json:"seq"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// AutoReplyRule maps a keyword to a scripted reply. Position is the match
// priority (insertion order, first match wins).
type AutoReplyRule struct {
	Keyword  string `json:"keyword"`
	Reply    string `json:"reply"`
	MediaRef string `json:"media_ref,omitempty"`
	Position int    `json:"position"`
}

// MessageRecord is one archived message between a party and the admin.
type MessageRecord struct {
	ID          uuid.UUID `json:"id"`
	PartyID     uuid.UUID `json:"party_id"`
	FromAdmin   bool      `json:"from_admin"`
	ContentType string    `json:"content_type"` // "text" or "media"
	Text        string    `json:"text,omitempty"`
	FileRef     string    `json:"file_ref,omitempty"`
	SeenByAdmin bool      `json:"seen_by_admin"`
	Timestamp   time.Time `json:"timestamp"`
}

// PartyStore persists the identity registry.
type PartyStore interface {
	Upsert(ctx context.Context, p *Party) error
	List(ctx context.Context) ([]Party, error)
}

// SessionStore persists the active session slot and immutable history.
type SessionStore interface {
	// SaveActive writes the current active session; nil clears the slot.
	SaveActive(ctx context.Context, rec *SessionRecord) error
	LoadActive(ctx context.Context) (*SessionRecord, error)
	// AppendHistory records an ended session.
	AppendHistory(ctx context.Context, rec SessionRecord) error
	History(ctx context.Context, limit int) ([]SessionRecord, error)
}

// QueueStore persists the FIFO waiting queue.
type QueueStore interface {
	Insert(ctx context.Context, e QueueEntry) error
	Delete(ctx context.Context, partyID uuid.UUID) error
	List(ctx context.Context) ([]QueueEntry, error)
}

// RuleStore persists auto-reply rules in priority order.
type RuleStore interface {
	Upsert(ctx context.Context, r AutoReplyRule) error
	Delete(ctx context.Context, keyword string) error
	List(ctx context.Context) ([]AutoReplyRule, error)
}

// MessageStore is the message archive with admin-seen tracking.
type MessageStore interface {
	Append(ctx context.Context, rec MessageRecord) error
	// MarkSeen marks all unseen party messages as seen and returns how many.
	MarkSeen(ctx context.Context, partyID uuid.UUID) (int, error)
	UnreadCount(ctx context.Context, partyID uuid.UUID) (int, error)
	History(ctx context.Context, partyID uuid.UUID, limit, offset int) ([]MessageRecord, error)
	PurgeParty(ctx context.Context, partyID uuid.UUID) error
	PurgeAll(ctx context.Context) error
}

// Stores is the top-level container for all storage backends.
type Stores struct {
	Parties  PartyStore
	Sessions SessionStore
	Queue    QueueStore
	Rules    RuleStore
	Messages MessageStore
}
