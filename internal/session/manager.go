// Package session owns the single live-session slot: the state machine
// binding the admin to at most one party, and its promotion coupling to the
// waiting queue.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/liveline-bot/liveline/internal/queue"
	"github.com/liveline-bot/liveline/internal/store"
)

// ErrInvalidTransition is returned by End when no session is active.
var ErrInvalidTransition = errors.New("no active session")

// Manager is the two-state machine Idle / Active(party). It is not
// self-locking: Start, End and Current run inside the routing engine's
// critical section so session and queue mutate as one atomic unit.
type Manager struct {
	active   *store.SessionRecord
	waiting  *queue.Store
	sessions store.SessionStore
}

// NewManager creates a manager promoting from the given queue and persisting
// through the given session store.
func NewManager(waiting *queue.Store, sessions store.SessionStore) *Manager {
	return &Manager{waiting: waiting, sessions: sessions}
}

// Load restores the active session slot from the store. Called once on
// startup, after the queue has been loaded.
func (m *Manager) Load(ctx context.Context) error {
	rec, err := m.sessions.LoadActive(ctx)
	if err != nil {
		return err
	}
	m.active = rec
	return nil
}

// Current returns the active party id, or false when idle.
func (m *Manager) Current() (uuid.UUID, bool) {
	if m.active == nil {
		return uuid.Nil, false
	}
	return m.active.PartyID, true
}

// Active returns a copy of the active session record, or nil when idle.
func (m *Manager) Active() *store.SessionRecord {
	if m.active == nil {
		return nil
	}
	rec := *m.active
	return &rec
}

// Start binds the session to a party. Any current session is force-ended
// first (an explicit start always wins immediately) and the target party
// is removed from the queue (promotion-by-request). The returned record is
// the previous session if one was ended, else nil. Start never fails.
func (m *Manager) Start(ctx context.Context, partyID uuid.UUID) *store.SessionRecord {
	var prev *store.SessionRecord
	if m.active != nil {
		prev = m.endLocked(ctx)
	}

	m.waiting.Remove(ctx, partyID)

	m.active = &store.SessionRecord{
		ID:        uuid.Must(uuid.NewV7()),
		PartyID:   partyID,
		StartedAt: time.Now(),
	}
	m.persistActive(ctx)
	return prev
}

// End closes the active session and synchronously promotes the queue front,
// if any, to a fresh session within the same critical section, so an observer
// holding the routing lock never sees Idle while parties are waiting.
// Returns the ended record and the promoted party id (uuid.Nil when the
// queue was empty). ErrInvalidTransition when already idle; state unchanged.
func (m *Manager) End(ctx context.Context) (store.SessionRecord, uuid.UUID, error) {
	if m.active == nil {
		return store.SessionRecord{}, uuid.Nil, ErrInvalidTransition
	}

	ended := *m.endLocked(ctx)

	if next, ok := m.waiting.DequeueFront(ctx); ok {
		m.active = &store.SessionRecord{
			ID:        uuid.Must(uuid.NewV7()),
			PartyID:   next.PartyID,
			StartedAt: time.Now(),
		}
		m.persistActive(ctx)
		return ended, next.PartyID, nil
	}

	m.persistActive(ctx)
	return ended, uuid.Nil, nil
}

// History returns recent ended sessions, newest first.
func (m *Manager) History(ctx context.Context, limit int) ([]store.SessionRecord, error) {
	return m.sessions.History(ctx, limit)
}

func (m *Manager) endLocked(ctx context.Context) *store.SessionRecord {
	now := time.Now()
	rec := m.active
	rec.EndedAt = &now
	m.active = nil

	if m.sessions != nil {
		if err := m.sessions.AppendHistory(ctx, *rec); err != nil {
			slog.Warn("session history append failed", "session", rec.ID, "error", err)
		}
	}
	return rec
}

func (m *Manager) persistActive(ctx context.Context) {
	if m.sessions == nil {
		return
	}
	if err := m.sessions.SaveActive(ctx, m.active); err != nil {
		slog.Warn("active session save failed", "error", err)
	}
}
