// Package party implements the identity registry: the set of known
// conversational counterparts, indexed by transport id and by handle.
package party

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/liveline-bot/liveline/internal/store"
)

// ErrNotFound is returned by handle lookups with no resolvable mapping.
var ErrNotFound = errors.New("party not found")

// Registry tracks known parties. It is read-mostly and safe for concurrent
// use; it does not participate in the session/queue exclusivity lock.
type Registry struct {
	mu          sync.RWMutex
	byID        map[uuid.UUID]*store.Party
	byTransport map[string]*store.Party
	parties     store.PartyStore
}

// NewRegistry creates a registry backed by the given party store.
func NewRegistry(parties store.PartyStore) *Registry {
	return &Registry{
		byID:        make(map[uuid.UUID]*store.Party),
		byTransport: make(map[string]*store.Party),
		parties:     parties,
	}
}

// Load populates the registry from the store. Called once on startup.
func (r *Registry) Load(ctx context.Context) error {
	list, err := r.parties.List(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range list {
		p := list[i]
		r.byID[p.ID] = &p
		if p.TransportID != "" {
			r.byTransport[p.TransportID] = &p
		}
	}
	return nil
}

// ResolveOrCreate returns the party for a transport id, creating it on first
// contact. A non-empty handle updates the stored handle. A placeholder party
// previously created by handle is adopted when that handle first shows up
// with a real transport id (the original admin-addressed-by-handle flow).
// Never fails from the caller's perspective; persistence errors are logged
// and the in-memory party is still returned.
func (r *Registry) ResolveOrCreate(ctx context.Context, transportID, handle string) *store.Party {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	if p, ok := r.byTransport[transportID]; ok {
		p.LastSeen = now
		if handle != "" && p.Handle != handle {
			p.Handle = handle
		}
		r.persist(ctx, p)
		return p
	}

	// Adopt a pending placeholder with this handle.
	if handle != "" {
		if p := r.findByHandleLocked(handle); p != nil && p.TransportID == "" {
			p.TransportID = transportID
			p.Handle = handle
			p.LastSeen = now
			p.ContactedAt = &now
			r.byTransport[transportID] = p
			r.persist(ctx, p)
			return p
		}
	}

	p := &store.Party{
		ID:          uuid.Must(uuid.NewV7()),
		TransportID: transportID,
		Handle:      handle,
		FirstSeen:   now,
		LastSeen:    now,
		ContactedAt: &now,
	}
	r.byID[p.ID] = p
	r.byTransport[transportID] = p
	r.persist(ctx, p)
	return p
}

// FindByHandle looks a party up by display handle, case-insensitively.
// A leading "@" is ignored.
func (r *Registry) FindByHandle(handle string) (*store.Party, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p := r.findByHandleLocked(handle); p != nil {
		return p, nil
	}
	return nil, ErrNotFound
}

// CreateByHandle creates a placeholder party for an admin-initiated session
// with a handle that has never contacted the bot.
func (r *Registry) CreateByHandle(ctx context.Context, handle string) *store.Party {
	handle = strings.TrimPrefix(handle, "@")

	r.mu.Lock()
	defer r.mu.Unlock()

	if p := r.findByHandleLocked(handle); p != nil {
		return p
	}

	now := time.Now()
	p := &store.Party{
		ID:        uuid.Must(uuid.NewV7()),
		Handle:    handle,
		FirstSeen: now,
		LastSeen:  now,
	}
	r.byID[p.ID] = p
	r.persist(ctx, p)
	return p
}

// Get returns a party by internal id.
func (r *Registry) Get(id uuid.UUID) (*store.Party, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	return p, ok
}

// All returns a snapshot of every known party.
func (r *Registry) All() []store.Party {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]store.Party, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, *p)
	}
	return out
}

// Touch refreshes a party's last-activity timestamp (outbound sends).
func (r *Registry) Touch(ctx context.Context, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.byID[id]; ok {
		p.LastSeen = time.Now()
		r.persist(ctx, p)
	}
}

func (r *Registry) findByHandleLocked(handle string) *store.Party {
	handle = strings.TrimPrefix(handle, "@")
	for _, p := range r.byID {
		if strings.EqualFold(p.Handle, handle) {
			return p
		}
	}
	return nil
}

func (r *Registry) persist(ctx context.Context, p *store.Party) {
	if r.parties == nil {
		return
	}
	if err := r.parties.Upsert(ctx, p); err != nil {
		slog.Warn("party upsert failed", "party", p.ID, "error", err)
	}
}
