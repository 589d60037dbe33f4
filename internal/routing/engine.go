// Package routing implements the decision engine: given a normalized
// inbound event it consults the session slot, the waiting queue and the
// auto-reply rules, applies the state transition atomically, and emits the
// decisions the transport layer turns into deliveries.
package routing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/liveline-bot/liveline/internal/autoreply"
	"github.com/liveline-bot/liveline/internal/bus"
	"github.com/liveline-bot/liveline/internal/party"
	"github.com/liveline-bot/liveline/internal/queue"
	"github.com/liveline-bot/liveline/internal/session"
	"github.com/liveline-bot/liveline/internal/store"
)

// Engine routes messages between parties and the admin. All session and
// queue mutations are serialized through one mutex so that start, end and
// auto-promotion observe and update both as a single unit; the registry and
// matcher are read-mostly and keep their own finer-grained locks. No
// delivery happens under the lock; decisions are returned to the caller
// and sent after the critical section is released.
type Engine struct {
	mu       sync.Mutex
	registry *party.Registry
	waiting  *queue.Store
	sessions *session.Manager
	rules    *autoreply.Matcher
	messages store.MessageStore
	events   bus.EventPublisher // optional
}

// New creates an engine over the given collaborators. events may be nil.
func New(reg *party.Registry, waiting *queue.Store, sessions *session.Manager, rules *autoreply.Matcher, messages store.MessageStore, events bus.EventPublisher) *Engine {
	return &Engine{
		registry: reg,
		waiting:  waiting,
		sessions: sessions,
		rules:    rules,
		messages: messages,
		events:   events,
	}
}

// HandlePartyMessage routes one inbound message from a party. The message
// is archived first; if the archive write fails the whole request fails
// with no routing state touched, and the caller may safely retry the same
// event (enqueue is idempotent, forwarding is re-evaluable).
func (e *Engine) HandlePartyMessage(ctx context.Context, transportID, handle, text string, media []bus.MediaAttachment) ([]Decision, error) {
	p := e.registry.ResolveOrCreate(ctx, transportID, handle)

	rec := store.MessageRecord{
		ID:          uuid.Must(uuid.NewV7()),
		PartyID:     p.ID,
		ContentType: contentType(media),
		Text:        text,
		Timestamp:   time.Now(),
	}
	if len(media) > 0 {
		rec.FileRef = media[0].FileRef
	}

	e.mu.Lock()
	active, inSession := e.sessions.Current()
	senderIsActive := inSession && active == p.ID

	var decisions []Decision
	if senderIsActive {
		rec.SeenByAdmin = true
		if err := e.archive(ctx, rec); err != nil {
			e.mu.Unlock()
			return nil, err
		}
		decisions = append(decisions, Decision{
			Kind:    KindForwardLive,
			Party:   p,
			Content: text,
			Media:   media,
		})
	} else {
		if err := e.archive(ctx, rec); err != nil {
			e.mu.Unlock()
			return nil, err
		}
		// Not in a live exchange: queue the sender (idempotent, position
		// fixed by original enqueue time) and consult auto-reply. Policy:
		// auto-reply fires whenever the sender is not the active party,
		// including when the slot is idle.
		e.waiting.Enqueue(ctx, p.ID)
		decisions = append(decisions, Decision{
			Kind:     KindQueued,
			Party:    p,
			Position: e.waiting.Position(p.ID),
		})
		if rule, ok := e.rules.Match(text); ok {
			decisions = append(decisions, Decision{Kind: KindAutoReply, Party: p, Reply: rule})
		} else {
			decisions = append(decisions, Decision{Kind: KindNoMatch, Party: p})
		}
	}
	e.mu.Unlock()

	e.emitState(ctx)
	return decisions, nil
}

// RegisterContact resolves the sender's party record without routing any
// text, for contact-only events such as a first /start. Adopting a
// placeholder the admin opened by handle makes held messages deliverable.
func (e *Engine) RegisterContact(ctx context.Context, transportID, handle string) *store.Party {
	p := e.registry.ResolveOrCreate(ctx, transportID, handle)
	e.emitState(ctx)
	return p
}

// HandleAdminMessage routes a plain admin message: relayed to the active
// party, held when the active party is an unreachable placeholder, and an
// invalid transition when no session is active.
func (e *Engine) HandleAdminMessage(ctx context.Context, text string, media []bus.MediaAttachment) ([]Decision, error) {
	e.mu.Lock()
	activeID, inSession := e.sessions.Current()
	if !inSession {
		e.mu.Unlock()
		return []Decision{{Kind: KindInvalidTransition, Content: "no active session"}}, nil
	}

	p, ok := e.registry.Get(activeID)
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("active session references unknown party %s", activeID)
	}

	rec := store.MessageRecord{
		ID:          uuid.Must(uuid.NewV7()),
		PartyID:     p.ID,
		FromAdmin:   true,
		ContentType: contentType(media),
		Text:        text,
		SeenByAdmin: true,
		Timestamp:   time.Now(),
	}
	if len(media) > 0 {
		rec.FileRef = media[0].FileRef
	}
	if err := e.archive(ctx, rec); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	if !p.Contacted() {
		return []Decision{{Kind: KindHeld, Party: p, Content: text}}, nil
	}
	return []Decision{{Kind: KindForwardLive, Party: p, Content: text, Media: media}}, nil
}

// StartLive binds the session to the target party, resolved by handle
// (creating a placeholder when unknown, so the admin can address parties
// that never messaged). Any current session is ended first and reported.
func (e *Engine) StartLive(ctx context.Context, target string) ([]Decision, error) {
	p, err := e.registry.FindByHandle(target)
	if err != nil {
		p = e.registry.CreateByHandle(ctx, target)
	}

	e.mu.Lock()
	prev := e.sessions.Start(ctx, p.ID)
	e.mu.Unlock()

	unread := e.markSeen(ctx, p.ID)

	var decisions []Decision
	if prev != nil {
		if prevParty, ok := e.registry.Get(prev.PartyID); ok {
			decisions = append(decisions, Decision{Kind: KindSessionEnded, Party: prevParty})
		}
	}
	decisions = append(decisions, Decision{Kind: KindSessionStarted, Party: p, Unread: unread})

	e.emitState(ctx)
	return decisions, nil
}

// EndLive closes the active session. With a non-empty queue the front party
// is promoted within the same critical section and both outcomes are
// reported in order, so the transport can notify the right parties.
func (e *Engine) EndLive(ctx context.Context) ([]Decision, error) {
	e.mu.Lock()
	ended, promoted, err := e.sessions.End(ctx)
	e.mu.Unlock()

	if err != nil {
		// Reported to the admin, not fatal, no state change.
		return []Decision{{Kind: KindInvalidTransition, Content: "no active session to end"}}, nil
	}

	var decisions []Decision
	if endedParty, ok := e.registry.Get(ended.PartyID); ok {
		decisions = append(decisions, Decision{Kind: KindSessionEnded, Party: endedParty})
	} else {
		decisions = append(decisions, Decision{Kind: KindSessionEnded})
	}

	if promoted != uuid.Nil {
		if next, ok := e.registry.Get(promoted); ok {
			decisions = append(decisions, Decision{Kind: KindSessionStarted, Party: next, Unread: e.markSeen(ctx, next.ID)})
		}
	}

	e.emitState(ctx)
	return decisions, nil
}

// DropFromQueue removes a party from the waiting queue by handle.
func (e *Engine) DropFromQueue(ctx context.Context, handle string) (bool, error) {
	p, err := e.registry.FindByHandle(handle)
	if err != nil {
		return false, err
	}

	e.mu.Lock()
	removed := e.waiting.Remove(ctx, p.ID)
	e.mu.Unlock()

	if removed {
		e.emitState(ctx)
	}
	return removed, nil
}

// SetAutoReply adds or overwrites a rule. Idempotent.
func (e *Engine) SetAutoReply(ctx context.Context, keyword, reply, mediaRef string) {
	e.rules.Set(ctx, keyword, reply, mediaRef)
	e.emitState(ctx)
}

// DeleteAutoReply removes a rule; deleting an absent keyword is a no-op.
func (e *Engine) DeleteAutoReply(ctx context.Context, keyword string) bool {
	removed := e.rules.Delete(ctx, keyword)
	if removed {
		e.emitState(ctx)
	}
	return removed
}

// Broadcast produces the fan-out decision for every reachable party.
// Placeholders are skipped: they have no transport identity yet.
func (e *Engine) Broadcast(content string, media []bus.MediaAttachment) Decision {
	var targets []store.Party
	for _, p := range e.registry.All() {
		if p.Contacted() {
			targets = append(targets, p)
		}
	}
	return Decision{Kind: KindBroadcast, Content: content, Media: media, Targets: targets}
}

// HistoryByHandle returns the archived exchange with a party, oldest first
// within the window of the limit most recent messages.
func (e *Engine) HistoryByHandle(ctx context.Context, handle string, limit, offset int) (*store.Party, []store.MessageRecord, error) {
	p, err := e.registry.FindByHandle(handle)
	if err != nil {
		return nil, nil, err
	}
	if e.messages == nil {
		return p, nil, nil
	}
	recs, err := e.messages.History(ctx, p.ID, limit, offset)
	if err != nil {
		return nil, nil, fmt.Errorf("load history: %w", err)
	}
	return p, recs, nil
}

// PurgeHistory deletes the archived exchange with one party.
func (e *Engine) PurgeHistory(ctx context.Context, handle string) error {
	p, err := e.registry.FindByHandle(handle)
	if err != nil {
		return err
	}
	if e.messages == nil {
		return nil
	}
	return e.messages.PurgeParty(ctx, p.ID)
}

// PurgeAllHistory deletes the entire message archive.
func (e *Engine) PurgeAllHistory(ctx context.Context) error {
	if e.messages == nil {
		return nil
	}
	return e.messages.PurgeAll(ctx)
}

// QueueView is one waiting party with its display rank.
type QueueView struct {
	Party      store.Party `json:"party"`
	Position   int         `json:"position"`
	Unread     int         `json:"unread"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
}

// State is the engine snapshot consumed by the admin panel and the state
// subcommand.
type State struct {
	Active      *store.SessionRecord  `json:"active_session,omitempty"`
	ActiveParty *store.Party          `json:"active_party,omitempty"`
	Queue       []QueueView           `json:"queue"`
	Rules       []store.AutoReplyRule `json:"auto_reply_rules"`
	PartyCount  int                   `json:"party_count"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// QueryState returns a consistent snapshot of session, queue and rules.
func (e *Engine) QueryState(ctx context.Context) State {
	e.mu.Lock()
	active := e.sessions.Active()
	entries := e.waiting.Snapshot()
	e.mu.Unlock()

	st := State{
		Active:     active,
		Rules:      e.rules.List(),
		PartyCount: len(e.registry.All()),
		UpdatedAt:  time.Now(),
	}
	if active != nil {
		if p, ok := e.registry.Get(active.PartyID); ok {
			st.ActiveParty = p
		}
	}
	st.Queue = make([]QueueView, 0, len(entries))
	for i, entry := range entries {
		v := QueueView{Position: i + 1, EnqueuedAt: entry.EnqueuedAt}
		if p, ok := e.registry.Get(entry.PartyID); ok {
			v.Party = *p
		}
		v.Unread = e.unreadCount(ctx, entry.PartyID)
		st.Queue = append(st.Queue, v)
	}
	return st
}

func (e *Engine) archive(ctx context.Context, rec store.MessageRecord) error {
	if e.messages == nil {
		return nil
	}
	if err := e.messages.Append(ctx, rec); err != nil {
		return fmt.Errorf("archive message: %w", err)
	}
	return nil
}

func (e *Engine) markSeen(ctx context.Context, partyID uuid.UUID) int {
	if e.messages == nil {
		return 0
	}
	n, _ := e.messages.MarkSeen(ctx, partyID)
	return n
}

func (e *Engine) unreadCount(ctx context.Context, partyID uuid.UUID) int {
	if e.messages == nil {
		return 0
	}
	n, err := e.messages.UnreadCount(ctx, partyID)
	if err != nil {
		return 0
	}
	return n
}

func (e *Engine) emitState(ctx context.Context) {
	if e.events == nil {
		return
	}
	e.events.Broadcast(bus.Event{Name: bus.EventStateChanged, Payload: e.QueryState(ctx)})
}

func contentType(media []bus.MediaAttachment) string {
	if len(media) > 0 {
		return "media"
	}
	return "text"
}
