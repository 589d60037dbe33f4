// Package autoreply evaluates inbound text against keyword rules and picks
// the scripted reply to send when the sender is outside a live session.
package autoreply

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/liveline-bot/liveline/internal/store"
)

// Matcher holds the ordered rule list. Match priority is insertion order:
// the first rule whose keyword appears in the text wins, so behavior stays
// reproducible regardless of how rules were stored. Read-mostly; safe for
// concurrent use independent of the routing lock.
type Matcher struct {
	mu    sync.RWMutex
	rules []store.AutoReplyRule // priority order
	rs    store.RuleStore
}

// NewMatcher creates a matcher backed by the given rule store.
func NewMatcher(rs store.RuleStore) *Matcher {
	return &Matcher{rs: rs}
}

// Load populates the rule list from the store in priority order.
func (m *Matcher) Load(ctx context.Context) error {
	list, err := m.rs.List(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.rules = list
	m.mu.Unlock()
	return nil
}

// Match returns the first rule whose keyword occurs in text,
// case-insensitively. The second return is false for empty text or when no
// keyword matches. Pure with respect to routing state.
func (m *Matcher) Match(text string) (store.AutoReplyRule, bool) {
	if text == "" {
		return store.AutoReplyRule{}, false
	}

	lower := strings.ToLower(text)

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rules {
		if strings.Contains(lower, strings.ToLower(r.Keyword)) {
			return r, true
		}
	}
	return store.AutoReplyRule{}, false
}

// Set adds or overwrites a rule. An existing keyword keeps its priority
// position; a new keyword is appended last. Always succeeds idempotently.
func (m *Matcher) Set(ctx context.Context, keyword, reply, mediaRef string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.rules {
		if strings.EqualFold(r.Keyword, keyword) {
			m.rules[i].Reply = reply
			if mediaRef != "" {
				m.rules[i].MediaRef = mediaRef
			}
			m.persist(ctx, m.rules[i])
			return
		}
	}

	r := store.AutoReplyRule{
		Keyword:  keyword,
		Reply:    reply,
		MediaRef: mediaRef,
		Position: len(m.rules),
	}
	m.rules = append(m.rules, r)
	m.persist(ctx, r)
}

// Delete removes a rule by keyword. Deleting an absent keyword is a no-op,
// not an error. Returns whether a rule was removed.
func (m *Matcher) Delete(ctx context.Context, keyword string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.rules {
		if strings.EqualFold(r.Keyword, keyword) {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			if m.rs != nil {
				if err := m.rs.Delete(ctx, r.Keyword); err != nil {
					slog.Warn("rule delete failed", "keyword", r.Keyword, "error", err)
				}
			}
			return true
		}
	}
	return false
}

// List returns the rules in priority order.
func (m *Matcher) List() []store.AutoReplyRule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]store.AutoReplyRule, len(m.rules))
	copy(out, m.rules)
	return out
}

func (m *Matcher) persist(ctx context.Context, r store.AutoReplyRule) {
	if m.rs == nil {
		return
	}
	if err := m.rs.Upsert(ctx, r); err != nil {
		slog.Warn("rule upsert failed", "keyword", r.Keyword, "error", err)
	}
}
