package routing

import (
	"github.com/liveline-bot/liveline/internal/bus"
	"github.com/liveline-bot/liveline/internal/store"
)

// Kind tags a routing decision.
type Kind string

const (
	// KindForwardLive relays a message across the live session, in either
	// direction. The only path that bypasses queueing and auto-reply.
	KindForwardLive Kind = "forward_live"
	// KindQueued reports that the sender was placed (or already sat) in the
	// waiting queue.
	KindQueued Kind = "queued"
	// KindAutoReply carries a scripted reply for the sender.
	KindAutoReply Kind = "auto_reply"
	// KindSessionStarted reports a new live session binding.
	KindSessionStarted Kind = "session_started"
	// KindSessionEnded reports a closed live session.
	KindSessionEnded Kind = "session_ended"
	// KindInvalidTransition reports an admin action that is a no-op in the
	// current state (ending with no active session, messaging while idle).
	KindInvalidTransition Kind = "invalid_transition"
	// KindNoMatch reports that no auto-reply rule matched the text.
	KindNoMatch Kind = "no_match"
	// KindHeld reports an admin message archived for a placeholder party
	// that cannot be reached until it first contacts the bot.
	KindHeld Kind = "held"
	// KindBroadcast carries a fan-out to every reachable party.
	KindBroadcast Kind = "broadcast"
)

// Decision is one routing outcome. A single inbound event may produce
// several (e.g. Queued plus AutoReply, or SessionEnded plus SessionStarted
// when auto-promotion fires); the order is the delivery order.
type Decision struct {
	Kind     Kind
	Party    *store.Party          // subject party, when one exists
	Reply    store.AutoReplyRule   // set for KindAutoReply
	Position int                   // 1-based queue rank, set for KindQueued
	Unread   int                   // pending unseen messages, set for KindSessionStarted
	Content  string                // text payload for forward/broadcast
	Media    []bus.MediaAttachment // typed file refs for forward/broadcast
	Targets  []store.Party         // set for KindBroadcast
}
