package bus

import "context"

// InboundMessage represents a message received from a transport channel,
// normalized so the routing engine never parses transport payloads.
type InboundMessage struct {
	Channel  string            `json:"channel"`
	SenderID string            `json:"sender_id"`           // transport account id of the sender
	ChatID   string            `json:"chat_id"`             // where replies to this sender go
	Handle   string            `json:"handle,omitempty"`    // display handle (e.g. telegram username)
	Content  string            `json:"content"`
	Media    []MediaAttachment `json:"media,omitempty"`
	IsAdmin  bool              `json:"is_admin,omitempty"`  // sender is an operator
	UpdateID string            `json:"update_id,omitempty"` // transport update id, used for dedupe
}

// OutboundMessage represents a message to be delivered by a channel.
type OutboundMessage struct {
	Channel string            `json:"channel"`
	ChatID  string            `json:"chat_id"`
	Content string            `json:"content"`
	Media   []MediaAttachment `json:"media,omitempty"`
}

// MediaAttachment is a typed media file reference. The kind travels with
// the reference so a file received as a voice note is re-sent as one; the
// transport rejects a file id delivered through the wrong method.
type MediaAttachment struct {
	FileRef string `json:"file_ref"`       // transport file id or URL
	Kind    string `json:"kind,omitempty"` // "photo", "video", "voice", "audio", "document", "video_note", "sticker"
	Caption string `json:"caption,omitempty"`
}

// Event is a server-side event broadcast to panel subscribers.
type Event struct {
	Name    string      `json:"name"`
	Payload interface{} `json:"payload,omitempty"`
}

// Event names emitted by the routing loop.
const (
	EventStateChanged = "state"
	EventShutdown     = "shutdown"
)

// EventHandler handles a broadcast event.
type EventHandler func(Event)

// EventPublisher abstracts event broadcast + subscription.
// Used by the panel server to decouple from the concrete MessageBus.
type EventPublisher interface {
	Subscribe(id string, handler EventHandler)
	Unsubscribe(id string)
	Broadcast(event Event)
}

// MessageRouter abstracts inbound/outbound message flow between channels
// and the routing engine.
type MessageRouter interface {
	PublishInbound(msg InboundMessage)
	ConsumeInbound(ctx context.Context) (InboundMessage, bool)
	PublishOutbound(msg OutboundMessage)
	SubscribeOutbound(ctx context.Context) (OutboundMessage, bool)
}
