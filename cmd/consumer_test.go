package cmd

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/liveline-bot/liveline/internal/autoreply"
	"github.com/liveline-bot/liveline/internal/bus"
	"github.com/liveline-bot/liveline/internal/config"
	"github.com/liveline-bot/liveline/internal/party"
	"github.com/liveline-bot/liveline/internal/queue"
	"github.com/liveline-bot/liveline/internal/routing"
	"github.com/liveline-bot/liveline/internal/session"
)

func newTestConsumer(t *testing.T) (*consumer, *bus.MessageBus) {
	t.Helper()
	q := queue.NewStore(nil)
	engine := routing.New(
		party.NewRegistry(nil), q, session.NewManager(q, nil),
		autoreply.NewMatcher(nil), nil, nil)

	cfg := config.Default()
	cfg.Telegram.AdminIDs = config.FlexibleStringSlice{"900"}
	b := bus.New()
	return newConsumer(engine, b, cfg), b
}

// drainOutbound collects every queued outbound message without blocking.
func drainOutbound(b *bus.MessageBus) []bus.OutboundMessage {
	var out []bus.OutboundMessage
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		msg, ok := b.SubscribeOutbound(ctx)
		cancel()
		if !ok {
			return out
		}
		out = append(out, msg)
	}
}

func partyMsg(senderID, handle, text string) bus.InboundMessage {
	return bus.InboundMessage{
		Channel: "telegram", SenderID: senderID, ChatID: senderID,
		Handle: handle, Content: text,
	}
}

func adminMsg(text string) bus.InboundMessage {
	return bus.InboundMessage{
		Channel: "telegram", SenderID: "900", ChatID: "900",
		Content: text, IsAdmin: true,
	}
}

func TestPartyStartCommandGreets(t *testing.T) {
	c, b := newTestConsumer(t)
	c.handleParty(context.Background(), partyMsg("u1", "alice", "/start"))

	out := drainOutbound(b)
	if len(out) != 1 || out[0].ChatID != "u1" {
		t.Fatalf("out = %+v", out)
	}
	if out[0].Content != config.Default().Greeting {
		t.Errorf("greeting = %q", out[0].Content)
	}
}

func TestPartyMessageQueuesAndNotifies(t *testing.T) {
	c, b := newTestConsumer(t)
	c.handleParty(context.Background(), partyMsg("u1", "alice", "hello"))

	out := drainOutbound(b)
	if len(out) != 1 || out[0].ChatID != "u1" {
		t.Fatalf("out = %+v", out)
	}
	if !strings.Contains(out[0].Content, "number 1 in line") {
		t.Errorf("queue notice = %q", out[0].Content)
	}
}

func TestLiveSessionRelay(t *testing.T) {
	c, b := newTestConsumer(t)
	ctx := context.Background()

	c.handleParty(ctx, partyMsg("u1", "alice", "hello"))
	c.handleAdmin(ctx, adminMsg("/live @alice"))
	drainOutbound(b)

	// Party side forwards to the operator chat with a label.
	c.handleParty(ctx, partyMsg("u1", "alice", "my order is stuck"))
	out := drainOutbound(b)
	if len(out) != 1 || out[0].ChatID != "900" {
		t.Fatalf("forward = %+v", out)
	}
	if !strings.Contains(out[0].Content, "@alice") || !strings.Contains(out[0].Content, "my order is stuck") {
		t.Errorf("forward content = %q", out[0].Content)
	}

	// Operator side relays back to the party verbatim.
	c.handleAdmin(ctx, adminMsg("checking now"))
	out = drainOutbound(b)
	if len(out) != 1 || out[0].ChatID != "u1" || out[0].Content != "checking now" {
		t.Fatalf("relay = %+v", out)
	}
}

func TestEndPromotesAndNotifiesBothParties(t *testing.T) {
	c, b := newTestConsumer(t)
	ctx := context.Background()

	c.handleParty(ctx, partyMsg("u1", "alice", "hi"))
	c.handleAdmin(ctx, adminMsg("/live @alice"))
	c.handleParty(ctx, partyMsg("u2", "bob", "hi"))
	drainOutbound(b)

	c.handleAdmin(ctx, adminMsg("/end"))
	out := drainOutbound(b)

	byChat := map[string][]string{}
	for _, m := range out {
		byChat[m.ChatID] = append(byChat[m.ChatID], m.Content)
	}
	if len(byChat["u1"]) != 1 || !strings.Contains(byChat["u1"][0], "ended") {
		t.Errorf("alice notices = %v", byChat["u1"])
	}
	if len(byChat["u2"]) != 1 || !strings.Contains(byChat["u2"][0], "operator is with you") {
		t.Errorf("bob notices = %v", byChat["u2"])
	}
	if len(byChat["900"]) != 2 {
		t.Errorf("admin notices = %v", byChat["900"])
	}
}

func TestAdminMessageWhileIdle(t *testing.T) {
	c, b := newTestConsumer(t)
	c.handleAdmin(context.Background(), adminMsg("anyone there?"))

	out := drainOutbound(b)
	if len(out) != 1 || out[0].ChatID != "900" {
		t.Fatalf("out = %+v", out)
	}
	if !strings.Contains(out[0].Content, "No live session") {
		t.Errorf("idle notice = %q", out[0].Content)
	}
}

func TestAutoReplyCommands(t *testing.T) {
	c, b := newTestConsumer(t)
	ctx := context.Background()

	c.handleAdmin(ctx, adminMsg("/autoreply add price See our pricing page"))
	c.handleAdmin(ctx, adminMsg("/autoreply list"))
	out := drainOutbound(b)
	if len(out) != 2 {
		t.Fatalf("out = %+v", out)
	}
	if !strings.Contains(out[1].Content, `"price"`) {
		t.Errorf("list = %q", out[1].Content)
	}

	// The rule now fires for a waiting party.
	c.handleParty(ctx, partyMsg("u1", "alice", "what's the price?"))
	out = drainOutbound(b)
	if len(out) != 2 || !strings.Contains(out[1].Content, "See our pricing page") {
		t.Fatalf("party replies = %+v", out)
	}

	c.handleAdmin(ctx, adminMsg("/autoreply del price"))
	c.handleAdmin(ctx, adminMsg("/autoreply del price"))
	out = drainOutbound(b)
	if len(out) != 2 || !strings.Contains(out[1].Content, "No auto-reply") {
		t.Fatalf("delete notices = %+v", out)
	}
}

func TestBroadcastFanout(t *testing.T) {
	c, b := newTestConsumer(t)
	ctx := context.Background()

	c.handleParty(ctx, partyMsg("u1", "alice", "hi"))
	c.handleParty(ctx, partyMsg("u2", "bob", "hi"))
	c.handleAdmin(ctx, adminMsg("/live @ghost")) // placeholder, not reachable
	drainOutbound(b)

	c.handleAdmin(ctx, adminMsg("/broadcast maintenance tonight"))
	out := drainOutbound(b)

	targets := map[string]bool{}
	for _, m := range out {
		if m.Content == "maintenance tonight" {
			targets[m.ChatID] = true
		}
	}
	if !targets["u1"] || !targets["u2"] || len(targets) != 2 {
		t.Errorf("broadcast targets = %v", targets)
	}
}

func TestUnknownCommand(t *testing.T) {
	c, b := newTestConsumer(t)
	c.handleAdmin(context.Background(), adminMsg("/frobnicate"))

	out := drainOutbound(b)
	if len(out) != 1 || !strings.Contains(out[0].Content, "Unknown command") {
		t.Fatalf("out = %+v", out)
	}
}

func TestStartAdoptsPlaceholderForHeldParty(t *testing.T) {
	c, b := newTestConsumer(t)
	ctx := context.Background()

	// Operator opens a session with a party that never messaged; the
	// party's first contact is /start.
	c.engine.StartLive(ctx, "@ghost")
	c.handleParty(ctx, partyMsg("77", "ghost", "/start"))
	drainOutbound(b)

	ds, err := c.engine.HandleAdminMessage(ctx, "hello?", nil)
	if err != nil {
		t.Fatalf("HandleAdminMessage: %v", err)
	}
	if len(ds) != 1 || ds[0].Kind != routing.KindForwardLive {
		t.Fatalf("decisions = %+v, want forward_live after /start", ds)
	}
	if ds[0].Party.TransportID != "77" {
		t.Errorf("transport id = %q, want 77", ds[0].Party.TransportID)
	}
}

func TestForwardedMediaKeepsKind(t *testing.T) {
	c, b := newTestConsumer(t)
	ctx := context.Background()

	c.engine.RegisterContact(ctx, "u1", "alice")
	c.engine.StartLive(ctx, "@alice")
	drainOutbound(b)

	msg := partyMsg("u1", "alice", "watch this")
	msg.Media = []bus.MediaAttachment{{FileRef: "v-9", Kind: "video"}}
	c.handleParty(ctx, msg)

	out := drainOutbound(b)
	if len(out) != 1 || out[0].ChatID != "900" {
		t.Fatalf("out = %+v", out)
	}
	if len(out[0].Media) != 1 || out[0].Media[0].Kind != "video" || out[0].Media[0].FileRef != "v-9" {
		t.Fatalf("media = %+v, want video v-9", out[0].Media)
	}
	if !strings.Contains(out[0].Media[0].Caption, "@alice") {
		t.Errorf("caption = %q, want sender label", out[0].Media[0].Caption)
	}
}
