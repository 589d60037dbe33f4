package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/liveline-bot/liveline/internal/bus"
	"github.com/liveline-bot/liveline/internal/channels"
	"github.com/liveline-bot/liveline/internal/config"
	"github.com/liveline-bot/liveline/internal/party"
	"github.com/liveline-bot/liveline/internal/routing"
)

// consumer reads inbound messages from the bus, runs them through the
// routing engine and turns the resulting decisions into outbound
// deliveries. Config is swapped atomically on hot reload.
type consumer struct {
	engine *routing.Engine
	bus    bus.MessageRouter
	cfg    atomic.Pointer[config.Config]
}

func newConsumer(engine *routing.Engine, msgBus bus.MessageRouter, cfg *config.Config) *consumer {
	c := &consumer{engine: engine, bus: msgBus}
	c.cfg.Store(cfg)
	return c
}

// UpdateConfig installs a reloaded config. Greeting, admin list and rule
// seeds take effect on the next message; transport credentials require a
// restart.
func (c *consumer) UpdateConfig(cfg *config.Config) {
	c.cfg.Store(cfg)
}

// Run blocks until ctx is cancelled.
func (c *consumer) Run(ctx context.Context) {
	slog.Info("inbound consumer started")
	for {
		msg, ok := c.bus.ConsumeInbound(ctx)
		if !ok {
			if ctx.Err() != nil {
				slog.Info("inbound consumer stopped")
				return
			}
			continue
		}
		if msg.IsAdmin {
			c.handleAdmin(ctx, msg)
		} else {
			c.handleParty(ctx, msg)
		}
	}
}

func (c *consumer) reply(channel, chatID, text string) {
	c.bus.PublishOutbound(bus.OutboundMessage{Channel: channel, ChatID: chatID, Content: text})
}

// adminChat returns where operator notifications go. For direct Telegram
// chats the chat ID equals the user ID.
func (c *consumer) adminChat() string {
	return c.cfg.Load().Telegram.PrimaryAdmin()
}

func (c *consumer) handleParty(ctx context.Context, msg bus.InboundMessage) {
	if cmd, ok := channels.ParseCommand(msg.Content); ok && cmd.Name == "start" {
		// /start is many parties' first contact; registering it adopts a
		// placeholder the operator opened by handle, so held messages
		// become deliverable.
		c.engine.RegisterContact(ctx, msg.SenderID, msg.Handle)
		c.reply(msg.Channel, msg.ChatID, c.cfg.Load().Greeting)
		return
	}

	decisions, err := c.engine.HandlePartyMessage(ctx, msg.SenderID, msg.Handle, msg.Content, msg.Media)
	if err != nil {
		slog.Error("party message rejected", "sender", msg.SenderID, "error", err)
		c.reply(msg.Channel, msg.ChatID, "Something went wrong on our side. Please send that again.")
		return
	}

	for _, d := range decisions {
		switch d.Kind {
		case routing.KindForwardLive:
			c.forwardToAdmin(msg, d)
		case routing.KindQueued:
			c.reply(msg.Channel, msg.ChatID,
				fmt.Sprintf("You are number %d in line. The operator will reach you as soon as possible.", d.Position))
		case routing.KindAutoReply:
			out := bus.OutboundMessage{Channel: msg.Channel, ChatID: msg.ChatID, Content: d.Reply.Reply}
			if d.Reply.MediaRef != "" {
				out.Media = []bus.MediaAttachment{{FileRef: d.Reply.MediaRef, Kind: "photo"}}
				out.Content = ""
				out.Media[0].Caption = d.Reply.Reply
			}
			c.bus.PublishOutbound(out)
		case routing.KindNoMatch:
			// Queued notice already covers the sender.
		}
	}
}

// forwardToAdmin relays a live party message to the operator chat.
func (c *consumer) forwardToAdmin(msg bus.InboundMessage, d routing.Decision) {
	label := "id:" + msg.SenderID
	if d.Party != nil && d.Party.Handle != "" {
		label = "@" + d.Party.Handle
	}
	out := bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  c.adminChat(),
		Content: fmt.Sprintf("%s:\n%s", label, msg.Content),
	}
	out.Media = append([]bus.MediaAttachment(nil), msg.Media...)
	if len(out.Media) > 0 {
		out.Media[0].Caption = out.Content
		out.Content = ""
	}
	c.bus.PublishOutbound(out)
}

func (c *consumer) handleAdmin(ctx context.Context, msg bus.InboundMessage) {
	cmd, isCmd := channels.ParseCommand(msg.Content)
	if !isCmd {
		c.relayAdminText(ctx, msg)
		return
	}

	switch cmd.Name {
	case "start", "help":
		c.reply(msg.Channel, msg.ChatID, adminHelp)
	case "live":
		c.runStartLive(ctx, msg, cmd.Arg(0))
	case "end":
		c.runEndLive(ctx, msg)
	case "queue":
		c.reply(msg.Channel, msg.ChatID, renderQueue(c.engine.QueryState(ctx)))
	case "drop":
		c.runDrop(ctx, msg, cmd.Arg(0))
	case "autoreply":
		c.runAutoReply(ctx, msg, cmd)
	case "broadcast":
		c.runBroadcast(msg, cmd.Args)
	case "history":
		c.runHistory(ctx, msg, cmd)
	case "purge":
		c.runPurge(ctx, msg, cmd.Arg(0))
	case "status":
		c.reply(msg.Channel, msg.ChatID, renderStatus(c.engine.QueryState(ctx)))
	default:
		c.reply(msg.Channel, msg.ChatID, fmt.Sprintf("Unknown command /%s. Try /help.", cmd.Name))
	}
}

// relayAdminText forwards a plain operator message into the live session.
func (c *consumer) relayAdminText(ctx context.Context, msg bus.InboundMessage) {
	decisions, err := c.engine.HandleAdminMessage(ctx, msg.Content, msg.Media)
	if err != nil {
		slog.Error("admin message rejected", "error", err)
		c.reply(msg.Channel, msg.ChatID, "Could not record that message, it was not delivered.")
		return
	}
	for _, d := range decisions {
		switch d.Kind {
		case routing.KindForwardLive:
			out := bus.OutboundMessage{
				Channel: msg.Channel,
				ChatID:  d.Party.TransportID,
				Content: msg.Content,
			}
			out.Media = append([]bus.MediaAttachment(nil), msg.Media...)
			c.bus.PublishOutbound(out)
		case routing.KindHeld:
			c.reply(msg.Channel, msg.ChatID,
				fmt.Sprintf("%s has not contacted the bot yet. Your message is archived and they'll see a fresh conversation when they do.", displayParty(d.Party)))
		case routing.KindInvalidTransition:
			c.reply(msg.Channel, msg.ChatID, "No live session. Use /live @handle or /queue to pick someone.")
		}
	}
}

func (c *consumer) runStartLive(ctx context.Context, msg bus.InboundMessage, target string) {
	if target == "" {
		c.reply(msg.Channel, msg.ChatID, "Usage: /live @handle")
		return
	}
	decisions, err := c.engine.StartLive(ctx, target)
	if err != nil {
		c.reply(msg.Channel, msg.ChatID, "Could not start session: "+err.Error())
		return
	}
	c.announceSessionChanges(msg.Channel, msg.ChatID, decisions)
}

func (c *consumer) runEndLive(ctx context.Context, msg bus.InboundMessage) {
	decisions, err := c.engine.EndLive(ctx)
	if err != nil {
		c.reply(msg.Channel, msg.ChatID, "Could not end session: "+err.Error())
		return
	}
	c.announceSessionChanges(msg.Channel, msg.ChatID, decisions)
}

// announceSessionChanges notifies both sides of every session transition in
// a decision list: the admin sees what changed, affected parties learn they
// are connected or released.
func (c *consumer) announceSessionChanges(channel, adminChatID string, decisions []routing.Decision) {
	for _, d := range decisions {
		switch d.Kind {
		case routing.KindSessionStarted:
			c.reply(channel, adminChatID,
				fmt.Sprintf("Live with %s (%d unread).", displayParty(d.Party), d.Unread))
			if d.Party != nil && d.Party.Contacted() {
				c.reply(channel, d.Party.TransportID, "The operator is with you now.")
			}
		case routing.KindSessionEnded:
			c.reply(channel, adminChatID, fmt.Sprintf("Session with %s ended.", displayParty(d.Party)))
			if d.Party != nil && d.Party.Contacted() {
				c.reply(channel, d.Party.TransportID,
					"The live session has ended. Message us again any time.")
			}
		case routing.KindInvalidTransition:
			c.reply(channel, adminChatID, "There is no active session to end.")
		}
	}
}

func (c *consumer) runDrop(ctx context.Context, msg bus.InboundMessage, target string) {
	if target == "" {
		c.reply(msg.Channel, msg.ChatID, "Usage: /drop @handle")
		return
	}
	removed, err := c.engine.DropFromQueue(ctx, target)
	switch {
	case errors.Is(err, party.ErrNotFound):
		c.reply(msg.Channel, msg.ChatID, fmt.Sprintf("No party named %s.", target))
	case err != nil:
		c.reply(msg.Channel, msg.ChatID, "Drop failed: "+err.Error())
	case removed:
		c.reply(msg.Channel, msg.ChatID, fmt.Sprintf("%s removed from the queue.", target))
	default:
		c.reply(msg.Channel, msg.ChatID, fmt.Sprintf("%s is not in the queue.", target))
	}
}

func (c *consumer) runAutoReply(ctx context.Context, msg bus.InboundMessage, cmd channels.Command) {
	switch cmd.Arg(0) {
	case "add":
		keyword, reply := cmd.Arg(1), cmd.Rest(2)
		if keyword == "" || reply == "" {
			c.reply(msg.Channel, msg.ChatID, "Usage: /autoreply add <keyword> <reply text>")
			return
		}
		mediaRef := ""
		if len(msg.Media) > 0 {
			mediaRef = msg.Media[0].FileRef
		}
		c.engine.SetAutoReply(ctx, keyword, reply, mediaRef)
		c.reply(msg.Channel, msg.ChatID, fmt.Sprintf("Auto-reply for %q saved.", keyword))
	case "del":
		keyword := cmd.Arg(1)
		if keyword == "" {
			c.reply(msg.Channel, msg.ChatID, "Usage: /autoreply del <keyword>")
			return
		}
		if c.engine.DeleteAutoReply(ctx, keyword) {
			c.reply(msg.Channel, msg.ChatID, fmt.Sprintf("Auto-reply for %q removed.", keyword))
		} else {
			c.reply(msg.Channel, msg.ChatID, fmt.Sprintf("No auto-reply for %q.", keyword))
		}
	case "list", "":
		st := c.engine.QueryState(ctx)
		if len(st.Rules) == 0 {
			c.reply(msg.Channel, msg.ChatID, "No auto-reply rules configured.")
			return
		}
		var b strings.Builder
		for _, r := range st.Rules {
			fmt.Fprintf(&b, "%d. %q -> %s", r.Position+1, r.Keyword, channels.Truncate(r.Reply, 80))
			if r.MediaRef != "" {
				b.WriteString(" [photo]")
			}
			b.WriteByte('\n')
		}
		c.reply(msg.Channel, msg.ChatID, strings.TrimRight(b.String(), "\n"))
	default:
		c.reply(msg.Channel, msg.ChatID, "Usage: /autoreply add|del|list")
	}
}

func (c *consumer) runBroadcast(msg bus.InboundMessage, text string) {
	if text == "" && len(msg.Media) == 0 {
		c.reply(msg.Channel, msg.ChatID, "Usage: /broadcast <message>")
		return
	}
	d := c.engine.Broadcast(text, msg.Media)
	for _, target := range d.Targets {
		out := bus.OutboundMessage{Channel: msg.Channel, ChatID: target.TransportID, Content: text}
		out.Media = append([]bus.MediaAttachment(nil), msg.Media...)
		if len(out.Media) > 0 {
			out.Media[0].Caption = text
			out.Content = ""
		}
		c.bus.PublishOutbound(out)
	}
	c.reply(msg.Channel, msg.ChatID, fmt.Sprintf("Broadcast queued for %d parties.", len(d.Targets)))
}

func (c *consumer) runHistory(ctx context.Context, msg bus.InboundMessage, cmd channels.Command) {
	target := cmd.Arg(0)
	if target == "" {
		c.reply(msg.Channel, msg.ChatID, "Usage: /history @handle")
		return
	}
	p, recs, err := c.engine.HistoryByHandle(ctx, target, 20, 0)
	if errors.Is(err, party.ErrNotFound) {
		c.reply(msg.Channel, msg.ChatID, fmt.Sprintf("No party named %s.", target))
		return
	}
	if err != nil {
		c.reply(msg.Channel, msg.ChatID, "History unavailable: "+err.Error())
		return
	}
	if len(recs) == 0 {
		c.reply(msg.Channel, msg.ChatID, fmt.Sprintf("No archived messages with %s.", displayParty(p)))
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Last %d with %s:\n", len(recs), displayParty(p))
	for _, r := range recs {
		who := "them"
		if r.FromAdmin {
			who = "you"
		}
		body := r.Text
		if body == "" && r.FileRef != "" {
			body = "[media]"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", r.Timestamp.Format(time.Stamp), who, channels.Truncate(body, 120))
	}
	c.reply(msg.Channel, msg.ChatID, strings.TrimRight(b.String(), "\n"))
}

func (c *consumer) runPurge(ctx context.Context, msg bus.InboundMessage, target string) {
	switch {
	case target == "":
		c.reply(msg.Channel, msg.ChatID, "Usage: /purge @handle | /purge all")
	case target == "all":
		if err := c.engine.PurgeAllHistory(ctx); err != nil {
			c.reply(msg.Channel, msg.ChatID, "Purge failed: "+err.Error())
			return
		}
		c.reply(msg.Channel, msg.ChatID, "Message archive purged.")
	default:
		err := c.engine.PurgeHistory(ctx, target)
		if errors.Is(err, party.ErrNotFound) {
			c.reply(msg.Channel, msg.ChatID, fmt.Sprintf("No party named %s.", target))
			return
		}
		if err != nil {
			c.reply(msg.Channel, msg.ChatID, "Purge failed: "+err.Error())
			return
		}
		c.reply(msg.Channel, msg.ChatID, fmt.Sprintf("Archive with %s purged.", target))
	}
}

