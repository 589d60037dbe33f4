// Package reminder periodically sends the admin a digest of the waiting
// queue, so parties left waiting are not forgotten between sessions.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adhocore/gronx"

	"github.com/liveline-bot/liveline/internal/bus"
	"github.com/liveline-bot/liveline/internal/routing"
)

// Scheduler runs the queue digest on a cron schedule.
type Scheduler struct {
	expr      string
	engine    *routing.Engine
	bus       *bus.MessageBus
	channel   string
	adminChat string
}

// New creates a scheduler. An empty cron expression disables the digest;
// an invalid one is an error.
func New(expr string, engine *routing.Engine, msgBus *bus.MessageBus, channel, adminChat string) (*Scheduler, error) {
	if expr != "" && !gronx.New().IsValid(expr) {
		return nil, fmt.Errorf("invalid reminder cron expression %q", expr)
	}
	return &Scheduler{
		expr:      expr,
		engine:    engine,
		bus:       msgBus,
		channel:   channel,
		adminChat: adminChat,
	}, nil
}

// Run blocks until ctx is cancelled, firing the digest at each tick.
func (s *Scheduler) Run(ctx context.Context) {
	if s.expr == "" || s.adminChat == "" {
		slog.Info("queue reminder disabled")
		return
	}
	slog.Info("queue reminder started", "cron", s.expr)

	for {
		next, err := gronx.NextTick(s.expr, false)
		if err != nil {
			slog.Error("reminder schedule failed", "cron", s.expr, "error", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
			s.fire(ctx)
		}
	}
}

// fire sends one digest. Quiet when the queue is empty.
func (s *Scheduler) fire(ctx context.Context) {
	st := s.engine.QueryState(ctx)
	if len(st.Queue) == 0 {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d waiting:\n", len(st.Queue))
	for _, v := range st.Queue {
		waited := time.Since(v.EnqueuedAt).Round(time.Minute)
		fmt.Fprintf(&b, "%d. %s (%d unread, waiting %s)\n",
			v.Position, displayName(v.Party.Handle, v.Party.TransportID), v.Unread, waited)
	}

	slog.Debug("queue digest sent", "waiting", len(st.Queue))
	s.bus.PublishOutbound(bus.OutboundMessage{
		Channel: s.channel,
		ChatID:  s.adminChat,
		Content: strings.TrimRight(b.String(), "\n"),
	})
}

func displayName(handle, transportID string) string {
	if handle != "" {
		return "@" + handle
	}
	return "id:" + transportID
}
