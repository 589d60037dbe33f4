package bus

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestInboundRoundTrip(t *testing.T) {
	b := New()
	b.PublishInbound(InboundMessage{Channel: "telegram", SenderID: "u1", Content: "hi"})

	msg, ok := b.ConsumeInbound(context.Background())
	if !ok || msg.SenderID != "u1" || msg.Content != "hi" {
		t.Fatalf("got (%+v, %v)", msg, ok)
	}
}

func TestConsumeInbound_CancelledContext(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, ok := b.ConsumeInbound(ctx); ok {
		t.Fatal("expected ok=false on cancelled context")
	}
}

func TestPublish_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	b := New()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < defaultQueueSize+10; i++ {
			b.PublishOutbound(OutboundMessage{ChatID: fmt.Sprintf("%d", i)})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on full queue")
	}
}

func TestBroadcastSubscribers(t *testing.T) {
	b := New()
	var got []string
	b.Subscribe("a", func(ev Event) { got = append(got, "a:"+ev.Name) })
	b.Subscribe("b", func(ev Event) { got = append(got, "b:"+ev.Name) })

	b.Broadcast(Event{Name: EventStateChanged})
	if len(got) != 2 {
		t.Fatalf("delivered to %d subscribers, want 2", len(got))
	}

	b.Unsubscribe("a")
	got = nil
	b.Broadcast(Event{Name: EventShutdown})
	if len(got) != 1 || got[0] != "b:"+EventShutdown {
		t.Fatalf("after unsubscribe: %v", got)
	}
}

func TestDedupeCache(t *testing.T) {
	c := NewDedupeCache(time.Hour, 100)

	if c.Seen("upd-1") {
		t.Error("first observation reported as seen")
	}
	if !c.Seen("upd-1") {
		t.Error("second observation not deduplicated")
	}
	if c.Seen("") {
		t.Error("empty key must never dedupe")
	}
}

func TestDedupeCache_Expiry(t *testing.T) {
	c := NewDedupeCache(10*time.Millisecond, 100)
	c.Seen("upd-1")
	time.Sleep(20 * time.Millisecond)
	if c.Seen("upd-1") {
		t.Error("expired entry still deduplicated")
	}
}

func TestDedupeCache_CapBounded(t *testing.T) {
	c := NewDedupeCache(time.Hour, 10)
	for i := 0; i < 50; i++ {
		c.Seen(fmt.Sprintf("upd-%d", i))
	}
	if n := len(c.seen); n > 10 {
		t.Fatalf("cache grew to %d entries, cap is 10", n)
	}
}
