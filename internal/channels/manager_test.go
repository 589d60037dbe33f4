package channels

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/liveline-bot/liveline/internal/bus"
)

// stubChannel records sent messages without touching a real transport.
type stubChannel struct {
	*BaseChannel
	mu   sync.Mutex
	sent []bus.OutboundMessage
}

func newStubChannel(name string, msgBus *bus.MessageBus) *stubChannel {
	return &stubChannel{BaseChannel: NewBaseChannel(name, msgBus)}
}

func (s *stubChannel) Start(ctx context.Context) error { s.SetRunning(true); return nil }
func (s *stubChannel) Stop(ctx context.Context) error  { s.SetRunning(false); return nil }

func (s *stubChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *stubChannel) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestDispatchOutboundRoutesToChannel(t *testing.T) {
	b := bus.New()
	m := NewManager(b)
	ch := newStubChannel("stub", b)
	m.Register(ch)

	ctx := context.Background()
	if err := m.StartAll(ctx); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	defer m.StopAll(ctx)

	b.PublishOutbound(bus.OutboundMessage{Channel: "stub", ChatID: "1", Content: "hi"})

	deadline := time.After(2 * time.Second)
	for ch.sentCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("message never dispatched")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStopAllWithOutboundInFlight(t *testing.T) {
	b := bus.New()
	m := NewManager(b)
	m.Register(newStubChannel("stub", b))

	ctx := context.Background()
	if err := m.StartAll(ctx); err != nil {
		t.Fatalf("StartAll: %v", err)
	}

	// Keep the dispatcher busy with messages while shutting down, so the
	// stop path races a dispatch that needs the manager's read lock.
	for i := 0; i < 64; i++ {
		b.PublishOutbound(bus.OutboundMessage{Channel: "stub", ChatID: "1", Content: "x"})
		b.PublishOutbound(bus.OutboundMessage{Channel: "nowhere", ChatID: "1", Content: "x"})
	}

	done := make(chan struct{})
	go func() {
		m.StopAll(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("StopAll did not return")
	}
}
