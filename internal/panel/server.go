// Package panel serves the local operator panel: a JSON snapshot of the
// live session, waiting queue and rules, plus a WebSocket stream of state
// change events for dashboards that want push updates.
package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/liveline-bot/liveline/internal/bus"
	"github.com/liveline-bot/liveline/internal/config"
	"github.com/liveline-bot/liveline/internal/routing"
)

// Server is the panel HTTP/WebSocket server.
type Server struct {
	cfg      config.PanelConfig
	engine   *routing.Engine
	eventPub bus.EventPublisher

	upgrader websocket.Upgrader
	clients  map[string]*client
	mu       sync.RWMutex

	httpServer *http.Server
	mux        *http.ServeMux
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan bus.Event
}

// NewServer creates a panel server. eventPub feeds the /ws stream.
func NewServer(cfg config.PanelConfig, engine *routing.Engine, eventPub bus.EventPublisher) *Server {
	s := &Server{
		cfg:      cfg,
		engine:   engine,
		eventPub: eventPub,
		clients:  make(map[string]*client),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// The panel binds to loopback; browser dashboards connect from
		// file:// or localhost origins.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	return s
}

// BuildMux creates and caches the HTTP mux with all routes registered.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/state", s.withAuth(s.handleState))
	mux.HandleFunc("/ws", s.withAuth(s.handleWebSocket))
	s.mux = mux
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	mux := s.BuildMux()

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	slog.Info("panel starting", "addr", addr)

	if s.eventPub != nil {
		s.eventPub.Subscribe("panel", s.fanout)
		defer s.eventPub.Unsubscribe("panel")
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("panel server: %w", err)
	}
	return nil
}

// withAuth gates a handler behind the bearer token. An empty configured
// token disables auth.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Token != "" {
			got := r.Header.Get("Authorization")
			// Browsers cannot set headers on WebSocket dials; accept the
			// token as a query parameter there.
			if got == "" {
				got = "Bearer " + r.URL.Query().Get("token")
			}
			if got != "Bearer "+s.cfg.Token {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// handleState returns the full routing state snapshot.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.engine.QueryState(r.Context())); err != nil {
		slog.Error("panel state encode failed", "error", err)
	}
}

// handleWebSocket upgrades the connection and streams state events. The
// current snapshot is sent immediately so clients need no extra fetch.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan bus.Event, 16),
	}
	s.registerClient(c)
	defer func() {
		s.unregisterClient(c)
		conn.Close()
	}()

	c.send <- bus.Event{Name: bus.EventStateChanged, Payload: s.engine.QueryState(r.Context())}

	// Reader only consumes control frames; clients never send data.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for ev := range c.send {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
		if ev.Name == bus.EventShutdown {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		}
	}
}

// fanout pushes a bus event to every connected client. Slow clients drop
// events rather than stall the routing loop.
func (s *Server) fanout(ev bus.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		select {
		case c.send <- ev:
		default:
			slog.Warn("panel client event dropped", "client", c.id)
		}
	}
}

func (s *Server) registerClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.id] = c
	slog.Debug("panel client connected", "client", c.id, "total", len(s.clients))
}

func (s *Server) unregisterClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.id]; ok {
		delete(s.clients, c.id)
		close(c.send)
	}
	slog.Debug("panel client disconnected", "client", c.id, "total", len(s.clients))
}
