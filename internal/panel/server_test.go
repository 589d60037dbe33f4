package panel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/liveline-bot/liveline/internal/autoreply"
	"github.com/liveline-bot/liveline/internal/config"
	"github.com/liveline-bot/liveline/internal/party"
	"github.com/liveline-bot/liveline/internal/queue"
	"github.com/liveline-bot/liveline/internal/routing"
	"github.com/liveline-bot/liveline/internal/session"
)

func newTestServer(token string) (*Server, *routing.Engine) {
	q := queue.NewStore(nil)
	engine := routing.New(
		party.NewRegistry(nil), q, session.NewManager(q, nil),
		autoreply.NewMatcher(nil), nil, nil)
	cfg := config.PanelConfig{Host: "127.0.0.1", Port: 0, Token: token}
	return NewServer(cfg, engine, nil), engine
}

func TestHandleState(t *testing.T) {
	srv, engine := newTestServer("")
	ctx := context.Background()
	engine.HandlePartyMessage(ctx, "u1", "alice", "hi", nil)
	engine.StartLive(ctx, "alice")
	engine.HandlePartyMessage(ctx, "u2", "bob", "hi", nil)

	ts := httptest.NewServer(srv.BuildMux())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/state")
	if err != nil {
		t.Fatalf("GET /state: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var st routing.State
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.ActiveParty == nil || st.ActiveParty.Handle != "alice" {
		t.Errorf("active = %+v", st.ActiveParty)
	}
	if len(st.Queue) != 1 || st.Queue[0].Party.Handle != "bob" {
		t.Errorf("queue = %+v", st.Queue)
	}
}

func TestBearerAuth(t *testing.T) {
	srv, _ := newTestServer("sekret")
	ts := httptest.NewServer(srv.BuildMux())
	defer ts.Close()

	// Health stays open.
	if resp, _ := http.Get(ts.URL + "/health"); resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d", resp.StatusCode)
	}

	// Missing token rejected.
	if resp, _ := http.Get(ts.URL + "/state"); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated /state status = %d", resp.StatusCode)
	}

	// Header form accepted.
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/state", nil)
	req.Header.Set("Authorization", "Bearer sekret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("authorized /state status = %d", resp.StatusCode)
	}

	// Query form accepted (WebSocket dials cannot set headers).
	if resp, _ := http.Get(ts.URL + "/state?token=sekret"); resp.StatusCode != http.StatusOK {
		t.Errorf("query-token /state status = %d", resp.StatusCode)
	}
	if resp, _ := http.Get(ts.URL + "/state?token=wrong"); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad query-token /state status = %d", resp.StatusCode)
	}
}
