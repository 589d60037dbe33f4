package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/liveline-bot/liveline/internal/store"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "liveline.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPartyStore_UpsertAndList(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	ps := NewPartyStore(db)

	now := time.Now().UTC().Truncate(time.Microsecond)
	placeholder := &store.Party{ID: uuid.New(), Handle: "ghost", FirstSeen: now, LastSeen: now}
	if err := ps.Upsert(ctx, placeholder); err != nil {
		t.Fatalf("Upsert placeholder: %v", err)
	}

	// First contact: the placeholder gains a transport identity.
	contacted := now.Add(time.Minute)
	placeholder.TransportID = "t-99"
	placeholder.LastSeen = contacted
	placeholder.ContactedAt = &contacted
	if err := ps.Upsert(ctx, placeholder); err != nil {
		t.Fatalf("Upsert adoption: %v", err)
	}

	got, err := ps.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	p := got[0]
	if p.TransportID != "t-99" || !p.Contacted() {
		t.Errorf("adoption not persisted: %+v", p)
	}
	if p.ContactedAt == nil || !p.ContactedAt.Equal(contacted) {
		t.Errorf("contacted_at = %v, want %v", p.ContactedAt, contacted)
	}
	if !p.FirstSeen.Equal(now) {
		t.Errorf("first_seen = %v, want %v", p.FirstSeen, now)
	}
}

func TestSessionStore_ActiveSlot(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	ps := NewPartyStore(db)
	ss := NewSessionStore(db)

	now := time.Now().UTC().Truncate(time.Microsecond)
	party := &store.Party{ID: uuid.New(), TransportID: "t-1", FirstSeen: now, LastSeen: now}
	if err := ps.Upsert(ctx, party); err != nil {
		t.Fatalf("Upsert party: %v", err)
	}

	if got, err := ss.LoadActive(ctx); err != nil || got != nil {
		t.Fatalf("LoadActive on empty db = (%v, %v)", got, err)
	}

	rec := store.SessionRecord{ID: uuid.New(), PartyID: party.ID, StartedAt: now}
	if err := ss.SaveActive(ctx, &rec); err != nil {
		t.Fatalf("SaveActive: %v", err)
	}
	got, err := ss.LoadActive(ctx)
	if err != nil {
		t.Fatalf("LoadActive: %v", err)
	}
	if got == nil || got.ID != rec.ID || got.PartyID != party.ID {
		t.Fatalf("LoadActive = %+v, want %+v", got, rec)
	}

	// End the session: slot cleared, record moves to history.
	ended := now.Add(time.Hour)
	rec.EndedAt = &ended
	if err := ss.SaveActive(ctx, nil); err != nil {
		t.Fatalf("SaveActive(nil): %v", err)
	}
	if err := ss.AppendHistory(ctx, rec); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}
	if got, err := ss.LoadActive(ctx); err != nil || got != nil {
		t.Fatalf("slot not cleared: (%v, %v)", got, err)
	}
	hist, err := ss.History(ctx, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 || hist[0].ID != rec.ID || hist[0].EndedAt == nil {
		t.Fatalf("history = %+v", hist)
	}
}

func TestQueueStore_OrderAndIdempotency(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	ps := NewPartyStore(db)
	qs := NewQueueStore(db)

	now := time.Now().UTC().Truncate(time.Microsecond)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		p := &store.Party{ID: uuid.New(), TransportID: uuid.NewString(), FirstSeen: now, LastSeen: now}
		if err := ps.Upsert(ctx, p); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		ids = append(ids, p.ID)
		if err := qs.Insert(ctx, store.QueueEntry{PartyID: p.ID, Seq: uint64(i + 1), EnqueuedAt: now}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	// Duplicate insert with a later seq must not move the party.
	if err := qs.Insert(ctx, store.QueueEntry{PartyID: ids[0], Seq: 99, EnqueuedAt: now}); err != nil {
		t.Fatalf("duplicate Insert: %v", err)
	}

	got, err := qs.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, e := range got {
		if e.PartyID != ids[i] {
			t.Errorf("position %d = %s, want %s", i, e.PartyID, ids[i])
		}
	}

	if err := qs.Delete(ctx, ids[1]); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, _ = qs.List(ctx)
	if len(got) != 2 || got[0].PartyID != ids[0] || got[1].PartyID != ids[2] {
		t.Fatalf("after delete: %+v", got)
	}
}

func TestRuleStore_UpsertOverwrites(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	rs := NewRuleStore(db)

	rules := []store.AutoReplyRule{
		{Keyword: "price", Reply: "see site", Position: 0},
		{Keyword: "hours", Reply: "9-5", Position: 1},
	}
	for _, r := range rules {
		if err := rs.Upsert(ctx, r); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	// Overwrite keeps the position, changes the body.
	if err := rs.Upsert(ctx, store.AutoReplyRule{Keyword: "price", Reply: "pricing page", MediaRef: "f-1", Position: 0}); err != nil {
		t.Fatalf("Upsert overwrite: %v", err)
	}

	got, err := rs.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Keyword != "price" || got[0].Reply != "pricing page" || got[0].MediaRef != "f-1" {
		t.Errorf("rule 0 = %+v", got[0])
	}

	if err := rs.Delete(ctx, "hours"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := rs.List(ctx); len(got) != 1 {
		t.Fatalf("after delete: %+v", got)
	}
}

func TestMessageStore_SeenTracking(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	ps := NewPartyStore(db)
	ms := NewMessageStore(db)

	now := time.Now().UTC().Truncate(time.Microsecond)
	party := &store.Party{ID: uuid.New(), TransportID: "t-1", FirstSeen: now, LastSeen: now}
	if err := ps.Upsert(ctx, party); err != nil {
		t.Fatalf("Upsert party: %v", err)
	}

	for i := 0; i < 3; i++ {
		rec := store.MessageRecord{
			ID:          uuid.New(),
			PartyID:     party.ID,
			ContentType: "text",
			Text:        "msg",
			Timestamp:   now.Add(time.Duration(i) * time.Second),
		}
		if err := ms.Append(ctx, rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	// An admin reply never counts as unread.
	admin := store.MessageRecord{
		ID: uuid.New(), PartyID: party.ID, FromAdmin: true, SeenByAdmin: true,
		ContentType: "text", Text: "reply", Timestamp: now.Add(10 * time.Second),
	}
	if err := ms.Append(ctx, admin); err != nil {
		t.Fatalf("Append admin: %v", err)
	}

	if n, err := ms.UnreadCount(ctx, party.ID); err != nil || n != 3 {
		t.Fatalf("UnreadCount = (%d, %v), want 3", n, err)
	}
	if n, err := ms.MarkSeen(ctx, party.ID); err != nil || n != 3 {
		t.Fatalf("MarkSeen = (%d, %v), want 3", n, err)
	}
	if n, _ := ms.UnreadCount(ctx, party.ID); n != 0 {
		t.Fatalf("UnreadCount after MarkSeen = %d", n)
	}

	// Window of the 2 most recent, returned oldest first.
	hist, err := ms.History(ctx, party.ID, 2, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 || !hist[1].FromAdmin || hist[1].Text != "reply" {
		t.Fatalf("history window = %+v", hist)
	}
	if hist[0].Timestamp.After(hist[1].Timestamp) {
		t.Error("history not in chronological order")
	}

	if err := ms.PurgeParty(ctx, party.ID); err != nil {
		t.Fatalf("PurgeParty: %v", err)
	}
	if hist, _ := ms.History(ctx, party.ID, 10, 0); len(hist) != 0 {
		t.Fatalf("history after purge = %+v", hist)
	}
}
