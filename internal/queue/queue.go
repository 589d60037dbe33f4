// Package queue implements the FIFO waiting queue of parties pending
// promotion to the live session.
package queue

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/liveline-bot/liveline/internal/store"
)

// EnqueueResult reports whether an enqueue inserted a new entry.
type EnqueueResult int

const (
	Added EnqueueResult = iota
	AlreadyQueued
)

// Store is the FIFO queue, ordered by enqueue time with a monotonic
// sequence number breaking ties. It is not self-locking: all mutations run
// inside the routing engine's critical section, which also guards the
// session slot so the two are updated atomically.
type Store struct {
	entries []store.QueueEntry // ordered front first
	index   map[uuid.UUID]int  // party id → position in entries
	seq     uint64
	qs      store.QueueStore
}

// NewStore creates an empty queue backed by the given queue store.
func NewStore(qs store.QueueStore) *Store {
	return &Store{
		index: make(map[uuid.UUID]int),
		qs:    qs,
	}
}

// Load populates the queue from the store, restoring FIFO order and the
// sequence counter. Called once on startup.
func (s *Store) Load(ctx context.Context) error {
	list, err := s.qs.List(ctx)
	if err != nil {
		return err
	}

	sort.Slice(list, func(i, j int) bool {
		if !list[i].EnqueuedAt.Equal(list[j].EnqueuedAt) {
			return list[i].EnqueuedAt.Before(list[j].EnqueuedAt)
		}
		return list[i].Seq < list[j].Seq
	})

	s.entries = list
	s.index = make(map[uuid.UUID]int, len(list))
	for i, e := range list {
		s.index[e.PartyID] = i
		if e.Seq >= s.seq {
			s.seq = e.Seq + 1
		}
	}
	return nil
}

// Enqueue appends a party to the back of the queue. Idempotent: a party
// already present keeps its original position and AlreadyQueued is returned.
func (s *Store) Enqueue(ctx context.Context, partyID uuid.UUID) EnqueueResult {
	if _, ok := s.index[partyID]; ok {
		return AlreadyQueued
	}

	e := store.QueueEntry{
		PartyID:    partyID,
		Seq:        s.seq,
		EnqueuedAt: time.Now(),
	}
	s.seq++
	s.index[partyID] = len(s.entries)
	s.entries = append(s.entries, e)

	if s.qs != nil {
		if err := s.qs.Insert(ctx, e); err != nil {
			slog.Warn("queue insert failed", "party", partyID, "error", err)
		}
	}
	return Added
}

// DequeueFront removes and returns the earliest-enqueued entry.
// The second return is false when the queue is empty.
func (s *Store) DequeueFront(ctx context.Context) (store.QueueEntry, bool) {
	if len(s.entries) == 0 {
		return store.QueueEntry{}, false
	}

	front := s.entries[0]
	s.removeAt(ctx, 0)
	return front, true
}

// Remove deletes a party's entry wherever it sits. Returns false when the
// party is not queued.
func (s *Store) Remove(ctx context.Context, partyID uuid.UUID) bool {
	i, ok := s.index[partyID]
	if !ok {
		return false
	}
	s.removeAt(ctx, i)
	return true
}

// Position returns the 1-based rank of a party, or 0 when not queued.
func (s *Store) Position(partyID uuid.UUID) int {
	i, ok := s.index[partyID]
	if !ok {
		return 0
	}
	return i + 1
}

// Len returns the number of waiting parties.
func (s *Store) Len() int { return len(s.entries) }

// Snapshot returns the queue contents front first.
func (s *Store) Snapshot() []store.QueueEntry {
	out := make([]store.QueueEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Store) removeAt(ctx context.Context, i int) {
	e := s.entries[i]
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	delete(s.index, e.PartyID)
	for j := i; j < len(s.entries); j++ {
		s.index[s.entries[j].PartyID] = j
	}

	if s.qs != nil {
		if err := s.qs.Delete(ctx, e.PartyID); err != nil {
			slog.Warn("queue delete failed", "party", e.PartyID, "error", err)
		}
	}
}
