// Package store provides the bounded in-memory user-state store. Capacity is
// fixed at construction; when full, the least-recently-used idle entry is
// evicted. Entries with a draining worker or a non-empty queue are pinned and
// never evicted, so an insert can briefly exceed capacity when every entry is
// active.
package store

import (
	"fmt"
	"math"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/dialoq/dialoq/internal/core"
)

// DefaultCapacity bounds the store when no capacity is configured.
const DefaultCapacity = 1000

// Store maps user ids to their relay state with LRU recency tracking.
// All methods are safe for concurrent use; the lock is held only for map and
// recency bookkeeping, never across external calls.
type Store struct {
	mu       sync.Mutex
	capacity int

	// entries does the recency bookkeeping. Its internal limit is set to
	// MaxInt so it never evicts on its own; capacity and the active-entry
	// exemption are enforced in ensureRoom.
	entries *simplelru.LRU[string, *core.UserState]
}

// New creates a store holding at most capacity user entries.
func New(capacity int) (*Store, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("store capacity must be positive, got %d", capacity)
	}

	entries, err := simplelru.NewLRU[string, *core.UserState](math.MaxInt, nil)
	if err != nil {
		return nil, fmt.Errorf("create recency list: %w", err)
	}

	return &Store{capacity: capacity, entries: entries}, nil
}

// Get returns the state for id and refreshes its recency.
func (s *Store) Get(id string) (*core.UserState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Get(id)
}

// Has reports whether id is present without touching recency order.
func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Contains(id)
}

// Set stores state for id, refreshing recency and evicting if needed.
func (s *Store) Set(id string, state *core.UserState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.entries.Contains(id) {
		s.ensureRoom()
	}
	s.entries.Add(id, state)
}

// Update applies fn to the state for id under the store lock, creating the
// entry if absent, and returns the resulting state. This is the only way the
// engine mutates user state, which makes every read-modify-write atomic with
// respect to concurrent admission checks for the same user.
//
// fn must not block or call back into the store.
func (s *Store) Update(id string, fn func(*core.UserState)) *core.UserState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.entries.Get(id)
	if !ok {
		state = &core.UserState{}
		s.ensureRoom()
	}
	fn(state)
	s.entries.Add(id, state)
	return state
}

// Remove drops the entry for id, if present.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Remove(id)
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}

// Capacity returns the configured entry limit.
func (s *Store) Capacity() int {
	return s.capacity
}

// ensureRoom makes space for one new entry. It walks from least- to
// most-recently-used and removes the first idle entry. Active entries
// (draining or queued work) are exempt; if all entries are active the insert
// proceeds over capacity rather than dropping in-flight state.
//
// Callers must hold s.mu.
func (s *Store) ensureRoom() {
	if s.entries.Len() < s.capacity {
		return
	}

	for _, key := range s.entries.Keys() {
		state, ok := s.entries.Peek(key)
		if !ok || state.Active() {
			continue
		}
		s.entries.Remove(key)
		return
	}
}
