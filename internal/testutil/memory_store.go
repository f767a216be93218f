package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/Sternrassler/otx-pulse-etl/pkg/pulse"
)

// MemoryStore is an in-memory pulse collection with upsert semantics.
type MemoryStore struct {
	mu    sync.Mutex
	docs  map[string]pulse.Pulse
	Calls int

	// FailAfter makes the Nth and later Upsert calls (1-based) return
	// ErrStoreUnavailable. Zero disables failures.
	FailAfter int
}

// ErrStoreUnavailable is returned by MemoryStore when FailAfter triggers.
var ErrStoreUnavailable = errors.New("store unavailable")

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]pulse.Pulse)}
}

// Upsert inserts or replaces p by id.
func (s *MemoryStore) Upsert(_ context.Context, p pulse.Pulse) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls++
	if s.FailAfter > 0 && s.Calls >= s.FailAfter {
		return false, ErrStoreUnavailable
	}
	if !p.HasID() {
		return false, errors.New("pulse has no id")
	}

	_, exists := s.docs[p.ID]
	s.docs[p.ID] = p
	return !exists, nil
}

// Get returns the stored pulse for id.
func (s *MemoryStore) Get(id string) (pulse.Pulse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.docs[id]
	return p, ok
}

// Len returns the number of stored pulses.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}
