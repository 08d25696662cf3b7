package enrichment

import (
	"context"
	"sync"
)

// MemoryStore keeps enrichments in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	byKey  map[string][]Enrichment
	closed bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byKey: make(map[string][]Enrichment)}
}

// Add implements Store.
func (s *MemoryStore) Add(_ context.Context, e Enrichment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.byKey[e.AlertKey] = append(s.byKey[e.AlertKey], e)
	return nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, alertKey string) ([]Enrichment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	src := s.byKey[alertKey]
	out := make([]Enrichment, len(src))
	copy(out, src)
	return out, nil
}

// Close implements Store. Later calls return ErrStoreClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
