package mapstore

import (
	"context"
	"sync"

	"github.com/sancovp/metasync/internal/wrapper"
)

// MemoryStore is an in-memory wrapper.Mapping for tests and for
// deployments that opt out of a mapping database.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[wrapper.SourceRef]int
}

// NewMemoryStore creates an empty in-memory mapping.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[wrapper.SourceRef]int)}
}

var _ wrapper.Mapping = (*MemoryStore)(nil)

// Get implements wrapper.Mapping.
func (s *MemoryStore) Get(ctx context.Context, ref wrapper.SourceRef) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.m[ref]
	return n, ok, nil
}

// Put implements wrapper.Mapping.
func (s *MemoryStore) Put(ctx context.Context, ref wrapper.SourceRef, number int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[ref] = number
	return nil
}

// Len returns the number of recorded mappings.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
