package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/dayflow/internal/domain/transition"
	"github.com/okian/dayflow/pkg/metrics"
)

// MemoryStore is an in-process Store. Models are kept by reference.
type MemoryStore struct {
	mu      sync.RWMutex
	models  map[string]*transition.Model
	entries []Summary // insertion order
	now     func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{models: make(map[string]*transition.Model), now: time.Now}
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, m *transition.Model) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[id] = m
	s.entries = append(s.entries, summarize(id, s.now().UTC(), m))
	metrics.RecordModelSaved()
	return id, nil
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, id string) (*transition.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

// Latest implements Store.
func (s *MemoryStore) Latest(_ context.Context) (*transition.Model, Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return nil, Summary{}, ErrNotFound
	}
	sum := s.entries[len(s.entries)-1]
	return s.models[sum.ID], sum, nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.entries)
	slices.Reverse(out)
	return out, nil
}
