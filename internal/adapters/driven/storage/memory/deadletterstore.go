package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
)

// Ensure DeadLetterStore implements the interface.
var _ driven.DeadLetterStore = (*DeadLetterStore)(nil)

// DeadLetterStore is an in-memory implementation of driven.DeadLetterStore.
type DeadLetterStore struct {
	mu      sync.RWMutex
	entries map[string]domain.DeadLetter
}

// NewDeadLetterStore creates a new in-memory dead letter store.
func NewDeadLetterStore() *DeadLetterStore {
	return &DeadLetterStore{
		entries: make(map[string]domain.DeadLetter),
	}
}

// Add stores an entry.
func (s *DeadLetterStore) Add(_ context.Context, entry domain.DeadLetter) error {
	if entry.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ID] = entry
	return nil
}

// List returns all entries, newest first.
func (s *DeadLetterStore) List(_ context.Context) ([]domain.DeadLetter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.DeadLetter, 0, len(s.entries))
	for _, e := range s.entries {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].FailedAt.Equal(result[j].FailedAt) {
			return result[i].FailedAt.After(result[j].FailedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// Get returns an entry by ID.
func (s *DeadLetterStore) Get(_ context.Context, id string) (*domain.DeadLetter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &e, nil
}

// Remove deletes an entry. Removing a missing entry is not an error.
func (s *DeadLetterStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}
