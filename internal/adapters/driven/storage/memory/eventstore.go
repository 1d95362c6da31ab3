package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/gitpulse/internal/core/domain"
	"github.com/custodia-labs/gitpulse/internal/core/ports/driven"
)

// Ensure EventStore implements the interface.
var _ driven.EventStore = (*EventStore)(nil)

// EventStore is an in-memory implementation of driven.EventStore.
// The hash lookup and the insert happen under one mutex, giving the
// same at-most-once guarantee as the sqlite unique index.
type EventStore struct {
	mu     sync.RWMutex
	byHash map[string]domain.CanonicalEvent
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		byHash: make(map[string]domain.CanonicalEvent),
	}
}

// Insert persists the event unless a fact with the same content hash
// already exists.
func (s *EventStore) Insert(_ context.Context, event *domain.CanonicalEvent) (driven.InsertOutcome, error) {
	if event == nil || event.ContentHash == "" {
		return driven.OutcomeDuplicate, domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byHash[event.ContentHash]; exists {
		return driven.OutcomeDuplicate, nil
	}

	stored := *event
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	s.byHash[event.ContentHash] = stored
	event.ID = stored.ID
	return driven.OutcomeInserted, nil
}

// GetByContentHash retrieves an event by its content hash.
func (s *EventStore) GetByContentHash(_ context.Context, hash string) (*domain.CanonicalEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.byHash[hash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &event, nil
}

// CountByRepo returns the number of stored events for a repository.
func (s *EventStore) CountByRepo(_ context.Context, repoFullName string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, event := range s.byHash {
		if event.Repo.FullName == repoFullName {
			count++
		}
	}
	return count, nil
}
