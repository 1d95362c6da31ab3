package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/gitpulse/internal/core/domain"
	"github.com/custodia-labs/gitpulse/internal/core/ports/driven"
)

// Ensure BatchStore implements the interface.
var _ driven.BatchStore = (*BatchStore)(nil)

// BatchStore is an in-memory implementation of driven.BatchStore.
type BatchStore struct {
	mu      sync.RWMutex
	batches map[string]domain.SyncBatch
}

// NewBatchStore creates a new in-memory batch store.
func NewBatchStore() *BatchStore {
	return &BatchStore{
		batches: make(map[string]domain.SyncBatch),
	}
}

// Create stores a new batch.
func (s *BatchStore) Create(_ context.Context, batch *domain.SyncBatch) error {
	if batch == nil || batch.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.batches[batch.ID]; exists {
		return domain.ErrAlreadyExists
	}
	s.batches[batch.ID] = *batch
	return nil
}

// Get retrieves a batch by ID.
func (s *BatchStore) Get(_ context.Context, batchID string) (*domain.SyncBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batch, ok := s.batches[batchID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &batch, nil
}

// Save updates an existing batch.
func (s *BatchStore) Save(_ context.Context, batch *domain.SyncBatch) error {
	if batch == nil || batch.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[batch.ID] = *batch
	return nil
}

// ListByInstallation returns batches for an installation, newest first.
func (s *BatchStore) ListByInstallation(_ context.Context, installationID string) ([]domain.SyncBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var batches []domain.SyncBatch
	for _, batch := range s.batches {
		if batch.InstallationID == installationID {
			batches = append(batches, batch)
		}
	}
	sort.Slice(batches, func(i, j int) bool {
		return batches[i].CreatedAt.After(batches[j].CreatedAt)
	})
	return batches, nil
}
