// Package memory provides in-memory implementations of the driven
// storage ports. They are used in tests and for ephemeral runs; the
// sqlite package is the durable counterpart.
package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/gitpulse/internal/core/domain"
	"github.com/custodia-labs/gitpulse/internal/core/ports/driven"
)

// Ensure InstallationStore implements the interface.
var _ driven.InstallationStore = (*InstallationStore)(nil)

// InstallationStore is an in-memory implementation of driven.InstallationStore.
type InstallationStore struct {
	mu            sync.RWMutex
	installations map[string]domain.Installation
}

// NewInstallationStore creates a new in-memory installation store.
func NewInstallationStore() *InstallationStore {
	return &InstallationStore{
		installations: make(map[string]domain.Installation),
	}
}

// Get retrieves an installation by ID.
func (s *InstallationStore) Get(_ context.Context, installationID string) (*domain.Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.installations[installationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &inst, nil
}

// List returns all installations.
func (s *InstallationStore) List(_ context.Context) ([]domain.Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	installations := make([]domain.Installation, 0, len(s.installations))
	for _, inst := range s.installations {
		installations = append(installations, inst)
	}
	return installations, nil
}

// Save stores or updates an installation.
func (s *InstallationStore) Save(_ context.Context, inst *domain.Installation) error {
	if inst == nil || inst.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installations[inst.ID] = *inst
	return nil
}
