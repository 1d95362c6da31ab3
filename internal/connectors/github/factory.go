package github

import (
	"context"

	"github.com/custodia-labs/gitpulse/internal/core/domain"
	"github.com/custodia-labs/gitpulse/internal/core/ports/driven"
)

// Ensure ClientFactory implements the port.
var _ driven.TimelineClientFactory = (*ClientFactory)(nil)

// TokenResolver looks up the access token for an installation.
type TokenResolver func(ctx context.Context, inst *domain.Installation) (string, error)

// ClientFactory creates timeline clients scoped to an installation.
// Every client owns its own rate limiter, so one installation's
// throttling never bleeds into another.
type ClientFactory struct {
	resolve TokenResolver
}

// NewClientFactory creates a factory using the given token resolver.
func NewClientFactory(resolve TokenResolver) *ClientFactory {
	return &ClientFactory{resolve: resolve}
}

// Create builds a client authorized for the installation.
func (f *ClientFactory) Create(ctx context.Context, inst *domain.Installation) (driven.TimelineClient, error) {
	if inst == nil {
		return nil, domain.ErrInvalidInput
	}
	token, err := f.resolve(ctx, inst)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, domain.ErrAuthRequired
	}
	return NewClient(StaticTokenProvider(token)), nil
}
