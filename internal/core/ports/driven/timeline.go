package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/gitpulse/internal/core/domain"
)

// PageOptions selects one page of a repository's activity timeline.
type PageOptions struct {
	// Cursor is the opaque pagination cursor. Empty means first page.
	Cursor string

	// Since is the lower bound of the activity window.
	Since time.Time

	// Until is the upper bound. Zero means open-ended.
	Until time.Time

	// PerPage is the requested page size. Zero means provider default.
	PerPage int
}

// TimelinePage is one page of activity from the provider.
type TimelinePage struct {
	// Items are the raw activity items on this page.
	Items []domain.RawActivity

	// Cursor addresses the next page. Meaningless when HasNextPage is
	// false.
	Cursor string

	// HasNextPage reports whether more pages follow.
	HasNextPage bool

	// Budget is the provider's rate budget as of this response.
	Budget domain.RateBudget
}

// TimelineClient fetches paginated activity from the provider for one
// installation's token scope.
type TimelineClient interface {
	// FetchTimelinePage fetches one page of a repository's activity.
	// Pages are addressed by cursor; callers advance strictly forward.
	FetchTimelinePage(ctx context.Context, repoFullName string, opts PageOptions) (*TimelinePage, error)

	// ListTargetRepos returns the full names of repositories the
	// installation should ingest.
	ListTargetRepos(ctx context.Context) ([]string, error)

	// Budget returns the most recently observed rate budget.
	Budget() domain.RateBudget

	// Close releases any held resources.
	Close() error
}

// TimelineClientFactory creates timeline clients scoped to an
// installation. Clients (and the rate limiters wrapping them) are
// per-installation so one tenant's throttling never starves another.
type TimelineClientFactory interface {
	// Create builds a client authorized for the installation.
	Create(ctx context.Context, inst *domain.Installation) (TimelineClient, error)
}
