package github

import (
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/gitpulse/internal/core/domain"
)

// GitHub-specific errors.
var (
	// ErrInvalidCursor indicates the cursor format is invalid.
	ErrInvalidCursor = errors.New("github: invalid cursor format")

	// ErrNoToken indicates the token provider returned no usable token.
	ErrNoToken = errors.New("github: no token available")
)

// RateLimitError represents a rate limit exceeded error with reset time.
type RateLimitError struct {
	ResetAt    time.Time
	Remaining  int
	Limit      int
	RetryAfter time.Duration // From Retry-After, zero when absent
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github: rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// Unwrap lets callers classify with errors.Is(err, domain.ErrRateLimited)
// without importing this package.
func (e *RateLimitError) Unwrap() error {
	return domain.ErrRateLimited
}

// RetryAfterHint returns the provider-supplied retry-after, falling
// back to the time until reset. Implements ratelimit.RetryAfterHinter,
// which is what classifies this error as a rate-limit failure.
func (e *RateLimitError) RetryAfterHint() (time.Duration, bool) {
	if e.RetryAfter > 0 {
		return e.RetryAfter, true
	}
	if until := time.Until(e.ResetAt); until > 0 {
		return until, true
	}
	return 0, false
}

// APIError represents a GitHub API error response.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// IsNotFound checks if the error indicates a resource was not found.
// Not-found repositories are permanent failures for their job.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404 || apiErr.StatusCode == 410
	}
	return false
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	var rateLimitErr *RateLimitError
	return errors.As(err, &rateLimitErr)
}

// IsUnauthorized checks if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 401
	}
	return false
}

// IsForbidden checks if the error indicates a forbidden resource.
func IsForbidden(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 403
	}
	return false
}
