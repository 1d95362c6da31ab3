package github

import (
	"context"
	"errors"
	"fmt"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/gitpulse/internal/core/domain"
	"github.com/custodia-labs/gitpulse/internal/core/ports/driven"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultPerPage is the default timeline page size.
	DefaultPerPage = 100
)

// TokenProvider supplies the installation-scoped token for API calls.
type TokenProvider interface {
	// GetToken returns a valid access token.
	GetToken(ctx context.Context) (string, error)
}

// StaticTokenProvider wraps a fixed token string.
type StaticTokenProvider string

// GetToken returns the wrapped token.
func (p StaticTokenProvider) GetToken(_ context.Context) (string, error) {
	if p == "" {
		return "", ErrNoToken
	}
	return string(p), nil
}

// Ensure Client implements the port.
var _ driven.TimelineClient = (*Client)(nil)

// Client wraps the go-github client with rate limiting and the
// timeline page fetch used by ingestion jobs.
type Client struct {
	gh            *gh.Client
	tokenProvider TokenProvider
	rateLimiter   *RateLimiter
}

// NewClient creates a new GitHub API client with a token provider.
func NewClient(tokenProvider TokenProvider) *Client {
	return &Client{
		tokenProvider: tokenProvider,
		rateLimiter:   NewRateLimiter(),
	}
}

// ensureClient initialises the go-github client if not already done.
// This is called lazily so we can get the token when needed.
func (c *Client) ensureClient(ctx context.Context) error {
	if c.gh != nil {
		return nil
	}

	token, err := c.tokenProvider.GetToken(ctx)
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = DefaultTimeout
	c.gh = gh.NewClient(tc)

	return nil
}

// ListTargetRepos returns the full names of all repositories the
// installation can access, newest activity first.
func (c *Client) ListTargetRepos(ctx context.Context) ([]string, error) {
	if err := c.ensureClient(ctx); err != nil {
		return nil, err
	}

	var names []string

	opts := &gh.RepositoryListByAuthenticatedUserOptions{
		Visibility:  "all",
		Affiliation: "owner,collaborator,organization_member",
		Sort:        "pushed",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: DefaultPerPage},
	}

	for {
		select {
		case <-ctx.Done():
			return names, ctx.Err()
		default:
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		repos, resp, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			return nil, c.wrapError(err, "list repos")
		}
		c.rateLimiter.UpdateFromResponse(resp)

		for _, repo := range repos {
			if repo.GetFullName() != "" {
				names = append(names, repo.GetFullName())
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return names, nil
}

// Budget returns the most recently observed rate budget.
func (c *Client) Budget() domain.RateBudget {
	return domain.RateBudget{
		Remaining: c.rateLimiter.Remaining(),
		Reset:     c.rateLimiter.ResetTime(),
	}
}

// Close releases client resources. The underlying HTTP client needs no
// explicit teardown.
func (c *Client) Close() error {
	return nil
}

// wrapError converts go-github errors to typed boundary errors so
// callers classify by type, never by message text.
func (c *Client) wrapError(err error, op string) error {
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return &RateLimitError{
			ResetAt:   rateErr.Rate.Reset.Time,
			Remaining: rateErr.Rate.Remaining,
			Limit:     rateErr.Rate.Limit,
		}
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		retryAfter := time.Duration(0)
		if abuseErr.RetryAfter != nil {
			retryAfter = *abuseErr.RetryAfter
		}
		return &RateLimitError{
			ResetAt:    time.Now().Add(retryAfter),
			RetryAfter: retryAfter,
		}
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		apiErr := &APIError{
			StatusCode: ghErr.Response.StatusCode,
			Message:    ghErr.Message,
		}
		if ghErr.Response.Request != nil && ghErr.Response.Request.URL != nil {
			apiErr.URL = ghErr.Response.Request.URL.String()
		}
		switch apiErr.StatusCode {
		case 401:
			return fmt.Errorf("%s: %w: %w", op, domain.ErrAuthInvalid, apiErr)
		case 404, 410:
			return fmt.Errorf("%s: %w: %w", op, domain.ErrRepoInaccessible, apiErr)
		default:
			return fmt.Errorf("%s: %w", op, apiErr)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
