// Package github implements the GitHub timeline client for GitPulse.
//
// The client fetches repository activity (pushes, pull requests,
// reviews, issues, comments) through the repository events API and
// maps each provider payload shape into the provider-agnostic
// [domain.RawActivity] consumed by the canonicaliser.
//
// # Authentication
//
// Requests are authorized with an installation-scoped token supplied
// by a [TokenProvider]. Authenticated requests carry 5,000 API
// requests per hour; unauthenticated access is not supported.
//
// # Rate Limiting
//
// The client implements a dual-strategy rate limiting approach:
//
//  1. Proactive throttling: a token bucket limits requests to
//     approximately 1.2 requests per second, staying well under the
//     5,000/hour limit whilst maximising throughput.
//
//  2. Reactive handling: the client records the remaining/reset budget
//     from every response. When the budget is exhausted, it waits
//     until the reset time before continuing.
//
// The adaptive backoff and circuit breaker live one layer up, in the
// orchestrator's per-installation limiter; this package only observes
// budgets and raises typed [RateLimitError] values.
//
// # Pagination
//
// Timeline pages are addressed by an opaque cursor (a versioned,
// base64-encoded page position). Each page response carries the cursor
// for the next page plus the provider's remaining budget, so callers
// can persist progress after every page and resume after a crash.
//
// # Error Handling
//
// Errors are typed at this boundary so callers classify by type, never
// by message text:
//
//   - [RateLimitError]: budget exhausted, carries reset/retry-after
//   - [APIError]: any other API failure, carries the status code
//   - [domain.ErrRepoInaccessible]: 404/410, permanent for that repo
//   - [domain.ErrAuthInvalid]: 401, surfaced for reconnection
package github
