package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// RetryAfterHinter is implemented by errors that carry a
// provider-supplied retry-after value. The GitHub connector's
// RateLimitError implements it; any error in the chain that does is
// classified as a rate-limit failure.
type RetryAfterHinter interface {
	RetryAfterHint() (time.Duration, bool)
}

// CircuitOpenError is returned by Execute while the circuit breaker is
// open. The wrapped operation is never attempted.
type CircuitOpenError struct {
	// RetryIn is how long until the breaker closes.
	RetryIn time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("ratelimit: circuit breaker open, retry in %s", e.RetryIn.Round(time.Millisecond))
}

// Config holds the tunable knobs for an AdaptiveRateLimiter.
// Production values are configuration, not constants.
type Config struct {
	// BucketCapacity is the token bucket burst size.
	BucketCapacity int

	// RefillRate is the token bucket refill rate in tokens per second.
	RefillRate float64

	// InitialBackoff is the base backoff after a rate-limit failure.
	InitialBackoff time.Duration

	// MaxBackoffMultiplier caps the exponential escalation.
	MaxBackoffMultiplier float64

	// JitterPercentage is the random variance applied to computed
	// backoffs, in [0, 1). 0.2 means +/-20%.
	JitterPercentage float64

	// CircuitBreakerThreshold is the consecutive rate-limit failure
	// count that trips the breaker.
	CircuitBreakerThreshold int

	// CircuitBreakerPause is how long a tripped breaker stays open.
	CircuitBreakerPause time.Duration
}

// DefaultConfig returns the default limiter tuning.
func DefaultConfig() Config {
	return Config{
		BucketCapacity:          10,
		RefillRate:              1.2,
		InitialBackoff:          time.Second,
		MaxBackoffMultiplier:    60,
		JitterPercentage:        0.2,
		CircuitBreakerThreshold: 5,
		CircuitBreakerPause:     5 * time.Minute,
	}
}

// Metrics is an immutable snapshot of limiter counters.
type Metrics struct {
	TotalRequests            int64
	RateLimitHits            int64
	SuccessfulRequests       int64
	FailedRequests           int64
	CurrentBackoffMultiplier float64
	CircuitBreakerOpen       bool
	CircuitBreakerTrips      int64
}

// AdaptiveRateLimiter gates remote calls behind a token bucket and
// reacts to rate-limit-classified failures with exponential backoff
// and a circuit breaker.
//
// It does not retry the wrapped operation: on a rate-limit failure it
// sleeps the computed backoff and re-returns the original error so the
// caller decides whether to retry. One limiter is scoped to one
// external resource (an installation token); limiters are never shared
// across tenants.
type AdaptiveRateLimiter struct {
	cfg    Config
	bucket *TokenBucket

	mu                  sync.Mutex
	backoffMultiplier   float64
	consecutiveFailures int
	breakerOpenUntil    time.Time

	totalRequests      int64
	rateLimitHits      int64
	successfulRequests int64
	failedRequests     int64
	breakerTrips       int64

	// Injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	randf func() float64
}

// NewAdaptiveRateLimiter creates a limiter with the given config.
func NewAdaptiveRateLimiter(cfg Config) (*AdaptiveRateLimiter, error) {
	bucket, err := NewTokenBucket(cfg.BucketCapacity, cfg.RefillRate)
	if err != nil {
		return nil, err
	}
	if cfg.CircuitBreakerThreshold <= 0 {
		return nil, fmt.Errorf("ratelimit: circuit breaker threshold must be positive, got %d", cfg.CircuitBreakerThreshold)
	}
	if cfg.MaxBackoffMultiplier < 1 {
		return nil, fmt.Errorf("ratelimit: max backoff multiplier must be >= 1, got %g", cfg.MaxBackoffMultiplier)
	}
	return &AdaptiveRateLimiter{
		cfg:               cfg,
		bucket:            bucket,
		backoffMultiplier: 1,
		now:               time.Now,
		sleep:             sleepCtx,
		randf:             rand.Float64,
	}, nil
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Execute runs op behind the token gate.
//
// If the breaker is open the call is rejected immediately with a
// *CircuitOpenError and op is never invoked. Otherwise a token is
// acquired (waiting once for the next token if the bucket is empty),
// op runs, and the outcome updates the limiter state: success resets
// the backoff, a rate-limit failure escalates it and may trip the
// breaker, any other failure passes through untouched.
func (l *AdaptiveRateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := l.checkBreaker(); err != nil {
		return err
	}

	if err := l.acquireToken(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	l.totalRequests++
	l.mu.Unlock()

	err := op(ctx)
	if err == nil {
		l.recordSuccess()
		return nil
	}

	if !isRateLimitError(err) {
		l.mu.Lock()
		l.failedRequests++
		l.mu.Unlock()
		return err
	}

	backoff := l.recordRateLimit(err)
	if sleepErr := l.sleep(ctx, backoff); sleepErr != nil {
		return sleepErr
	}
	return err
}

// checkBreaker rejects the call while the breaker is open.
func (l *AdaptiveRateLimiter) checkBreaker() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if until := l.breakerOpenUntil; l.now().Before(until) {
		return &CircuitOpenError{RetryIn: until.Sub(l.now())}
	}
	return nil
}

// acquireToken takes one token, waiting out the refill interval once
// if the bucket is empty.
func (l *AdaptiveRateLimiter) acquireToken(ctx context.Context) error {
	if l.bucket.Take(1) {
		return nil
	}
	if err := l.sleep(ctx, l.bucket.TimeUntilNextToken()); err != nil {
		return err
	}
	if !l.bucket.Take(1) {
		return ErrNoTokens
	}
	return nil
}

// recordSuccess resets backoff state after a successful call.
func (l *AdaptiveRateLimiter) recordSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.successfulRequests++
	l.backoffMultiplier = 1
	l.consecutiveFailures = 0
}

// recordRateLimit escalates the backoff state for a rate-limit failure
// and returns the backoff to sleep. A provider-supplied retry-after
// wins over the computed backoff.
func (l *AdaptiveRateLimiter) recordRateLimit(err error) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rateLimitHits++
	l.failedRequests++
	l.consecutiveFailures++

	backoff := time.Duration(float64(l.cfg.InitialBackoff) * l.backoffMultiplier)
	if retryAfter, ok := retryAfterFrom(err); ok && retryAfter > 0 {
		backoff = retryAfter
	} else if l.cfg.JitterPercentage > 0 {
		// jitter in [-p, +p]
		jitter := (l.randf()*2 - 1) * l.cfg.JitterPercentage
		backoff = time.Duration(float64(backoff) * (1 + jitter))
	}

	l.backoffMultiplier *= 2
	if l.backoffMultiplier > l.cfg.MaxBackoffMultiplier {
		l.backoffMultiplier = l.cfg.MaxBackoffMultiplier
	}

	if l.consecutiveFailures >= l.cfg.CircuitBreakerThreshold {
		l.breakerOpenUntil = l.now().Add(l.cfg.CircuitBreakerPause)
		l.breakerTrips++
		l.consecutiveFailures = 0
	}

	return backoff
}

// retryAfterFrom extracts a provider retry-after hint from the error
// chain, if any error carries one.
func retryAfterFrom(err error) (time.Duration, bool) {
	var hinter RetryAfterHinter
	if errors.As(err, &hinter) {
		return hinter.RetryAfterHint()
	}
	return 0, false
}

// isRateLimitError classifies an error as rate-limit-signalled.
// Typed detection is primary; substring matching is a fallback for
// legacy or unrecognized error shapes only.
func isRateLimitError(err error) bool {
	var hinter RetryAfterHinter
	if errors.As(err, &hinter) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "429")
}

// Metrics returns an immutable snapshot of the limiter counters.
func (l *AdaptiveRateLimiter) Metrics() Metrics {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Metrics{
		TotalRequests:            l.totalRequests,
		RateLimitHits:            l.rateLimitHits,
		SuccessfulRequests:       l.successfulRequests,
		FailedRequests:           l.failedRequests,
		CurrentBackoffMultiplier: l.backoffMultiplier,
		CircuitBreakerOpen:       l.now().Before(l.breakerOpenUntil),
		CircuitBreakerTrips:      l.breakerTrips,
	}
}

// ResetMetrics zeroes the counters. Backoff and breaker state are
// untouched.
func (l *AdaptiveRateLimiter) ResetMetrics() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totalRequests = 0
	l.rateLimitHits = 0
	l.successfulRequests = 0
	l.failedRequests = 0
	l.breakerTrips = 0
}
