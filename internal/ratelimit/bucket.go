// Package ratelimit provides the rate-limiting primitives GitPulse
// uses to share one provider budget across concurrent triggers: a
// token bucket for pacing and an adaptive wrapper that adds
// exponential backoff and a circuit breaker around remote calls.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrInvalidTokenRequest indicates a Take call that can never succeed
// (n <= 0 or n > capacity). This is a programmer error, not a runtime
// condition to retry.
var ErrInvalidTokenRequest = errors.New("ratelimit: invalid token request")

// TokenBucket is a thread-safe token bucket with lazy time-based
// refill. Tokens accrue continuously at refillRate per second, capped
// at capacity, and are refilled on every observation rather than by a
// background timer.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   int
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
	now        func() time.Time
}

// NewTokenBucket creates a full bucket.
// Returns an error for capacity <= 0 or refillRate <= 0.
func NewTokenBucket(capacity int, refillRate float64) (*TokenBucket, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("ratelimit: capacity must be positive, got %d", capacity)
	}
	if refillRate <= 0 {
		return nil, fmt.Errorf("ratelimit: refill rate must be positive, got %g", refillRate)
	}
	b := &TokenBucket{
		capacity:   capacity,
		refillRate: refillRate,
		tokens:     float64(capacity),
		now:        time.Now,
	}
	b.lastRefill = b.now()
	return b, nil
}

// refillLocked adds tokens accrued since the last refill.
// Caller must hold b.mu.
func (b *TokenBucket) refillLocked() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > float64(b.capacity) {
			b.tokens = float64(b.capacity)
		}
	}
	b.lastRefill = now
}

// Take attempts to consume n tokens without blocking. It returns true
// only if sufficient tokens exist after refill; otherwise state is
// left unchanged and the caller must re-poll or wait.
func (b *TokenBucket) Take(n int) bool {
	return b.TakeErr(n) == nil
}

// TakeErr is Take with an error distinguishing an invalid request from
// an empty bucket. An empty bucket returns ErrNoTokens.
func (b *TokenBucket) TakeErr(n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 || n > b.capacity {
		return ErrInvalidTokenRequest
	}

	b.refillLocked()
	if b.tokens < float64(n) {
		return ErrNoTokens
	}
	b.tokens -= float64(n)
	return nil
}

// ErrNoTokens indicates the bucket holds fewer tokens than requested.
var ErrNoTokens = errors.New("ratelimit: insufficient tokens")

// TokensAvailable returns the current token count after refill.
func (b *TokenBucket) TokensAvailable() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	return b.tokens
}

// TimeUntilNextToken returns how long until at least one token is
// available. Zero when a token is already available.
func (b *TokenBucket) TimeUntilNextToken() time.Duration {
	return b.TimeUntilTokens(1)
}

// TimeUntilTokens returns how long until n tokens are available.
// Zero when they already are. Requests that can never be satisfied
// (n > capacity) report the time to fill the whole bucket.
func (b *TokenBucket) TimeUntilTokens(n int) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()

	want := float64(n)
	if want > float64(b.capacity) {
		want = float64(b.capacity)
	}
	deficit := want - b.tokens
	if deficit <= 0 {
		return 0
	}
	return time.Duration(deficit / b.refillRate * float64(time.Second))
}

// SetRefillRate changes the refill rate. Accrual up to now is applied
// at the old rate first. Rates <= 0 are rejected.
func (b *TokenBucket) SetRefillRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("ratelimit: refill rate must be positive, got %g", rate)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	b.refillRate = rate
	return nil
}

// SetCapacity changes the capacity, clamping the current token count
// if it now exceeds the cap. Capacities <= 0 are rejected.
func (b *TokenBucket) SetCapacity(capacity int) error {
	if capacity <= 0 {
		return fmt.Errorf("ratelimit: capacity must be positive, got %d", capacity)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	b.capacity = capacity
	if b.tokens > float64(capacity) {
		b.tokens = float64(capacity)
	}
	return nil
}

// Reset refills the bucket to capacity.
func (b *TokenBucket) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = float64(b.capacity)
	b.lastRefill = b.now()
}
