package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for deterministic refill.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestBucket(t *testing.T, capacity int, refillRate float64) (*TokenBucket, *fakeClock) {
	t.Helper()
	bucket, err := NewTokenBucket(capacity, refillRate)
	require.NoError(t, err)

	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	bucket.now = clock.Now
	bucket.lastRefill = clock.Now()
	return bucket, clock
}

func TestNewTokenBucket_StartsFull(t *testing.T) {
	bucket, _ := newTestBucket(t, 10, 2)

	assert.InDelta(t, 10.0, bucket.TokensAvailable(), 0.0001)
}

func TestNewTokenBucket_RejectsInvalidCapacity(t *testing.T) {
	_, err := NewTokenBucket(0, 1)
	require.Error(t, err)

	_, err = NewTokenBucket(-5, 1)
	require.Error(t, err)
}

func TestNewTokenBucket_RejectsInvalidRefillRate(t *testing.T) {
	_, err := NewTokenBucket(10, 0)
	require.Error(t, err)

	_, err = NewTokenBucket(10, -1)
	require.Error(t, err)
}

func TestTokenBucket_Take_ConsumesTokens(t *testing.T) {
	bucket, _ := newTestBucket(t, 10, 2)

	assert.True(t, bucket.Take(4))
	assert.InDelta(t, 6.0, bucket.TokensAvailable(), 0.0001)

	assert.True(t, bucket.Take(6))
	assert.InDelta(t, 0.0, bucket.TokensAvailable(), 0.0001)
}

func TestTokenBucket_Take_FailsWhenEmpty(t *testing.T) {
	bucket, _ := newTestBucket(t, 10, 2)

	require.True(t, bucket.Take(10))

	// Nothing left; state must be unchanged by the failed take.
	assert.False(t, bucket.Take(1))
	assert.InDelta(t, 0.0, bucket.TokensAvailable(), 0.0001)
}

func TestTokenBucket_TakeErr_DistinguishesInvalidFromEmpty(t *testing.T) {
	bucket, _ := newTestBucket(t, 10, 2)

	assert.ErrorIs(t, bucket.TakeErr(0), ErrInvalidTokenRequest)
	assert.ErrorIs(t, bucket.TakeErr(-1), ErrInvalidTokenRequest)
	assert.ErrorIs(t, bucket.TakeErr(11), ErrInvalidTokenRequest)

	require.True(t, bucket.Take(10))
	assert.ErrorIs(t, bucket.TakeErr(1), ErrNoTokens)
}

func TestTokenBucket_RefillsOverTime(t *testing.T) {
	// Capacity 10, 2 tokens/second.
	bucket, clock := newTestBucket(t, 10, 2)

	require.True(t, bucket.Take(10))
	require.False(t, bucket.Take(1))

	// After one second exactly two tokens have accrued.
	clock.Advance(1 * time.Second)
	assert.InDelta(t, 2.0, bucket.TokensAvailable(), 0.0001)
	assert.True(t, bucket.Take(2))
	assert.False(t, bucket.Take(1))
}

func TestTokenBucket_RefillCapsAtCapacity(t *testing.T) {
	bucket, clock := newTestBucket(t, 10, 2)

	require.True(t, bucket.Take(5))

	// Far more time than needed to refill; must not exceed capacity.
	clock.Advance(1 * time.Hour)
	assert.InDelta(t, 10.0, bucket.TokensAvailable(), 0.0001)
}

func TestTokenBucket_TimeUntilNextToken(t *testing.T) {
	bucket, _ := newTestBucket(t, 10, 2)

	// Tokens available: no wait.
	assert.Zero(t, bucket.TimeUntilNextToken())

	require.True(t, bucket.Take(10))

	// 2 tokens/second means one token every 500ms.
	assert.Equal(t, 500*time.Millisecond, bucket.TimeUntilNextToken())
}

func TestTokenBucket_TimeUntilTokens_PartialDeficit(t *testing.T) {
	bucket, clock := newTestBucket(t, 10, 2)

	require.True(t, bucket.Take(10))
	clock.Advance(500 * time.Millisecond) // one token accrued

	// Three wanted, one held: two short at 2/s is one second.
	assert.Equal(t, 1*time.Second, bucket.TimeUntilTokens(3))
}

func TestTokenBucket_TimeUntilTokens_ClampsToCapacity(t *testing.T) {
	bucket, _ := newTestBucket(t, 10, 2)

	require.True(t, bucket.Take(10))

	// Impossible requests report the time to fill the whole bucket.
	assert.Equal(t, 5*time.Second, bucket.TimeUntilTokens(100))
}

func TestTokenBucket_SetRefillRate(t *testing.T) {
	bucket, clock := newTestBucket(t, 10, 2)

	require.True(t, bucket.Take(10))

	// Accrual before the change happens at the old rate.
	clock.Advance(1 * time.Second)
	require.NoError(t, bucket.SetRefillRate(4))
	assert.InDelta(t, 2.0, bucket.TokensAvailable(), 0.0001)

	clock.Advance(1 * time.Second)
	assert.InDelta(t, 6.0, bucket.TokensAvailable(), 0.0001)

	assert.Error(t, bucket.SetRefillRate(0))
}

func TestTokenBucket_SetCapacity_ClampsTokens(t *testing.T) {
	bucket, _ := newTestBucket(t, 10, 2)

	require.NoError(t, bucket.SetCapacity(4))
	assert.InDelta(t, 4.0, bucket.TokensAvailable(), 0.0001)

	assert.Error(t, bucket.SetCapacity(0))
}

func TestTokenBucket_Reset(t *testing.T) {
	bucket, _ := newTestBucket(t, 10, 2)

	require.True(t, bucket.Take(10))
	bucket.Reset()

	assert.InDelta(t, 10.0, bucket.TokensAvailable(), 0.0001)
}
