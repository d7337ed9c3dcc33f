package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckRateLimitAllowsFreshUser(t *testing.T) {
	l := NewLimiter(NewMemoryStore())

	d, err := l.CheckRateLimit(context.Background(), "user-1", false)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Empty(t, d.Reason)
}

func TestHourlyCapWithRetryAfter(t *testing.T) {
	store := NewMemoryStore()
	l := NewLimiter(store)

	base := time.Now()
	l.now = func() time.Time { return base }

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, l.IncrementDebateCounter(ctx, "user-1"))
		require.NoError(t, l.DecrementConcurrentDebates(ctx, "user-1"))
	}

	// 30 minutes into the window, the 11th debate is denied with the
	// remaining window time as the retry hint.
	l.now = func() time.Time { return base.Add(30 * time.Minute) }

	d, err := l.CheckRateLimit(ctx, "user-1", false)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "hourly")
	assert.Equal(t, 30*time.Minute, d.RetryAfter)
}

func TestHourlyWindowLazyReset(t *testing.T) {
	l := NewLimiter(NewMemoryStore())

	base := time.Now()
	l.now = func() time.Time { return base }

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, l.IncrementDebateCounter(ctx, "user-1"))
		require.NoError(t, l.DecrementConcurrentDebates(ctx, "user-1"))
	}

	d, err := l.CheckRateLimit(ctx, "user-1", false)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	// After the window elapses the counter resets lazily on next check.
	l.now = func() time.Time { return base.Add(61 * time.Minute) }

	d, err = l.CheckRateLimit(ctx, "user-1", false)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestConcurrencyCapDoesNotConsumeHourly(t *testing.T) {
	l := NewLimiter(NewMemoryStore())
	ctx := context.Background()

	// Three active debates hit the concurrency cap.
	for i := 0; i < 3; i++ {
		require.NoError(t, l.IncrementDebateCounter(ctx, "user-1"))
	}

	d, err := l.CheckRateLimit(ctx, "user-1", false)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "concurrent")

	// The denial itself must not consume hourly quota.
	rec, err := l.store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, rec.DebatesThisHour)

	// Releasing a slot unblocks creation while hourly quota remains.
	require.NoError(t, l.DecrementConcurrentDebates(ctx, "user-1"))
	d, err = l.CheckRateLimit(ctx, "user-1", false)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestDailyCostCap(t *testing.T) {
	l := NewLimiter(NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, l.RecordCost(ctx, "user-1", 10.50))

	d, err := l.CheckRateLimit(ctx, "user-1", false)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "cost")
	assert.Greater(t, d.RetryAfter, time.Duration(0))

	// Premium caps are higher; the same spend is fine there.
	d, err = l.CheckRateLimit(ctx, "user-1", true)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestPremiumCaps(t *testing.T) {
	l := NewLimiter(NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, l.IncrementDebateCounter(ctx, "premium-1"))
		require.NoError(t, l.DecrementConcurrentDebates(ctx, "premium-1"))
	}

	// Standard tier is exhausted, premium tier is not.
	d, err := l.CheckRateLimit(ctx, "premium-1", false)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	d, err = l.CheckRateLimit(ctx, "premium-1", true)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestDecrementNeverGoesNegative(t *testing.T) {
	l := NewLimiter(NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, l.DecrementConcurrentDebates(ctx, "user-1"))

	rec, err := l.store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.ConcurrentDebates)
}
