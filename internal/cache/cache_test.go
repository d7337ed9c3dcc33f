package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoyo/Quoorum-sub007/internal/core"
)

func TestCacheRoundTripCaseInsensitive(t *testing.T) {
	c := New()

	result := &core.DebateResult{SessionID: "s1", Synthesis: "Expand carefully."}
	c.CacheDebate("Test question?", result)

	got := c.GetCachedDebate("TEST QUESTION?")
	require.NotNil(t, got)
	assert.Equal(t, "s1", got.SessionID)

	assert.Nil(t, c.GetCachedDebate("Different question"))
}

func TestGenerateCacheKeyNormalization(t *testing.T) {
	assert.Equal(t, GenerateCacheKey("  Hello World  "), GenerateCacheKey("hello world"))
	assert.NotEqual(t, GenerateCacheKey("hello world"), GenerateCacheKey("hello worlds"))
}

func TestCacheExpiry(t *testing.T) {
	c := New()

	base := time.Now()
	c.now = func() time.Time { return base }
	c.CacheDebate("Will this expire?", &core.DebateResult{SessionID: "s2"})

	c.now = func() time.Time { return base.Add(DefaultResultTTL + time.Minute) }
	assert.Nil(t, c.GetCachedDebate("Will this expire?"))
}

func TestClearExpiredCache(t *testing.T) {
	c := New()

	base := time.Now()
	c.now = func() time.Time { return base }

	c.CacheDebate("old question", &core.DebateResult{SessionID: "old"})
	c.CacheExpertResponse("expert-1", "old question", "stale response")
	c.CacheEmbedding("old text", []float64{0.1, 0.2})

	c.now = func() time.Time { return base.Add(8 * 24 * time.Hour) }
	c.CacheDebate("fresh question", &core.DebateResult{SessionID: "fresh"})

	removed := c.ClearExpiredCache()
	assert.Equal(t, 3, removed)

	assert.Nil(t, c.GetCachedDebate("old question"))
	require.NotNil(t, c.GetCachedDebate("fresh question"))
}

func TestExpertResponseCacheScopedByExpert(t *testing.T) {
	c := New()

	c.CacheExpertResponse("expert-1", "Shared question?", "view one")
	c.CacheExpertResponse("expert-2", "Shared question?", "view two")

	got, ok := c.GetCachedExpertResponse("expert-1", "shared QUESTION?")
	require.True(t, ok)
	assert.Equal(t, "view one", got)

	got, ok = c.GetCachedExpertResponse("expert-2", "Shared question?")
	require.True(t, ok)
	assert.Equal(t, "view two", got)

	_, ok = c.GetCachedExpertResponse("expert-3", "Shared question?")
	assert.False(t, ok)
}

func TestEmbeddingCache(t *testing.T) {
	c := New()

	c.CacheEmbedding("Some text", []float64{0.5, 0.25})

	vec, ok := c.GetCachedEmbedding("  some TEXT ")
	require.True(t, ok)
	assert.Equal(t, []float64{0.5, 0.25}, vec)
}
