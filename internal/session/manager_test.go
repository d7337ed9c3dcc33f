package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoyo/Quoorum-sub007/internal/admission"
	"github.com/arturoyo/Quoorum-sub007/internal/analyzer"
	"github.com/arturoyo/Quoorum-sub007/internal/cache"
	"github.com/arturoyo/Quoorum-sub007/internal/core"
	"github.com/arturoyo/Quoorum-sub007/internal/expert"
	"github.com/arturoyo/Quoorum-sub007/internal/provider"
	"github.com/arturoyo/Quoorum-sub007/internal/ratelimit"
	"github.com/arturoyo/Quoorum-sub007/internal/telemetry"
)

const analysisResponse = `{
  "areas": [
    {"name": "technology", "weight": 80, "reasoning": "infrastructure decision"},
    {"name": "finance", "weight": 60, "reasoning": "licensing cost"},
    {"name": "operations", "weight": 50, "reasoning": "rollout burden"}
  ],
  "topics": [
    {"name": "infrastructure", "relevance": 90},
    {"name": "cost", "relevance": 70},
    {"name": "rollout", "relevance": 60}
  ],
  "complexity": 5,
  "decision_type": "strategic",
  "recommended_experts": ["technology-architect", "finance-analyst", "operations-lead", "critic"],
  "reasoning": "Primarily a platform choice with cost and rollout implications."
}`

type managerFixture struct {
	manager *Manager
	store   *ratelimit.MemoryStore
	cache   *cache.Cache
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	// Every expert call agrees, so debates converge in one round.
	debateMock := provider.NewMock("mock", supportResponse)
	registry := provider.NewRegistry()
	registry.Register(debateMock)
	for _, name := range []string{"claude", "openai", "gemini"} {
		registry.Register(provider.NewMock(name, supportResponse))
	}

	ctrl := admission.NewController(nil)
	for _, name := range []string{"mock", "claude", "openai", "gemini"} {
		ctrl.SetLimits(name, admission.Limits{
			RequestsPerMinute: 100000,
			TokensPerMinute:   100000000,
			RequestsPerDay:    100000,
		})
	}
	executor := NewExecutor(registry, ctrl, telemetry.NopSink{})

	an := analyzer.New(provider.NewMock("analyzer", analysisResponse), "mock-v1")
	matcher := expert.NewMatcher(expert.NewRegistry())
	store := ratelimit.NewMemoryStore()
	limiter := ratelimit.NewLimiter(store)

	c := cache.New()
	return &managerFixture{
		manager: NewManager(an, matcher, executor, limiter, c, nil),
		store:   store,
		cache:   c,
	}
}

func awaitSession(t *testing.T, sess *Session) *core.DebateResult {
	t.Helper()

	select {
	case <-sess.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}

	result, err := sess.Result()
	require.NoError(t, err)
	return result
}

func TestCreateDebateRunsToCompletion(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	sess, cached, err := f.manager.CreateDebate(ctx, core.NewSessionConfig{
		Question: "Should we migrate to Kubernetes?",
		UserID:   "user-1",
	})
	require.NoError(t, err)
	assert.Nil(t, cached)
	require.NotNil(t, sess)

	result := awaitSession(t, sess)
	assert.True(t, result.State.IsTerminal())
	assert.NotEmpty(t, result.Synthesis)
	assert.NotEmpty(t, result.Panel)

	// The concurrency slot is released and the debate counted. The
	// bookkeeping runs just after the session signals completion.
	require.Eventually(t, func() bool {
		rec, err := f.store.Get(ctx, "user-1")
		return err == nil && rec.ConcurrentDebates == 0 && rec.DebatesThisHour == 1
	}, 2*time.Second, 10*time.Millisecond)

	got, err := f.manager.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)
}

func TestCreateDebateServesCacheHit(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	sess, _, err := f.manager.CreateDebate(ctx, core.NewSessionConfig{
		Question: "Should we migrate to Kubernetes?",
		UserID:   "user-1",
	})
	require.NoError(t, err)
	first := awaitSession(t, sess)

	// The result lands in the cache just after the session signals
	// completion.
	require.Eventually(t, func() bool {
		return f.cache.GetCachedDebate("Should we migrate to Kubernetes?") != nil
	}, 2*time.Second, 10*time.Millisecond)

	// Variant spelling of the same question hits the cache and consumes
	// no quota.
	sess2, cached, err := f.manager.CreateDebate(ctx, core.NewSessionConfig{
		Question: "  SHOULD WE MIGRATE TO KUBERNETES?  ",
		UserID:   "user-2",
	})
	require.NoError(t, err)
	assert.Nil(t, sess2)
	require.NotNil(t, cached)
	assert.Equal(t, first.SessionID, cached.SessionID)

	rec, err := f.store.Get(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.DebatesThisHour)
}

func TestCreateDebateRejectsOverConcurrencyCap(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	_, err := f.store.Update(ctx, "busy-user", func(rec *ratelimit.Record) {
		rec.ConcurrentDebates = 3
	})
	require.NoError(t, err)

	_, _, err = f.manager.CreateDebate(ctx, core.NewSessionConfig{
		Question: "Should we expand to Europe?",
		UserID:   "busy-user",
	})
	require.Error(t, err)

	var rle *RateLimitedError
	require.ErrorAs(t, err, &rle)
	assert.False(t, rle.Decision.Allowed)
	assert.Contains(t, rle.Decision.Reason, "concurrent")
}

func TestCreateDebateRequiresQuestion(t *testing.T) {
	f := newManagerFixture(t)

	_, _, err := f.manager.CreateDebate(context.Background(), core.NewSessionConfig{
		Question: "   ",
		UserID:   "user-1",
	})
	assert.Error(t, err)
}

func TestGetUnknownSession(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.Get("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
