package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/arturoyo/Quoorum-sub007/internal/analyzer"
	"github.com/arturoyo/Quoorum-sub007/internal/cache"
	"github.com/arturoyo/Quoorum-sub007/internal/core"
	"github.com/arturoyo/Quoorum-sub007/internal/expert"
	"github.com/arturoyo/Quoorum-sub007/internal/ratelimit"
	"github.com/arturoyo/Quoorum-sub007/internal/storage"
)

// ErrSessionNotFound is returned for lookups of unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// RateLimitedError rejects a debate creation because the user is over a
// business cap. It carries the denial so callers can surface the reason
// and retry hint.
type RateLimitedError struct {
	Decision ratelimit.Decision
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: %s", e.Decision.Reason)
}

// Manager wires question analysis, expert matching, rate limiting,
// caching, and storage around debate sessions.
type Manager struct {
	analyzer *analyzer.Analyzer
	matcher  *expert.Matcher
	executor *Executor
	limiter  *ratelimit.Limiter
	cache    *cache.Cache
	store    storage.Storage // optional

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager. store may be nil when persistence is
// disabled.
func NewManager(an *analyzer.Analyzer, matcher *expert.Matcher, executor *Executor, limiter *ratelimit.Limiter, c *cache.Cache, store storage.Storage) *Manager {
	if c == nil {
		c = cache.New()
	}
	return &Manager{
		analyzer: an,
		matcher:  matcher,
		executor: executor,
		limiter:  limiter,
		cache:    c,
		store:    store,
		sessions: make(map[string]*Session),
	}
}

// CreateDebate runs the full admission pipeline for a new debate. On a
// cache hit it returns the cached result and no session. Otherwise it
// starts the session in the background and returns it immediately.
func (m *Manager) CreateDebate(ctx context.Context, cfg core.NewSessionConfig) (*Session, *core.DebateResult, error) {
	question := strings.TrimSpace(cfg.Question)
	if question == "" {
		return nil, nil, fmt.Errorf("question is required")
	}

	if cached := m.cache.GetCachedDebate(question); cached != nil {
		slog.Info("Debate served from cache", "user", cfg.UserID)
		return nil, cached, nil
	}

	// Rate limiting is a synchronous rejection, never a queue.
	decision, err := m.limiter.CheckRateLimit(ctx, cfg.UserID, cfg.Premium)
	if err != nil {
		return nil, nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if !decision.Allowed {
		return nil, nil, &RateLimitedError{Decision: decision}
	}

	analysis, err := m.analyzer.Analyze(ctx, question, cfg.Context)
	if err != nil {
		return nil, nil, fmt.Errorf("question analysis failed: %w", err)
	}

	opts := expert.DefaultMatchOptions()
	if cfg.ExpertCount > 0 {
		opts.MaxExperts = cfg.ExpertCount
	}
	panel := m.matcher.MatchExperts(analysis, opts)

	if vr := expert.ValidateMatching(panel); !vr.Valid {
		return nil, nil, fmt.Errorf("expert matching rejected: %s", strings.Join(vr.Issues, "; "))
	}

	if err := m.limiter.IncrementDebateCounter(ctx, cfg.UserID); err != nil {
		return nil, nil, fmt.Errorf("failed to reserve debate slot: %w", err)
	}

	sessCfg := DefaultConfig()
	if cfg.MaxRounds > 0 {
		sessCfg.MaxRounds = cfg.MaxRounds
	}
	if cfg.ConsensusThreshold > 0 {
		sessCfg.ConsensusThreshold = cfg.ConsensusThreshold
	}

	sess := New(question, cfg.Context, panel, sessCfg, m.executor)

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	// The session outlives the creating request.
	go m.runSession(context.WithoutCancel(ctx), sess, cfg.UserID, question)

	return sess, nil, nil
}

func (m *Manager) runSession(ctx context.Context, sess *Session, userID, question string) {
	result, err := sess.Run(ctx)

	// Release the concurrency slot and account spend no matter how the
	// session ended.
	releaseCtx := context.Background()
	if derr := m.limiter.DecrementConcurrentDebates(releaseCtx, userID); derr != nil {
		slog.Error("Failed to release concurrency slot", "user", userID, "error", derr)
	}
	if cost := sess.CostUSD(); cost > 0 {
		if cerr := m.limiter.RecordCost(releaseCtx, userID, cost); cerr != nil {
			slog.Error("Failed to record debate cost", "user", userID, "error", cerr)
		}
	}

	if err != nil || result == nil {
		return
	}

	// Failed sessions are never cached.
	m.cache.CacheDebate(question, result)

	if m.store != nil {
		if serr := m.store.SaveResult(releaseCtx, result); serr != nil {
			slog.Error("Failed to persist debate result", "session", sess.ID, "error", serr)
		}
	}
}

// Get returns a session by id.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return sess, nil
}

// List returns all tracked sessions.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}
