// Package cache deduplicates identical questions and expensive provider
// calls with TTL-bound, normalized-key caches.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/arturoyo/Quoorum-sub007/internal/core"
)

// Default TTLs per cache family.
const (
	DefaultResultTTL    = 24 * time.Hour
	DefaultResponseTTL  = 6 * time.Hour
	DefaultEmbeddingTTL = 7 * 24 * time.Hour
)

type entry[T any] struct {
	value      T
	insertedAt time.Time
	ttl        time.Duration
}

func (e entry[T]) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) >= e.ttl
}

// Cache holds the debate-result cache plus the secondary expert-response
// and embedding caches. All three share the normalize-then-hash key scheme
// so case variants of the same text collide to one key.
type Cache struct {
	mu         sync.Mutex
	results    map[string]entry[*core.DebateResult]
	responses  map[string]entry[string]
	embeddings map[string]entry[[]float64]

	resultTTL    time.Duration
	responseTTL  time.Duration
	embeddingTTL time.Duration

	now func() time.Time
}

// New creates a cache with the default TTLs.
func New() *Cache {
	return &Cache{
		results:      make(map[string]entry[*core.DebateResult]),
		responses:    make(map[string]entry[string]),
		embeddings:   make(map[string]entry[[]float64]),
		resultTTL:    DefaultResultTTL,
		responseTTL:  DefaultResponseTTL,
		embeddingTTL: DefaultEmbeddingTTL,
		now:          time.Now,
	}
}

// GenerateCacheKey normalizes a question (trim, casefold) then hashes it.
func GenerateCacheKey(question string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// CacheDebate stores a finished result under the question's normalized key.
func (c *Cache) CacheDebate(question string, result *core.DebateResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[GenerateCacheKey(question)] = entry[*core.DebateResult]{
		value:      result,
		insertedAt: c.now(),
		ttl:        c.resultTTL,
	}
}

// GetCachedDebate retrieves a cached result, or nil if absent or expired.
func (c *Cache) GetCachedDebate(question string) *core.DebateResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.results[GenerateCacheKey(question)]
	if !ok || e.expired(c.now()) {
		return nil
	}
	return e.value
}

// CacheExpertResponse stores one expert's response keyed by expert and
// question.
func (c *Cache) CacheExpertResponse(expertID, question, response string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[expertResponseKey(expertID, question)] = entry[string]{
		value:      response,
		insertedAt: c.now(),
		ttl:        c.responseTTL,
	}
}

// GetCachedExpertResponse retrieves a cached expert response.
func (c *Cache) GetCachedExpertResponse(expertID, question string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.responses[expertResponseKey(expertID, question)]
	if !ok || e.expired(c.now()) {
		return "", false
	}
	return e.value, true
}

// CacheEmbedding stores an embedding vector keyed by its source text.
func (c *Cache) CacheEmbedding(text string, vector []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embeddings[GenerateCacheKey(text)] = entry[[]float64]{
		value:      vector,
		insertedAt: c.now(),
		ttl:        c.embeddingTTL,
	}
}

// GetCachedEmbedding retrieves a cached embedding.
func (c *Cache) GetCachedEmbedding(text string) ([]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.embeddings[GenerateCacheKey(text)]
	if !ok || e.expired(c.now()) {
		return nil, false
	}
	return e.value, true
}

// ClearExpiredCache purges expired entries from all three caches and
// returns how many were removed.
func (c *Cache) ClearExpiredCache() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0

	for k, e := range c.results {
		if e.expired(now) {
			delete(c.results, k)
			removed++
		}
	}
	for k, e := range c.responses {
		if e.expired(now) {
			delete(c.responses, k)
			removed++
		}
	}
	for k, e := range c.embeddings {
		if e.expired(now) {
			delete(c.embeddings, k)
			removed++
		}
	}

	return removed
}

func expertResponseKey(expertID, question string) string {
	return expertID + ":" + GenerateCacheKey(question)
}
