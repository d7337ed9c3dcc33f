// Package ratelimit enforces per-user business quotas on debate creation,
// independent of provider-level admission control.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Record is the per-user rate-limit state. Window resets are lazy: they
// are applied when the record is next read, not by a background timer.
type Record struct {
	DebatesThisHour   int       `json:"debates_this_hour"`
	HourWindowStart   time.Time `json:"hour_window_start"`
	DebatesThisDay    int       `json:"debates_this_day"`
	DayWindowStart    time.Time `json:"day_window_start"`
	CostToday         float64   `json:"cost_today"`
	ConcurrentDebates int       `json:"concurrent_debates"`
}

// Store is the pluggable record store behind the limiter. The in-memory
// implementation serves tests and single-node deployments; the Redis
// implementation serves shared deployments.
type Store interface {
	// Update atomically reads, mutates, and writes one user's record.
	Update(ctx context.Context, userID string, fn func(*Record)) (Record, error)

	// Get returns one user's record without mutating it.
	Get(ctx context.Context, userID string) (Record, error)
}

// MemoryStore is a mutex-protected in-memory Store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Update applies fn to the user's record under the store lock.
func (s *MemoryStore) Update(_ context.Context, userID string, fn func(*Record)) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		rec = &Record{}
		s.records[userID] = rec
	}
	fn(rec)
	return *rec, nil
}

// Get returns a copy of the user's record.
func (s *MemoryStore) Get(_ context.Context, userID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[userID]; ok {
		return *rec, nil
	}
	return Record{}, nil
}
