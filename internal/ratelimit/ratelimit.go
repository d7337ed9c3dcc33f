package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Caps are the per-user limits for one tier.
type Caps struct {
	DebatesPerHour    int
	DebatesPerDay     int
	ConcurrentDebates int
	DailyCostUSD      float64
}

// DefaultCaps apply to standard users.
var DefaultCaps = Caps{
	DebatesPerHour:    10,
	DebatesPerDay:     50,
	ConcurrentDebates: 3,
	DailyCostUSD:      10,
}

// PremiumCaps apply to premium users.
var PremiumCaps = Caps{
	DebatesPerHour:    50,
	DebatesPerDay:     500,
	ConcurrentDebates: 10,
	DailyCostUSD:      100,
}

// Decision is the outcome of a rate-limit check. A denial is a value, not
// an error: it carries a human-readable reason and a retry hint.
type Decision struct {
	Allowed    bool          `json:"allowed"`
	Reason     string        `json:"reason,omitempty"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Limiter gates debate creation per user over a pluggable record store.
// It is a process-wide shared service; all mutation is serialized by the
// store.
type Limiter struct {
	store    Store
	standard Caps
	premium  Caps
	now      func() time.Time
}

// NewLimiter creates a business rate limiter over a store with the
// built-in tier caps.
func NewLimiter(store Store) *Limiter {
	return &Limiter{
		store:    store,
		standard: DefaultCaps,
		premium:  PremiumCaps,
		now:      time.Now,
	}
}

// SetCaps replaces the tier caps, typically from configuration.
func (l *Limiter) SetCaps(standard, premium Caps) {
	l.standard = standard
	l.premium = premium
}

// CheckRateLimit evaluates the user's quotas in order: concurrent cap,
// hourly cap, daily cap, daily cost cap. The first violated limit's reason
// and retry-after are returned. A check never consumes quota.
func (l *Limiter) CheckRateLimit(ctx context.Context, userID string, premium bool) (Decision, error) {
	caps := l.standard
	if premium {
		caps = l.premium
	}

	rec, err := l.store.Get(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read rate-limit record: %w", err)
	}

	now := l.now()
	applyLazyResets(&rec, now)

	if rec.ConcurrentDebates >= caps.ConcurrentDebates {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("concurrent debate limit reached (%d active)", rec.ConcurrentDebates),
		}, nil
	}

	if rec.DebatesThisHour >= caps.DebatesPerHour {
		return Decision{
			Allowed:    false,
			Reason:     fmt.Sprintf("hourly debate limit of %d reached", caps.DebatesPerHour),
			RetryAfter: windowRemaining(rec.HourWindowStart, time.Hour, now),
		}, nil
	}

	if rec.DebatesThisDay >= caps.DebatesPerDay {
		return Decision{
			Allowed:    false,
			Reason:     fmt.Sprintf("daily debate limit of %d reached", caps.DebatesPerDay),
			RetryAfter: windowRemaining(rec.DayWindowStart, 24*time.Hour, now),
		}, nil
	}

	if rec.CostToday >= caps.DailyCostUSD {
		return Decision{
			Allowed:    false,
			Reason:     fmt.Sprintf("daily cost limit of $%.2f reached", caps.DailyCostUSD),
			RetryAfter: windowRemaining(rec.DayWindowStart, 24*time.Hour, now),
		}, nil
	}

	return Decision{Allowed: true}, nil
}

// IncrementDebateCounter records an actual debate start: hourly and daily
// counters plus the concurrency counter. Call only after the debate truly
// starts.
func (l *Limiter) IncrementDebateCounter(ctx context.Context, userID string) error {
	now := l.now()
	_, err := l.store.Update(ctx, userID, func(rec *Record) {
		applyLazyResets(rec, now)
		if rec.HourWindowStart.IsZero() {
			rec.HourWindowStart = now
		}
		if rec.DayWindowStart.IsZero() {
			rec.DayWindowStart = now
		}
		rec.DebatesThisHour++
		rec.DebatesThisDay++
		rec.ConcurrentDebates++
	})
	if err != nil {
		return fmt.Errorf("failed to increment debate counter: %w", err)
	}
	return nil
}

// DecrementConcurrentDebates releases one concurrency slot. A crash
// between increment and decrement leaks the slot for this user; a
// production deployment should back the store with expiring leases.
func (l *Limiter) DecrementConcurrentDebates(ctx context.Context, userID string) error {
	_, err := l.store.Update(ctx, userID, func(rec *Record) {
		if rec.ConcurrentDebates > 0 {
			rec.ConcurrentDebates--
		}
	})
	if err != nil {
		return fmt.Errorf("failed to decrement concurrency: %w", err)
	}
	return nil
}

// RecordCost adds provider spend to the user's daily cost window.
func (l *Limiter) RecordCost(ctx context.Context, userID string, costUSD float64) error {
	now := l.now()
	_, err := l.store.Update(ctx, userID, func(rec *Record) {
		applyLazyResets(rec, now)
		if rec.DayWindowStart.IsZero() {
			rec.DayWindowStart = now
		}
		rec.CostToday += costUSD
	})
	if err != nil {
		return fmt.Errorf("failed to record cost: %w", err)
	}
	slog.Debug("Recorded debate cost", "user", userID, "cost_usd", costUSD)
	return nil
}

// applyLazyResets zeroes expired windows. Resets happen on read, never via
// a background timer.
func applyLazyResets(rec *Record, now time.Time) {
	if !rec.HourWindowStart.IsZero() && now.Sub(rec.HourWindowStart) >= time.Hour {
		rec.DebatesThisHour = 0
		rec.HourWindowStart = now
	}
	if !rec.DayWindowStart.IsZero() && now.Sub(rec.DayWindowStart) >= 24*time.Hour {
		rec.DebatesThisDay = 0
		rec.CostToday = 0
		rec.DayWindowStart = now
	}
}

func windowRemaining(start time.Time, window time.Duration, now time.Time) time.Duration {
	if start.IsZero() {
		return 0
	}
	remaining := start.Add(window).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining.Round(time.Second)
}
