package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrQuotaExceeded is returned when the daily request cap has been reached.
// The wrapping QuotaExceededError carries the time until reset.
var ErrQuotaExceeded = errors.New("daily request quota exceeded")

// QuotaExceededError reports a hit daily cap and when it resets.
type QuotaExceededError struct {
	Provider string
	ResetIn  time.Duration
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily request quota exceeded for %s, resets in %d minutes",
		e.Provider, int(e.ResetIn.Minutes())+1)
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }

// Limiter is a shared, per-provider token bucket. All concurrent sessions
// coordinate through one Limiter instance per provider; refill and debit
// are serialized under a single mutex. Waiters are admitted in FIFO order.
type Limiter struct {
	provider string
	limits   Limits
	monitor  *QuotaMonitor

	mu            sync.Mutex
	tokens        float64
	requests      float64
	lastRefill    time.Time
	requestsToday int
	dayStart      time.Time
	queue         []chan struct{}

	now func() time.Time
}

// NewLimiter creates a limiter for a provider with its default limits.
// The monitor is optional; when set, every admitted call is recorded for
// advisory alerting.
func NewLimiter(providerKey string, monitor *QuotaMonitor) *Limiter {
	return NewLimiterWithLimits(providerKey, LimitsFor(providerKey), monitor)
}

// NewLimiterWithLimits creates a limiter with explicit limits.
func NewLimiterWithLimits(providerKey string, limits Limits, monitor *QuotaMonitor) *Limiter {
	now := time.Now()
	return &Limiter{
		provider:   providerKey,
		limits:     limits,
		monitor:    monitor,
		tokens:     float64(limits.TokensPerMinute),
		requests:   float64(limits.RequestsPerMinute),
		lastRefill: now,
		dayStart:   now,
		now:        time.Now,
	}
}

// UpgradeLimits replaces the limits on an explicit tier upgrade.
func (l *Limiter) UpgradeLimits(limits Limits) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits = limits
}

// WaitForCapacity suspends the caller until both token and request capacity
// are available, then atomically debits both before returning. It fails
// with a QuotaExceededError once the daily request cap is reached, and with
// ctx.Err() if the context is cancelled while waiting.
func (l *Limiter) WaitForCapacity(ctx context.Context, estimatedTokens int) error {
	// FIFO: chain behind the current tail of the queue.
	ready := make(chan struct{})
	l.mu.Lock()
	var prev chan struct{}
	if n := len(l.queue); n > 0 {
		prev = l.queue[n-1]
	}
	l.queue = append(l.queue, ready)
	l.mu.Unlock()

	defer func() {
		close(ready)
		l.mu.Lock()
		for i, ch := range l.queue {
			if ch == ready {
				l.queue = append(l.queue[:i], l.queue[i+1:]...)
				break
			}
		}
		l.mu.Unlock()
	}()

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// Head of the queue: sleep until refill provides enough capacity.
	for {
		l.mu.Lock()
		l.refillLocked()

		if l.requestsToday >= l.limits.RequestsPerDay {
			resetIn := l.dayStart.Add(24 * time.Hour).Sub(l.now())
			l.mu.Unlock()
			return &QuotaExceededError{Provider: l.provider, ResetIn: resetIn}
		}

		if l.tokens >= float64(estimatedTokens) && l.requests >= 1 {
			l.tokens -= float64(estimatedTokens)
			l.requests--
			l.requestsToday++
			l.mu.Unlock()
			if l.monitor != nil {
				l.monitor.RecordUsage(estimatedTokens)
			}
			return nil
		}

		wait := l.timeUntilAvailableLocked(estimatedTokens)
		l.mu.Unlock()

		slog.Debug("Waiting for provider capacity",
			"provider", l.provider, "estimated_tokens", estimatedTokens, "wait", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refillLocked applies continuous linear refill, capped at the configured
// per-minute maxima, and resets the daily window when it rolls over.
func (l *Limiter) refillLocked() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill)
	if elapsed > 0 {
		perMs := elapsed.Seconds() * 1000 / 60_000
		l.tokens = min(float64(l.limits.TokensPerMinute), l.tokens+perMs*float64(l.limits.TokensPerMinute))
		l.requests = min(float64(l.limits.RequestsPerMinute), l.requests+perMs*float64(l.limits.RequestsPerMinute))
		l.lastRefill = now
	}

	if now.Sub(l.dayStart) >= 24*time.Hour {
		l.requestsToday = 0
		l.dayStart = now
	}
}

// timeUntilAvailableLocked estimates how long refill needs to cover the
// current deficit.
func (l *Limiter) timeUntilAvailableLocked(estimatedTokens int) time.Duration {
	var wait time.Duration

	if deficit := float64(estimatedTokens) - l.tokens; deficit > 0 {
		ms := deficit / float64(l.limits.TokensPerMinute) * 60_000
		wait = time.Duration(ms * float64(time.Millisecond))
	}
	if l.requests < 1 {
		ms := (1 - l.requests) / float64(l.limits.RequestsPerMinute) * 60_000
		if d := time.Duration(ms * float64(time.Millisecond)); d > wait {
			wait = d
		}
	}

	if wait < 10*time.Millisecond {
		wait = 10 * time.Millisecond
	}
	return wait
}

// Snapshot returns the current bucket levels, refilled to now.
func (l *Limiter) Snapshot() (tokens, requests float64, requestsToday int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked()
	return l.tokens, l.requests, l.requestsToday
}
