package admission

import (
	"context"
	"sync"
)

// Controller owns one Limiter and QuotaMonitor per provider. It is the
// process-wide gate every outbound provider call passes through.
type Controller struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
	monitors map[string]*QuotaMonitor
	onAlert  func(QuotaAlert)
}

// NewController creates an empty controller. Limiters are created lazily
// per provider with that provider's default limits. onAlert is optional.
func NewController(onAlert func(QuotaAlert)) *Controller {
	return &Controller{
		limiters: make(map[string]*Limiter),
		monitors: make(map[string]*QuotaMonitor),
		onAlert:  onAlert,
	}
}

// WaitForCapacity gates one call to the named provider.
func (c *Controller) WaitForCapacity(ctx context.Context, providerKey string, estimatedTokens int) error {
	return c.limiterFor(providerKey).WaitForCapacity(ctx, estimatedTokens)
}

// ShouldSwitchProvider reports whether the provider is near exhaustion and
// the caller should fail over.
func (c *Controller) ShouldSwitchProvider(providerKey string) bool {
	c.mu.Lock()
	monitor, ok := c.monitors[providerKey]
	c.mu.Unlock()
	return ok && monitor.ShouldSwitchProvider()
}

// Alerts returns the retained alerts for one provider.
func (c *Controller) Alerts(providerKey string) []QuotaAlert {
	c.mu.Lock()
	monitor, ok := c.monitors[providerKey]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return monitor.Alerts()
}

// SetLimits installs explicit limits for a provider, replacing any lazily
// created limiter. Intended for config overrides and tier upgrades.
func (c *Controller) SetLimits(providerKey string, limits Limits) {
	c.mu.Lock()
	defer c.mu.Unlock()
	monitor := NewQuotaMonitor(providerKey, limits, c.onAlert)
	c.monitors[providerKey] = monitor
	c.limiters[providerKey] = NewLimiterWithLimits(providerKey, limits, monitor)
}

func (c *Controller) limiterFor(providerKey string) *Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if l, ok := c.limiters[providerKey]; ok {
		return l
	}
	limits := LimitsFor(providerKey)
	monitor := NewQuotaMonitor(providerKey, limits, c.onAlert)
	c.monitors[providerKey] = monitor
	l := NewLimiterWithLimits(providerKey, limits, monitor)
	c.limiters[providerKey] = l
	return l
}
