package admission

import (
	"log/slog"
	"sync"
	"time"
)

// Metric identifies which limit an alert refers to.
type Metric string

const (
	MetricRPM Metric = "rpm"
	MetricTPM Metric = "tpm"
	MetricRPD Metric = "rpd"
)

// AlertType is the escalation level of a quota alert.
type AlertType string

const (
	AlertWarning  AlertType = "warning"  // 80%
	AlertCritical AlertType = "critical" // 95%
	AlertExceeded AlertType = "exceeded" // 100%
)

// QuotaAlert is an advisory notification that usage crossed a threshold.
type QuotaAlert struct {
	Provider  string    `json:"provider"`
	Metric    Metric    `json:"metric"`
	Type      AlertType `json:"type"`
	Percent   float64   `json:"percent"`
	Current   int       `json:"current"`
	Limit     int       `json:"limit"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	warningThreshold  = 80.0
	criticalThreshold = 95.0
	exceededThreshold = 100.0

	// Identical (metric,type) alerts are suppressed within this window.
	alertSuppression = 60 * time.Second

	// Only the most recent alerts are retained.
	alertBufferSize = 20
)

// QuotaMonitor independently tracks provider usage to produce advisory
// alerts. It never gates calls; the Limiter does that.
type QuotaMonitor struct {
	provider string
	limits   Limits

	mu               sync.Mutex
	requestsMinute   int
	tokensMinute     int
	requestsDay      int
	minuteStart      time.Time
	dayStart         time.Time
	alerts           []QuotaAlert
	lastAlert        map[string]time.Time
	onAlert          func(QuotaAlert)

	now func() time.Time
}

// NewQuotaMonitor creates a monitor for a provider. onAlert is optional
// and is invoked outside the monitor's lock for every emitted alert.
func NewQuotaMonitor(providerKey string, limits Limits, onAlert func(QuotaAlert)) *QuotaMonitor {
	now := time.Now()
	return &QuotaMonitor{
		provider:    providerKey,
		limits:      limits,
		minuteStart: now,
		dayStart:    now,
		lastAlert:   make(map[string]time.Time),
		onAlert:     onAlert,
		now:         time.Now,
	}
}

// RecordUsage adds one request and its token count to the usage windows,
// then evaluates alert thresholds.
func (m *QuotaMonitor) RecordUsage(tokens int) {
	m.mu.Lock()

	now := m.now()
	if now.Sub(m.minuteStart) >= time.Minute {
		m.requestsMinute = 0
		m.tokensMinute = 0
		m.minuteStart = now
	}
	if now.Sub(m.dayStart) >= 24*time.Hour {
		m.requestsDay = 0
		m.dayStart = now
	}

	m.requestsMinute++
	m.tokensMinute += tokens
	m.requestsDay++

	var fired []QuotaAlert
	fired = append(fired, m.checkMetricLocked(MetricRPM, m.requestsMinute, m.limits.RequestsPerMinute)...)
	fired = append(fired, m.checkMetricLocked(MetricTPM, m.tokensMinute, m.limits.TokensPerMinute)...)
	fired = append(fired, m.checkMetricLocked(MetricRPD, m.requestsDay, m.limits.RequestsPerDay)...)
	m.mu.Unlock()

	for _, alert := range fired {
		slog.Warn("Provider quota alert",
			"provider", alert.Provider, "metric", alert.Metric, "type", alert.Type,
			"percent", alert.Percent, "current", alert.Current, "limit", alert.Limit)
		if m.onAlert != nil {
			m.onAlert(alert)
		}
	}
}

// checkMetricLocked evaluates one metric against the escalation thresholds.
// Each (metric,type) pair is suppressed for 60s after firing; escalation to
// a higher type still fires within that window.
func (m *QuotaMonitor) checkMetricLocked(metric Metric, current, limit int) []QuotaAlert {
	if limit <= 0 {
		return nil
	}
	percent := float64(current) / float64(limit) * 100

	var alertType AlertType
	switch {
	case percent >= exceededThreshold:
		alertType = AlertExceeded
	case percent >= criticalThreshold:
		alertType = AlertCritical
	case percent >= warningThreshold:
		alertType = AlertWarning
	default:
		return nil
	}

	key := string(metric) + ":" + string(alertType)
	now := m.now()
	if last, ok := m.lastAlert[key]; ok && now.Sub(last) < alertSuppression {
		return nil
	}
	m.lastAlert[key] = now

	alert := QuotaAlert{
		Provider:  m.provider,
		Metric:    metric,
		Type:      alertType,
		Percent:   percent,
		Current:   current,
		Limit:     limit,
		Timestamp: now,
	}

	m.alerts = append(m.alerts, alert)
	if len(m.alerts) > alertBufferSize {
		m.alerts = m.alerts[len(m.alerts)-alertBufferSize:]
	}

	return []QuotaAlert{alert}
}

// Alerts returns a copy of the retained alert buffer.
func (m *QuotaMonitor) Alerts() []QuotaAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]QuotaAlert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

// ShouldSwitchProvider reports whether any metric has reached the critical
// threshold, signalling the orchestration layer to fail over.
func (m *QuotaMonitor) ShouldSwitchProvider() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.limits.RequestsPerMinute > 0 &&
		float64(m.requestsMinute)/float64(m.limits.RequestsPerMinute)*100 >= criticalThreshold {
		return true
	}
	if m.limits.TokensPerMinute > 0 &&
		float64(m.tokensMinute)/float64(m.limits.TokensPerMinute)*100 >= criticalThreshold {
		return true
	}
	if m.limits.RequestsPerDay > 0 &&
		float64(m.requestsDay)/float64(m.limits.RequestsPerDay)*100 >= criticalThreshold {
		return true
	}
	return false
}

// Usage returns the current window counters.
func (m *QuotaMonitor) Usage() (requestsMinute, tokensMinute, requestsDay int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestsMinute, m.tokensMinute, m.requestsDay
}
