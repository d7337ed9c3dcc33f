// Package telemetry emits provider usage events and quota alerts to
// pluggable sinks, with a Prometheus implementation for production.
package telemetry

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// UsageEvent describes one completed provider call.
type UsageEvent struct {
	Provider string
	Model    string
	Tokens   int
	Latency  time.Duration
	Success  bool
	CostUSD  float64
	Feature  string
}

// Sink receives usage events. Delivery and aggregation are the sink's
// concern; callers fire and forget.
type Sink interface {
	RecordUsage(ev UsageEvent)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordUsage(UsageEvent) {}

// LogSink writes events to slog at debug level.
type LogSink struct{}

func (LogSink) RecordUsage(ev UsageEvent) {
	slog.Debug("Provider usage",
		"provider", ev.Provider, "model", ev.Model, "tokens", ev.Tokens,
		"latency", ev.Latency, "success", ev.Success, "cost_usd", ev.CostUSD,
		"feature", ev.Feature)
}

// PrometheusSink exports usage events as Prometheus metrics.
type PrometheusSink struct {
	calls   *prometheus.CounterVec
	tokens  *prometheus.CounterVec
	cost    *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewPrometheusSink registers the engine's metrics on a registerer. Pass
// prometheus.DefaultRegisterer for the global registry.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	factory := promauto.With(reg)
	return &PrometheusSink{
		calls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quoorum_provider_calls_total",
			Help: "Completed provider calls by provider, model, and outcome.",
		}, []string{"provider", "model", "success", "feature"}),
		tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quoorum_provider_tokens_total",
			Help: "Tokens consumed per provider and model.",
		}, []string{"provider", "model"}),
		cost: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quoorum_provider_cost_usd_total",
			Help: "Estimated provider spend in USD.",
		}, []string{"provider", "model"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quoorum_provider_latency_seconds",
			Help:    "Provider call latency.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"provider", "model"}),
	}
}

// RecordUsage exports one event.
func (s *PrometheusSink) RecordUsage(ev UsageEvent) {
	success := "false"
	if ev.Success {
		success = "true"
	}
	s.calls.WithLabelValues(ev.Provider, ev.Model, success, ev.Feature).Inc()
	s.tokens.WithLabelValues(ev.Provider, ev.Model).Add(float64(ev.Tokens))
	s.cost.WithLabelValues(ev.Provider, ev.Model).Add(ev.CostUSD)
	s.latency.WithLabelValues(ev.Provider, ev.Model).Observe(ev.Latency.Seconds())
}

// MultiSink fans one event out to several sinks.
type MultiSink []Sink

func (m MultiSink) RecordUsage(ev UsageEvent) {
	for _, s := range m {
		s.RecordUsage(ev)
	}
}
