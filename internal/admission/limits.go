// Package admission gates outbound language-model calls with per-provider
// token-bucket rate limiting and advisory quota monitoring.
package admission

// Limits holds per-provider rate limits. Immutable except on explicit tier
// upgrade.
type Limits struct {
	RequestsPerMinute int
	TokensPerMinute   int
	RequestsPerDay    int
}

// defaultLimits maps provider keys to their known rate limits.
var defaultLimits = map[string]Limits{
	"claude": {
		RequestsPerMinute: 3,
		TokensPerMinute:   150_000,
		RequestsPerDay:    200,
	},
	"openai": {
		RequestsPerMinute: 60,
		TokensPerMinute:   100_000,
		RequestsPerDay:    10_000,
	},
	"gemini": {
		RequestsPerMinute: 15,
		TokensPerMinute:   1_000_000,
		RequestsPerDay:    1_500,
	},
}

// genericLimits is the fallback for unknown providers.
var genericLimits = Limits{
	RequestsPerMinute: 20,
	TokensPerMinute:   80_000,
	RequestsPerDay:    2_000,
}

// LimitsFor returns the configured limits for a provider key, falling back
// to a conservative generic default.
func LimitsFor(providerKey string) Limits {
	if l, ok := defaultLimits[providerKey]; ok {
		return l
	}
	return genericLimits
}
