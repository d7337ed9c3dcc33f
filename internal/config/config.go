// Package config handles application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/arturoyo/Quoorum-sub007/internal/admission"
	"github.com/arturoyo/Quoorum-sub007/internal/core"
	"github.com/arturoyo/Quoorum-sub007/internal/expert"
	"github.com/arturoyo/Quoorum-sub007/internal/provider"
	"github.com/arturoyo/Quoorum-sub007/internal/ratelimit"
)

// Config represents the application configuration.
type Config struct {
	Defaults   DefaultsConfig            `yaml:"defaults"`
	Providers  map[string]ProviderConfig `yaml:"providers"`
	Experts    []core.Expert             `yaml:"experts,omitempty"`
	RateLimits RateLimitsConfig          `yaml:"rate_limits"`
	Server     ServerConfig              `yaml:"server,omitempty"`
	Storage    StorageConfig             `yaml:"storage,omitempty"`
}

// DefaultsConfig holds default session settings.
type DefaultsConfig struct {
	MaxRounds          int     `yaml:"max_rounds"`
	ConsensusThreshold float64 `yaml:"consensus_threshold"`
	QuorumFraction     float64 `yaml:"quorum_fraction"`
	MinExperts         int     `yaml:"min_experts"`
	MaxExperts         int     `yaml:"max_experts"`
	AnalyzerProvider   string  `yaml:"analyzer_provider"`
	AnalyzerModel      string  `yaml:"analyzer_model"`
}

// ProviderConfig holds per-provider settings and admission limits.
type ProviderConfig struct {
	DefaultModel      string `yaml:"default_model,omitempty"`
	RequestsPerMinute int    `yaml:"requests_per_minute,omitempty"`
	TokensPerMinute   int    `yaml:"tokens_per_minute,omitempty"`
	RequestsPerDay    int    `yaml:"requests_per_day,omitempty"`
	Enabled           bool   `yaml:"enabled"`
}

// RateLimitsConfig holds the business caps for both tiers. When
// RedisAddr is set, rate-limit records are shared across instances;
// otherwise they live in process memory.
type RateLimitsConfig struct {
	Standard  ratelimit.Caps `yaml:"standard"`
	Premium   ratelimit.Caps `yaml:"premium"`
	RedisAddr string         `yaml:"redis_addr,omitempty"`
}

// ServerConfig holds server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// Default returns the default configuration.
func Default() *Config {
	providers := make(map[string]ProviderConfig)
	for _, name := range []string{"claude", "openai", "gemini", "mock"} {
		limits := admission.LimitsFor(name)
		providers[name] = ProviderConfig{
			RequestsPerMinute: limits.RequestsPerMinute,
			TokensPerMinute:   limits.TokensPerMinute,
			RequestsPerDay:    limits.RequestsPerDay,
			Enabled:           true,
		}
	}

	return &Config{
		Defaults: DefaultsConfig{
			MaxRounds:          5,
			ConsensusThreshold: 0.8,
			QuorumFraction:     0.5,
			MinExperts:         3,
			MaxExperts:         5,
			AnalyzerProvider:   "claude",
		},
		Providers: providers,
		RateLimits: RateLimitsConfig{
			Standard: ratelimit.DefaultCaps,
			Premium:  ratelimit.PremiumCaps,
		},
		Server: ServerConfig{
			Port: 8184,
		},
		Storage: StorageConfig{
			Path: filepath.Join(defaultConfigDir(), "quoorum.db"),
		},
	}
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.yaml")
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".quoorum"
	}
	return filepath.Join(home, ".quoorum")
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigPath())
}

// LoadFrom loads configuration from a specific path. A missing file is
// not an error; defaults apply.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Merge with defaults for any missing providers.
	defaultCfg := Default()
	for name, defaultProvider := range defaultCfg.Providers {
		if _, exists := cfg.Providers[name]; !exists {
			cfg.Providers[name] = defaultProvider
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// SaveTo saves the configuration to a specific path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QUOORUM_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("QUOORUM_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
}

// CreateRegistry builds a provider registry from the enabled providers.
// Providers are simulated; each enabled entry gets a scripted backend.
func (c *Config) CreateRegistry() *provider.Registry {
	registry := provider.NewRegistry()
	for name, provCfg := range c.Providers {
		if !provCfg.Enabled {
			continue
		}
		registry.Register(provider.NewMock(name))
	}
	return registry
}

// CreateExpertRegistry builds the expert catalog: built-in experts plus
// any configured additions.
func (c *Config) CreateExpertRegistry() (*expert.Registry, error) {
	registry := expert.NewRegistry()
	for _, e := range c.Experts {
		if err := registry.Register(e); err != nil {
			return nil, fmt.Errorf("invalid expert %q: %w", e.ID, err)
		}
	}
	return registry, nil
}

// ApplyAdmissionLimits pushes the configured provider limits into the
// admission controller. Zero-valued fields keep the built-in defaults.
func (c *Config) ApplyAdmissionLimits(ctrl *admission.Controller) {
	for name, provCfg := range c.Providers {
		if !provCfg.Enabled {
			continue
		}
		limits := admission.LimitsFor(name)
		if provCfg.RequestsPerMinute > 0 {
			limits.RequestsPerMinute = provCfg.RequestsPerMinute
		}
		if provCfg.TokensPerMinute > 0 {
			limits.TokensPerMinute = provCfg.TokensPerMinute
		}
		if provCfg.RequestsPerDay > 0 {
			limits.RequestsPerDay = provCfg.RequestsPerDay
		}
		ctrl.SetLimits(name, limits)
	}
}

// CapsFor returns the business caps for a tier.
func (c *Config) CapsFor(premium bool) ratelimit.Caps {
	if premium {
		return c.RateLimits.Premium
	}
	return c.RateLimits.Standard
}
