// Package config holds ricochet's process configuration: store location,
// listener ports, rate limit, and poll parameters, loadable from a YAML file
// and overridable by RICOCHET_* environment variables, in that precedence
// order with CLI flags taking final precedence in cmd/ricochet.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is ricochet's full runtime configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" json:"store"`
	Listener  ListenerConfig  `yaml:"listener" json:"listener"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Poll      PollConfig      `yaml:"poll" json:"poll"`
	Log       LogConfig       `yaml:"log" json:"log"`
}

// StoreConfig controls the sqlite-backed durable store.
type StoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

// ListenerConfig controls the HTTP and DNS callback listeners.
type ListenerConfig struct {
	HTTPAddr string `yaml:"http_addr" json:"http_addr"`
	DNSAddr  string `yaml:"dns_addr" json:"dns_addr"`
}

// RateLimitConfig controls the shared outbound injection rate limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// PollConfig controls passive-mode adaptive polling.
type PollConfig struct {
	BaseInterval time.Duration `yaml:"base_interval" json:"base_interval"`
	MaxInterval  time.Duration `yaml:"max_interval" json:"max_interval"`
	QuietRounds  int           `yaml:"quiet_rounds" json:"quiet_rounds"`
	GrowthFactor float64       `yaml:"growth_factor" json:"growth_factor"`
	MaxTotalWait time.Duration `yaml:"max_total_wait" json:"max_total_wait"`
}

// LogConfig controls the CLI's logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// DefaultConfig returns ricochet's out-of-the-box configuration.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Store: StoreConfig{
			Path: filepath.Join(home, ".ricochet", "ricochet.db"),
		},
		Listener: ListenerConfig{
			HTTPAddr: "0.0.0.0:8080",
			DNSAddr:  "0.0.0.0:5353",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Poll: PollConfig{
			BaseInterval: 5 * time.Second,
			MaxInterval:  5 * time.Minute,
			QuietRounds:  6,
			GrowthFactor: 2.0,
			MaxTotalWait: 24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads config from path (YAML), falling back to defaults for any
// field the file omits, then applies RICOCHET_* environment overrides. A
// missing path is not an error: defaults plus env overrides are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RICOCHET_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("RICOCHET_HTTP_ADDR"); v != "" {
		cfg.Listener.HTTPAddr = v
	}
	if v := os.Getenv("RICOCHET_DNS_ADDR"); v != "" {
		cfg.Listener.DNSAddr = v
	}
	if v := os.Getenv("RICOCHET_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimit.RequestsPerSecond = f
		}
	}
	if v := os.Getenv("RICOCHET_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("RICOCHET_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// Validate sanity-checks field combinations that YAML/env overrides could
// otherwise leave in an unusable state.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate_limit.requests_per_second must be positive")
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit.burst must be positive")
	}
	if c.Poll.GrowthFactor <= 1.0 {
		return fmt.Errorf("poll.growth_factor must be greater than 1.0")
	}
	return nil
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}
