// Package config provides file-based configuration with hot-reload support.
// It uses fsnotify to watch for file changes and atomic pointer swaps so
// readers never see a half-applied configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/blueberrycongee/ragcache/internal/observability"
	"github.com/blueberrycongee/ragcache/internal/resilience"
	"github.com/blueberrycongee/ragcache/internal/store"
	"github.com/blueberrycongee/ragcache/pkg/cache"
)

// Backend selects the backing store.
type Backend string

const (
	BackendRedis  Backend = "redis"  // Shared Redis store
	BackendMemory Backend = "memory" // Process-local store
)

// Config represents the complete configuration of a cache process.
type Config struct {
	Backend Backend                         `yaml:"backend"`
	Cache   cache.Config                    `yaml:"cache"`
	Redis   store.RedisConfig               `yaml:"redis"`
	Memory  store.MemoryConfig              `yaml:"memory"`
	Breaker resilience.CircuitBreakerConfig `yaml:"breaker"`
	Logging observability.LoggerConfig      `yaml:"logging"`
	Tracing observability.TracingConfig     `yaml:"tracing"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendRedis,
		Cache:   cache.DefaultConfig(),
		Redis:   store.DefaultRedisConfig(),
		Memory:  store.DefaultMemoryConfig(),
		Breaker: resilience.DefaultCircuitBreakerConfig(),
		Logging: observability.DefaultLoggerConfig(),
		Tracing: observability.DefaultTracingConfig(),
	}
}

// LoadFromFile reads and parses a YAML configuration file.
// Environment variables in the format ${VAR_NAME} are expanded.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendRedis:
		if c.Redis.Addr == "" && len(c.Redis.ClusterAddrs) == 0 && len(c.Redis.SentinelAddrs) == 0 {
			return fmt.Errorf("redis backend requires addr, cluster_addrs or sentinel_addrs")
		}
		if len(c.Redis.SentinelAddrs) > 0 && c.Redis.SentinelMaster == "" {
			return fmt.Errorf("sentinel_master is required with sentinel_addrs")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unsupported backend: %q", c.Backend)
	}

	if err := c.Cache.Validate(); err != nil {
		return err
	}

	if c.Breaker.Enabled && c.Breaker.OpenTimeout <= 0 {
		return fmt.Errorf("breaker open_timeout must be positive")
	}

	if _, err := observability.ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unsupported log format: %q", c.Logging.Format)
	}

	if err := c.Tracing.Validate(); err != nil {
		return err
	}

	return nil
}
