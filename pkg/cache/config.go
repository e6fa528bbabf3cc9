package cache

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Config holds the recognized cache options.
type Config struct {
	// SimilarityThreshold is the minimum cosine similarity for a semantic hit (0.0-1.0).
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// DefaultTTL applies to writes that do not carry their own TTL.
	DefaultTTL time.Duration `yaml:"default_ttl"`

	// MaxCacheSize bounds the number of indexed entries.
	MaxCacheSize int `yaml:"max_cache_size"`

	// KeyNamespacePrefix scopes every store key this cache touches.
	KeyNamespacePrefix string `yaml:"key_namespace_prefix"`

	// ScanLimit bounds the similarity candidate pool. Zero means MaxCacheSize.
	ScanLimit int `yaml:"scan_limit"`

	// StoreTimeout bounds every individual store call. It must be positive.
	StoreTimeout time.Duration `yaml:"store_timeout"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.95,
		DefaultTTL:          time.Hour,
		MaxCacheSize:        10000,
		KeyNamespacePrefix:  "ragcache",
		StoreTimeout:        500 * time.Millisecond,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := ValidateThreshold(c.SimilarityThreshold); err != nil {
		return err
	}
	if c.MaxCacheSize <= 0 {
		return fmt.Errorf("%w: max_cache_size must be positive, got %d", ErrInvalidConfig, c.MaxCacheSize)
	}
	if c.DefaultTTL <= 0 {
		return fmt.Errorf("%w: default_ttl must be positive, got %s", ErrInvalidConfig, c.DefaultTTL)
	}
	if strings.TrimSpace(c.KeyNamespacePrefix) == "" {
		return fmt.Errorf("%w: key_namespace_prefix is required", ErrInvalidConfig)
	}
	if strings.ContainsAny(c.KeyNamespacePrefix, "{}") {
		return fmt.Errorf("%w: key_namespace_prefix must not contain braces", ErrInvalidConfig)
	}
	if c.ScanLimit < 0 {
		return fmt.Errorf("%w: scan_limit must not be negative", ErrInvalidConfig)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("%w: store_timeout must be positive, got %s", ErrInvalidConfig, c.StoreTimeout)
	}
	return nil
}

// ValidateThreshold rejects thresholds outside [0,1], NaN included.
func ValidateThreshold(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return fmt.Errorf("%w: similarity_threshold must be between 0 and 1, got %v", ErrInvalidConfig, t)
	}
	return nil
}

// EffectiveScanLimit returns ScanLimit, falling back to MaxCacheSize.
func (c *Config) EffectiveScanLimit() int {
	if c.ScanLimit > 0 {
		return c.ScanLimit
	}
	return c.MaxCacheSize
}
