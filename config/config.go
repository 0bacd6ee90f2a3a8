// Package config loads and validates Merx service configuration.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then MERX_* environment variable overrides. Later layers win. The loaded
// config is validated before it is returned, so a running service never
// holds an invalid configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/merxcommerce/merx/errors"
	"github.com/merxcommerce/merx/pkg/cache"
)

// EnvPrefix is the prefix for all environment variable overrides.
const EnvPrefix = "MERX"

// ServiceConfig identifies the running service instance.
type ServiceConfig struct {
	Name        string `json:"name" yaml:"name"`
	Environment string `json:"environment" yaml:"environment"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
	Path    string `json:"path" yaml:"path"`
}

// Config is the complete service configuration.
type Config struct {
	Service ServiceConfig `json:"service" yaml:"service"`
	Cache   cache.Config  `json:"cache" yaml:"cache"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "merx",
			Environment: "development",
		},
		Cache: cache.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate",
			"service name cannot be empty")
	}
	if err := c.Cache.Validate(); err != nil {
		return errors.Wrap(err, "config", "Validate", "cache configuration")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate",
			"metrics addr cannot be empty when metrics are enabled")
	}
	return nil
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment overrides, in that order. An empty path skips the file layer;
// the path itself can come from MERX_CONFIG_FILE.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG_FILE")
	}
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapInvalid(err, "config", "loadFile",
			fmt.Sprintf("read config file %s", path))
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.WrapInvalid(err, "config", "loadFile",
			fmt.Sprintf("parse config file %s", path))
	}
	return nil
}

// applyEnvOverrides applies MERX_* environment variable overrides. The
// un-prefixed REDIS_URL and NATS_URL names are honored too, since most
// deployment platforms inject them that way.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(EnvPrefix + "_SERVICE_NAME"); val != "" {
		cfg.Service.Name = val
	}
	if val := os.Getenv(EnvPrefix + "_ENVIRONMENT"); val != "" {
		cfg.Service.Environment = val
	}

	if val := os.Getenv(EnvPrefix + "_CACHE_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			cfg.Cache.Enabled = enabled
		}
	}
	if val := os.Getenv(EnvPrefix + "_CACHE_BACKEND"); val != "" {
		cfg.Cache.Backend = val
	}
	if val := os.Getenv(EnvPrefix + "_CACHE_MAX_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			cfg.Cache.MaxSize = size
		}
	}
	if val := os.Getenv(EnvPrefix + "_CACHE_DEFAULT_TTL"); val != "" {
		if ttl, err := time.ParseDuration(val); err == nil {
			cfg.Cache.DefaultTTL = ttl
		}
	}
	if val := os.Getenv(EnvPrefix + "_CACHE_REMOTE_TIMEOUT"); val != "" {
		if timeout, err := time.ParseDuration(val); err == nil {
			cfg.Cache.RemoteTimeout = timeout
		}
	}
	if val := os.Getenv(EnvPrefix + "_CACHE_DEGRADED_COOLDOWN"); val != "" {
		if cooldown, err := time.ParseDuration(val); err == nil {
			cfg.Cache.DegradedCooldown = cooldown
		}
	}
	if val := os.Getenv(EnvPrefix + "_CACHE_KEY_PREFIX"); val != "" {
		cfg.Cache.KeyPrefix = val
	}
	if val := os.Getenv(EnvPrefix + "_NATS_BUCKET"); val != "" {
		cfg.Cache.NATSBucket = val
	}
	if val := os.Getenv("REDIS_URL"); val != "" {
		cfg.Cache.RedisURL = val
	}
	if val := os.Getenv("NATS_URL"); val != "" {
		cfg.Cache.NATSURL = val
	}

	if val := os.Getenv(EnvPrefix + "_METRICS_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Enabled = enabled
		}
	}
	if val := os.Getenv(EnvPrefix + "_METRICS_ADDR"); val != "" {
		cfg.Metrics.Addr = val
	}
	if val := os.Getenv(EnvPrefix + "_METRICS_PATH"); val != "" {
		cfg.Metrics.Path = val
	}
}
