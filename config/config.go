// Package config loads datagate settings from a YAML file with environment overrides.
//
// Environment variables follow the pattern DATAGATE_SECTION_KEY and win over
// the file, so secrets such as the database password and the encryption key
// need not be written to disk.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shrek82/datagate/pool"
)

// Config is the top-level configuration.
type Config struct {
	Database   pool.Config      `yaml:"database"`
	KeyColumn  string           `yaml:"key_column"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Logging    LoggingConfig    `yaml:"logging"`
	SlowLog    SlowLogConfig    `yaml:"slow_log"`
	Cache      CacheConfig      `yaml:"cache"`
	Breaker    BreakerConfig    `yaml:"circuit_breaker"`
	Tracing    bool             `yaml:"tracing"`
}

// EncryptionConfig holds the column encryption key.
type EncryptionConfig struct {
	Key string `yaml:"key"`
}

// LoggingConfig selects the logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // silent, error, warn, info
	Format string `yaml:"format"` // text, json
	// Backend is "std" for the built-in logger or "zap".
	Backend string `yaml:"backend"`
}

// SlowLogConfig enables the slow statement log when Threshold is positive.
type SlowLogConfig struct {
	Threshold time.Duration `yaml:"threshold"`
	Path      string        `yaml:"path"`
}

// CacheConfig enables the select cache. An empty RedisAddr selects the in-memory cache.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	TTL           time.Duration `yaml:"ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
}

// BreakerConfig enables the circuit breaker when Threshold is positive.
type BreakerConfig struct {
	Threshold    int           `yaml:"threshold"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// Load reads the configuration from a YAML file, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with the default pool sizing and text logging at info.
func Default() *Config {
	return &Config{
		Database:  pool.DefaultConfig(),
		KeyColumn: "id",
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "text",
			Backend: "std",
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Breaker: BreakerConfig{
			ResetTimeout: 30 * time.Second,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"DATAGATE_DB_DRIVER":            &cfg.Database.Driver,
		"DATAGATE_DB_HOST":              &cfg.Database.Host,
		"DATAGATE_DB_NAME":              &cfg.Database.Database,
		"DATAGATE_DB_USER":              &cfg.Database.User,
		"DATAGATE_DB_PASSWORD":          &cfg.Database.Password,
		"DATAGATE_ENCRYPTION_KEY":       &cfg.Encryption.Key,
		"DATAGATE_LOG_LEVEL":            &cfg.Logging.Level,
		"DATAGATE_LOG_FORMAT":           &cfg.Logging.Format,
		"DATAGATE_CACHE_REDIS_ADDR":     &cfg.Cache.RedisAddr,
		"DATAGATE_CACHE_REDIS_PASSWORD": &cfg.Cache.RedisPassword,
	}
	for env, dst := range strs {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"DATAGATE_DB_PORT":     &cfg.Database.Port,
		"DATAGATE_DB_MIN_SIZE": &cfg.Database.MinSize,
		"DATAGATE_DB_MAX_SIZE": &cfg.Database.MaxSize,
	}
	for env, dst := range ints {
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", env, err)
		}
		*dst = n
	}

	if v := os.Getenv("DATAGATE_DB_ACQUIRE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DATAGATE_DB_ACQUIRE_TIMEOUT: %w", err)
		}
		cfg.Database.AcquireTimeout = d
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, "database: "+err.Error())
	}
	if c.KeyColumn == "" {
		errs = append(errs, "key_column is required")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q must be text or json", c.Logging.Format))
	}
	switch strings.ToLower(c.Logging.Backend) {
	case "", "std", "zap":
	default:
		errs = append(errs, fmt.Sprintf("logging.backend %q must be std or zap", c.Logging.Backend))
	}
	if c.SlowLog.Threshold < 0 {
		errs = append(errs, "slow_log.threshold must not be negative")
	}
	if c.Breaker.Threshold > 0 && c.Breaker.ResetTimeout <= 0 {
		errs = append(errs, "circuit_breaker.reset_timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
