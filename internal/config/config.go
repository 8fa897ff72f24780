package config

import (
	"fmt"
	"time"
)

// Config represents the main Guardian configuration.
type Config struct {
	// KBDir is the knowledge base directory name inside a project.
	KBDir string `json:"kb_dir" mapstructure:"kb_dir"`

	// Store holds file-store settings.
	Store StoreConfig `json:"store" mapstructure:"store"`

	// Cache holds record cache settings.
	Cache CacheConfig `json:"cache" mapstructure:"cache"`

	// Watch holds watch-mode daemon settings.
	Watch WatchConfig `json:"watch" mapstructure:"watch"`

	// Logging holds logger settings.
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// StoreConfig holds lock and operation-log settings.
type StoreConfig struct {
	// UpdateTimeoutSeconds bounds lock waits for read-modify-write updates.
	UpdateTimeoutSeconds int `json:"update_timeout_seconds" mapstructure:"update_timeout_seconds"`
	// OplogFile is the operation log filename inside the KB directory.
	OplogFile string `json:"oplog_file" mapstructure:"oplog_file"`
}

// CacheConfig holds record cache settings.
type CacheConfig struct {
	MaxSize           int `json:"max_size" mapstructure:"max_size"`
	CoreTTLSeconds    int `json:"core_ttl_seconds" mapstructure:"core_ttl_seconds"`
	IndexedTTLSeconds int `json:"indexed_ttl_seconds" mapstructure:"indexed_ttl_seconds"`
}

// WatchConfig holds watch-mode daemon settings.
type WatchConfig struct {
	// DebounceMillis coalesces rapid file events on the same path.
	DebounceMillis int `json:"debounce_millis" mapstructure:"debounce_millis"`
	// HealthSchedule is a cron expression for periodic health checks.
	HealthSchedule string `json:"health_schedule" mapstructure:"health_schedule"`
	// MetricsAddr serves Prometheus metrics when non-empty (e.g. ":9469").
	MetricsAddr string `json:"metrics_addr" mapstructure:"metrics_addr"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		KBDir: ".guardian",
		Store: StoreConfig{
			UpdateTimeoutSeconds: 10,
			OplogFile:            "operations.log",
		},
		Cache: CacheConfig{
			MaxSize:           100,
			CoreTTLSeconds:    3600,
			IndexedTTLSeconds: 1800,
		},
		Watch: WatchConfig{
			DebounceMillis: 200,
			HealthSchedule: "@every 30m",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.KBDir == "" {
		return fmt.Errorf("kb_dir cannot be empty")
	}
	if c.Store.UpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("store.update_timeout_seconds must be positive")
	}
	if c.Store.OplogFile == "" {
		return fmt.Errorf("store.oplog_file cannot be empty")
	}
	if c.Cache.MaxSize <= 0 {
		return fmt.Errorf("cache.max_size must be positive")
	}
	if c.Cache.CoreTTLSeconds < 0 || c.Cache.IndexedTTLSeconds < 0 {
		return fmt.Errorf("cache TTLs cannot be negative")
	}
	if c.Watch.DebounceMillis <= 0 {
		return fmt.Errorf("watch.debounce_millis must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	return nil
}

// UpdateTimeout returns the configured update lock timeout as a duration.
func (c *Config) UpdateTimeout() time.Duration {
	return time.Duration(c.Store.UpdateTimeoutSeconds) * time.Second
}

// CoreTTL returns the core category base TTL.
func (c *Config) CoreTTL() time.Duration {
	return time.Duration(c.Cache.CoreTTLSeconds) * time.Second
}

// IndexedTTL returns the indexed category base TTL.
func (c *Config) IndexedTTL() time.Duration {
	return time.Duration(c.Cache.IndexedTTLSeconds) * time.Second
}

// Debounce returns the watch debounce interval.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMillis) * time.Millisecond
}
