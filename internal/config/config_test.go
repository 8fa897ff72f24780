package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, ".guardian", cfg.KBDir)
	assert.Equal(t, time.Hour, cfg.CoreTTL())
	assert.Equal(t, 30*time.Minute, cfg.IndexedTTL())
	assert.Equal(t, 10*time.Second, cfg.UpdateTimeout())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		wantErr  string
	}{
		{"empty kb dir", func(c *Config) { c.KBDir = "" }, "kb_dir"},
		{"zero update timeout", func(c *Config) { c.Store.UpdateTimeoutSeconds = 0 }, "update_timeout_seconds"},
		{"empty oplog file", func(c *Config) { c.Store.OplogFile = "" }, "oplog_file"},
		{"zero cache size", func(c *Config) { c.Cache.MaxSize = 0 }, "max_size"},
		{"negative ttl", func(c *Config) { c.Cache.CoreTTLSeconds = -1 }, "TTL"},
		{"zero debounce", func(c *Config) { c.Watch.DebounceMillis = 0 }, "debounce_millis"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
