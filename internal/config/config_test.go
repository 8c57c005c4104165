package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "ws://127.0.0.1:9475/events", cfg.Bridge.URL)
	assert.Equal(t, int64(500), cfg.Sync.DebounceMs)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.NotEmpty(t, cfg.Database.Path)
	assert.NoError(t, Validate(cfg))
}

func TestLoad(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		path := writeConfig(t, `
[database]
path = "/tmp/test.db"

[bridge]
url = "ws://localhost:9999/events"

[sync]
debounce_ms = 250

[log]
level = "debug"
format = "json"
`)

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
		assert.Equal(t, "ws://localhost:9999/events", cfg.Bridge.URL)
		assert.Equal(t, int64(250), cfg.Sync.DebounceMs)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, "json", cfg.Log.Format)
	})

	t.Run("partial config keeps defaults", func(t *testing.T) {
		path := writeConfig(t, `
[sync]
debounce_ms = 100
`)

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, int64(100), cfg.Sync.DebounceMs)
		assert.Equal(t, "ws://127.0.0.1:9475/events", cfg.Bridge.URL)
		assert.Equal(t, "info", cfg.Log.Level)
	})

	t.Run("unknown keys are rejected by name", func(t *testing.T) {
		path := writeConfig(t, `
[sync]
debounce_millis = 100
`)

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "debounce_millis")
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
		assert.Error(t, err)
	})

	t.Run("malformed toml is an error", func(t *testing.T) {
		path := writeConfig(t, `[sync`)
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestLoadOrDefault(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("existing file is loaded", func(t *testing.T) {
		path := writeConfig(t, `
[log]
level = "warn"
`)

		cfg, err := LoadOrDefault(path)
		require.NoError(t, err)
		assert.Equal(t, "warn", cfg.Log.Level)
	})
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"negative debounce", func(c *Config) { c.Sync.DebounceMs = -1 }},
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"empty bridge url", func(c *Config) { c.Bridge.URL = "" }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}
