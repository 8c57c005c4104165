// Package config loads the TOML configuration file, applies defaults, and
// rejects unknown keys. A silently ignored typo in a config file leads to
// hard-to-debug behavior, so unknown keys are fatal errors that name the
// offending key.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the root of the TOML configuration.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Bridge   BridgeConfig   `toml:"bridge"`
	Sync     SyncConfig     `toml:"sync"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig locates the embedded collection database.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// BridgeConfig locates the browser extension bridge endpoint.
type BridgeConfig struct {
	URL string `toml:"url"`
}

// SyncConfig holds engine-wide sync defaults. Per-collection settings stored
// on the collection record override these.
type SyncConfig struct {
	DebounceMs int64 `toml:"debounce_ms"`
}

// LogConfig controls slog output.
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text, json
}

// Default values applied before the file is decoded.
const (
	defaultBridgeURL  = "ws://127.0.0.1:9475/events"
	defaultDebounceMs = 500
	defaultLogLevel   = "info"
	defaultLogFormat  = "text"
)

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Path: defaultDBPath()},
		Bridge:   BridgeConfig{URL: defaultBridgeURL},
		Sync:     SyncConfig{DebounceMs: defaultDebounceMs},
		Log:      LogConfig{Level: defaultLogLevel, Format: defaultLogFormat},
	}
}

// defaultDBPath places the database under the user data directory, falling
// back to the working directory if the home cannot be resolved.
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "tabvault.db"
	}

	return filepath.Join(home, ".local", "share", "tabvault", "tabvault.db")
}

// DefaultConfigPath returns the standard location of the config file.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}

	return filepath.Join(home, ".config", "tabvault", "config.toml")
}

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}

		return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault reads the config file if it exists, otherwise returns all
// defaults. Supports the zero-config first run.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Validate checks field values after decoding.
func Validate(cfg *Config) error {
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log level %q", cfg.Log.Level)
	}

	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: invalid log format %q", cfg.Log.Format)
	}

	if cfg.Sync.DebounceMs < 0 {
		return fmt.Errorf("config: debounce_ms must not be negative, got %d", cfg.Sync.DebounceMs)
	}

	if cfg.Database.Path == "" {
		return errors.New("config: database path must not be empty")
	}

	if cfg.Bridge.URL == "" {
		return errors.New("config: bridge url must not be empty")
	}

	return nil
}
