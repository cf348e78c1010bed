// Package config loads bptreectl's on-disk YAML configuration via
// viper, the same pattern the rest of the pack uses for service
// configuration.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level shape of a bptreectl config file.
type Config struct {
	Storage struct {
		// Dir is the directory holding the index's segment files and
		// its directory entry file.
		Dir string `mapstructure:"dir"`
	} `mapstructure:"storage"`

	BufferPool struct {
		// Capacity is the number of frames the pool keeps resident.
		Capacity int `mapstructure:"capacity"`
	} `mapstructure:"buffer_pool"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// Default returns the configuration bptreectl falls back to when no
// config file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.Storage.Dir = "./data"
	cfg.BufferPool.Capacity = 64
	cfg.Log.Level = "info"
	return cfg
}

// SlogLevel maps the configured log level name to a slog.Level,
// defaulting to Info on an unrecognized value.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and unmarshals the YAML config file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %q: %w", path, err)
	}
	return cfg, nil
}
