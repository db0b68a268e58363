// Package config loads server configuration from defaults, an optional YAML
// file and SALESLINE_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level server configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Data       DataConfig       `koanf:"data"`
	TimeSeries TimeSeriesConfig `koanf:"timeseries"`
}

// ServerConfig holds the TCP listener and worker pool settings.
type ServerConfig struct {
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`
	Workers int    `koanf:"workers"`
}

// DataConfig holds the persistence location.
type DataConfig struct {
	Dir string `koanf:"dir"`
}

// TimeSeriesConfig holds the retention windows: MaxDays is D (disk),
// MemoryDays is S (memory window and cache capacity).
type TimeSeriesConfig struct {
	MaxDays    int `koanf:"max_days"`
	MemoryDays int `koanf:"memory_days"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load layers defaults, configPath (if non-empty and present) and
// environment variables (SALESLINE_SERVER_PORT and friends).
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.host":            "0.0.0.0",
		"server.port":            12345,
		"server.workers":         16,
		"data.dir":               "data",
		"timeseries.max_days":    30,
		"timeseries.memory_days": 100,
	}
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", configPath, err)
			}
		}
	}

	// Double underscore separates levels so keys like max_days survive:
	// SALESLINE_TIMESERIES__MAX_DAYS -> timeseries.max_days.
	if err := k.Load(env.Provider("SALESLINE_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "SALESLINE_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.Workers < 1 {
		return fmt.Errorf("server.workers must be >= 1: %d", c.Server.Workers)
	}
	if c.TimeSeries.MaxDays < 1 {
		return fmt.Errorf("timeseries.max_days must be >= 1: %d", c.TimeSeries.MaxDays)
	}
	if c.TimeSeries.MemoryDays < 1 {
		return fmt.Errorf("timeseries.memory_days must be >= 1: %d", c.TimeSeries.MemoryDays)
	}
	// S never exceeds D.
	if c.TimeSeries.MemoryDays > c.TimeSeries.MaxDays {
		c.TimeSeries.MemoryDays = c.TimeSeries.MaxDays
	}
	return nil
}
