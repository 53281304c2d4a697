package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultRequestTimeoutInSeconds          = 10
	defaultMetricsIntervalInMilliseconds    = 3000
	defaultSystemInfoIntervalInMilliseconds = 10000
	defaultMaxHistory                       = 60
	defaultMaxConsecutiveFailures           = 5
	defaultMaxStoredSnapshots               = 1000
)

// StorageConfig defines the snapshot archive settings. An empty Path disables the archive.
type StorageConfig struct {
	Path               string `toml:"Path"`
	MaxStoredSnapshots int    `toml:"MaxStoredSnapshots"`
	RetentionSeconds   int    `toml:"RetentionSeconds"`
}

// Config maps to the config.toml file for the dashboard service
type Config struct {
	Name                             string        `toml:"Name"`
	BaseURL                          string        `toml:"BaseURL"`
	RequestTimeoutInSeconds          uint32        `toml:"RequestTimeoutInSeconds"`
	MetricsIntervalInMilliseconds    uint32        `toml:"MetricsIntervalInMilliseconds"`
	SystemInfoIntervalInMilliseconds uint32        `toml:"SystemInfoIntervalInMilliseconds"`
	MaxHistory                       int           `toml:"MaxHistory"`
	MaxConsecutiveFailures           int           `toml:"MaxConsecutiveFailures"`
	ListenAddress                    string        `toml:"ListenAddress"`
	Storage                          StorageConfig `toml:"Storage"`
}

// ApplyDefaults fills every unset numeric field with its default value
func (cfg *Config) ApplyDefaults() {
	if cfg.RequestTimeoutInSeconds == 0 {
		cfg.RequestTimeoutInSeconds = defaultRequestTimeoutInSeconds
	}
	if cfg.MetricsIntervalInMilliseconds == 0 {
		cfg.MetricsIntervalInMilliseconds = defaultMetricsIntervalInMilliseconds
	}
	if cfg.SystemInfoIntervalInMilliseconds == 0 {
		cfg.SystemInfoIntervalInMilliseconds = defaultSystemInfoIntervalInMilliseconds
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = defaultMaxHistory
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = defaultMaxConsecutiveFailures
	}
	if cfg.Storage.MaxStoredSnapshots <= 0 {
		cfg.Storage.MaxStoredSnapshots = defaultMaxStoredSnapshots
	}
}

// RequestTimeout returns the per request timeout towards the metrics backend
func (cfg *Config) RequestTimeout() time.Duration {
	return time.Duration(cfg.RequestTimeoutInSeconds) * time.Second
}

// MetricsInterval returns the metrics poller cadence
func (cfg *Config) MetricsInterval() time.Duration {
	return time.Duration(cfg.MetricsIntervalInMilliseconds) * time.Millisecond
}

// SystemInfoInterval returns the system info poller cadence
func (cfg *Config) SystemInfoInterval() time.Duration {
	return time.Duration(cfg.SystemInfoIntervalInMilliseconds) * time.Millisecond
}

// LoadConfig parses a TOML file into the Config struct and applies the defaults
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", filepath, err)
	}

	var cfg Config
	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}
