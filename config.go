package dbasync

import (
	"github.com/tonimelisma/dbasync/internal/config"
)

// Config is the configuration a Schema is opened from. It is a re-export
// of internal/config.Config so callers never need to import an internal
// package.
type Config = config.Config

// ConnectInfo is the driver/DSN pair handed to each worker's connect call.
type ConnectInfo = config.ConnectInfo

// RetryPolicy is advisory retry configuration for higher-layer callers —
// the core dispatch path never retries on its own.
type RetryPolicy = config.RetryPolicy

// Relation declares a has-many/has-one edge for prefetch serialization.
type Relation = config.Relation

// DefaultConfig returns a Config populated with default values.
func DefaultConfig() *Config { return config.DefaultConfig() }

// LoadConfig reads and validates a TOML configuration file, applying
// environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
