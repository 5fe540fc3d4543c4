// Package config implements TOML configuration loading, validation, and
// environment overrides for the dispatcher's BridgeConfig.
package config

import "log/slog"

// ConnectInfo is the opaque connection descriptor handed to a worker's
// Connect call. Its Driver/DSN pair is resolved by internal/ormcap; the
// core dispatch engine never inspects its contents.
type ConnectInfo struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// RetryPolicy is advisory configuration stored on the dispatcher. The core
// dispatch path never retries on its own; this policy exists for
// higher-layer callers (e.g. cmd/dbasyncctl) to consult.
type RetryPolicy struct {
	Enabled      bool    `toml:"enabled"`
	MaxRetries   int     `toml:"max_retries"`
	InitialDelay string  `toml:"initial_delay"`
	Factor       float64 `toml:"factor"`
}

// Relation declares a has-many/has-one edge between two sources for the
// worker's prefetch serialization. Real ORMs derive this from declared
// model associations; since this module's ORM capability is a concrete
// stand-in rather than a full model layer, relations are declared up
// front in config instead of discovered by reflection.
type Relation struct {
	Parent     string `toml:"parent"`
	Name       string `toml:"name"`
	Child      string `toml:"child"`
	ForeignKey string `toml:"foreign_key"`
	Many       bool   `toml:"many"`
}

// Config is BridgeConfig: the immutable configuration a Dispatcher is built
// from. It is validated once, at construction, and never mutated afterward.
type Config struct {
	SchemaClass      string       `toml:"schema_class"`
	ConnectInfo      ConnectInfo  `toml:"connect"`
	WorkerCount      int          `toml:"worker_count"`
	QueryTimeoutSecs int          `toml:"query_timeout_seconds"`
	OnConnectDo      []string     `toml:"on_connect_do"`
	CacheTTLSecs     int          `toml:"cache_ttl_seconds"`
	Retry            RetryPolicy  `toml:"retry"`
	HealthCheckSecs  int          `toml:"health_check_interval_seconds"`
	MetricsEnabled   bool         `toml:"metrics_enabled"`
	Relations        []Relation   `toml:"relation"`
	Logger           *slog.Logger `toml:"-"`
}
