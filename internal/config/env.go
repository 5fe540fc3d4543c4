package config

import (
	"os"
	"strconv"
)

// Environment variable names for overrides.
const (
	EnvWorkerCount  = "DBASYNC_WORKER_COUNT"
	EnvQueryTimeout = "DBASYNC_QUERY_TIMEOUT_SECONDS"
	EnvDSN          = "DBASYNC_DSN"
)

// ApplyEnvOverrides mutates cfg in place with any environment variables
// that are set. Environment always wins over the config file.
func ApplyEnvOverrides(cfg *Config) {
	if v, ok := lookupInt(EnvWorkerCount); ok {
		cfg.WorkerCount = v
	}

	if v, ok := lookupInt(EnvQueryTimeout); ok {
		cfg.QueryTimeoutSecs = v
	}

	if v := os.Getenv(EnvDSN); v != "" {
		cfg.ConnectInfo.DSN = v
	}
}

func lookupInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}

	return v, true
}
