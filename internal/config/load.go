package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads a TOML config file at path, starting from DefaultConfig() so
// unset fields retain their defaults, then applies environment overrides.
// Resolution order is defaults, then file, then environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	cacheTTLSeen := false

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}

		// A missing file leaves the defaults in place; environment
		// overrides below still apply.
		if err == nil {
			meta, decodeErr := toml.Decode(string(raw), cfg)
			if decodeErr != nil {
				return nil, fmt.Errorf("config: decoding %s: %w", path, decodeErr)
			}

			cacheTTLSeen = meta.IsDefined("cache_ttl_seconds")
		}
	}

	cfg.CacheTTLSecs = NormalizeCacheTTL(cacheTTLSeen, cfg.CacheTTLSecs)

	ApplyEnvOverrides(cfg)

	return cfg, nil
}
