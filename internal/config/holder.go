package config

import "sync"

// Holder provides thread-safe access to a mutable *Config, letting a long
// running process reload configuration without disturbing readers.
type Holder struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewHolder creates a Holder around the given initial config.
func NewHolder(cfg *Config) *Holder {
	return &Holder{cfg: cfg}
}

// Config returns the current config snapshot.
func (h *Holder) Config() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.cfg
}

// Update replaces the held config.
func (h *Holder) Update(cfg *Config) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cfg = cfg
}
