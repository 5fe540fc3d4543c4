package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkerCount, cfg.WorkerCount)
	assert.Equal(t, DefaultCacheTTLSecs, cfg.CacheTTLSecs)
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.toml")
	contents := `
schema_class = "app.Schema"
worker_count = 8

[connect]
driver = "sqlite"
dsn = "file::memory:"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "app.Schema", cfg.SchemaClass)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.Equal(t, "sqlite", cfg.ConnectInfo.Driver)
	assert.Equal(t, DefaultCacheTTLSecs, cfg.CacheTTLSecs, "unset cache_ttl_seconds keeps the default")
}

func TestLoadZeroCacheTTLMeansNoExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.toml")
	contents := `
schema_class = "app.Schema"
cache_ttl_seconds = 0

[connect]
driver = "sqlite"
dsn = "file::memory:"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.CacheTTLSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.toml")
	contents := `
schema_class = "app.Schema"
worker_count = 4

[connect]
driver = "sqlite"
dsn = "file::memory:"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	t.Setenv(EnvWorkerCount, "12")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.WorkerCount)
}
