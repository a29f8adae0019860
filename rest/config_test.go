package rest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "restcache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
base_url: https://api.example.com/v2
timeout: 1m30s
headers:
  Accept: application/json
cache:
  shared: true
  heuristic_fraction: 0.2
  immutable_min_lifetime: 1d
  ignore_nonstandard: true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v2", cfg.BaseURL)
	assert.Equal(t, 90*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, "application/json", cfg.DefaultHeaders["Accept"])
	assert.True(t, cfg.Policy.Shared)
	assert.Equal(t, 0.2, cfg.Policy.HeuristicFraction)
	assert.Equal(t, 24*time.Hour, cfg.Policy.ImmutableMinLifetime)
	assert.True(t, cfg.Policy.IgnoreNonstandard)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, `base_url: https://api.example.com`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.DefaultTimeout)
	assert.False(t, cfg.Policy.Shared)

	cfg.setDefaults()
	assert.Equal(t, DefaultTimeout, cfg.DefaultTimeout)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfigFile(t, "timeout: [oops"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfigFile(t, "timeout: never"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("RESTCACHE_BASE_URL", "https://override.example.com")
	t.Setenv("RESTCACHE_TIMEOUT", "45s")

	cfg := Config{BaseURL: "https://original.example.com", DefaultTimeout: time.Minute}
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "https://override.example.com", cfg.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.DefaultTimeout)
}

func TestApplyEnvInvalidTimeout(t *testing.T) {
	t.Setenv("RESTCACHE_TIMEOUT", "soon")
	cfg := Config{}
	assert.Error(t, cfg.ApplyEnv())
}
