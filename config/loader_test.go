package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileSource_MissingFileIsEmpty(t *testing.T) {
	s := NewFileSource("/nonexistent/config.yaml", 10)
	data, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestFileSource_FlattensNestedKeys(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
backend:
  base_url: https://api.example.com
cache:
  sweep_interval: 30s
`)
	s := NewFileSource(path, 10)
	data, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", data["backend.base_url"])
	assert.Equal(t, "30s", data["cache.sweep_interval"])
}

func TestEnvSource_PrefixScan(t *testing.T) {
	t.Setenv("AUTOSELECT_BACKEND_BASE_URL", "https://env.example.com")
	t.Setenv("OTHER_BACKEND_BASE_URL", "https://ignored.example.com")

	s := NewEnvSource("AUTOSELECT", 50)
	data, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", data["backend.base_url"])
	assert.NotContains(t, data, "other.backend.base_url")
}

func TestEnvSource_ExplicitBinding(t *testing.T) {
	t.Setenv("DEALER_ID", "dealer-42")

	s := NewEnvSource("", 50).Bind("backend.dealer_id", "DEALER_ID")
	data, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "dealer-42", data["backend.dealer_id"])
}

func TestLoader_PriorityOverride(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "config.yaml", `
backend:
  base_url: https://base.example.com
  dealer_id: dealer-base
`)
	overlay := writeFile(t, dir, "dev.yaml", `
backend:
  base_url: https://dev.example.com
`)

	l := NewLoader()
	// Registered out of order on purpose; Load sorts by priority.
	l.AddSource(NewFlagSource(map[string]any{"backend.dealer_id": "dealer-flag"}, 100))
	l.AddSource(NewFileSource(base, 10))
	l.AddSource(NewFileSource(overlay, 20))
	require.NoError(t, l.Load())

	assert.Equal(t, "https://dev.example.com", l.GetString("backend.base_url"))
	assert.Equal(t, "dealer-flag", l.GetString("backend.dealer_id"))
	assert.Equal(t, []string{base, overlay}, l.LoadedFiles())
}

func TestLoadApp_FullStack(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", `
backend:
  base_url: https://api.example.com
  timeout: 10s
  dealer_id: dealer-7
cache:
  sweep_interval: 30s
  defaults:
    stale_after: 45s
  resources:
    vehicle_detail:
      require_params: true
logging:
  level: debug
  app_name: autoselect
`)

	cfg, loader, err := LoadApp(LoadOptions{ConfigDir: dir})
	require.NoError(t, err)
	require.NotNil(t, loader)

	assert.Equal(t, "https://api.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Cache.SweepInterval)
	assert.Equal(t, 45*time.Second, cfg.Cache.Defaults.StaleAfter)
	assert.True(t, cfg.Cache.Resources["vehicle_detail"].RequireParams)
	// Unset knobs are backfilled from defaults.
	assert.Equal(t, 3, cfg.Cache.Defaults.MaxAttempts)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadApp_RejectsMissingBaseURL(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", `
backend:
  timeout: 10s
`)
	_, _, err := LoadApp(LoadOptions{ConfigDir: dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend")
}

func TestEnv_Default(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("ENV", "")
	assert.Equal(t, "dev", Env())

	t.Setenv("APP_ENV", "staging")
	assert.Equal(t, "staging", Env())
}
