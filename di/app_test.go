package di

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/builtwitharvadai/autoselect-querycache/config"
)

func writeConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := `
backend:
  base_url: https://api.example.com
  timeout: 5s
  dealer_id: d-1
cache:
  sweep_interval: 5s
logging:
  level: error
  enable_console: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	return dir
}

func TestApp_SetupBuildsFullGraph(t *testing.T) {
	app := NewApp(
		WithName("autoselect-test"),
		WithConfig(config.LoadOptions{ConfigDir: writeConfigDir(t)}),
	)
	require.Equal(t, StateInit, app.State())

	require.NoError(t, app.Setup())
	assert.Equal(t, StateSetup, app.State())

	svcs, err := app.Services()
	require.NoError(t, err)
	require.NotNil(t, svcs.Vehicles)
	require.NotNil(t, svcs.Cart)
	require.NotNil(t, svcs.Orders)
	require.NotNil(t, svcs.DealerConfig)
	require.NotNil(t, svcs.Recommendations)

	e, err := app.Engine()
	require.NoError(t, err)
	require.NotNil(t, e)

	require.NoError(t, app.Shutdown())
	assert.Equal(t, StateStopped, app.State())
}

func TestApp_SetupFailsOnBadConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("backend:\n  timeout: 5s\n"), 0o644))

	app := NewApp(WithConfig(config.LoadOptions{ConfigDir: dir}))
	err := app.Setup()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend")
}

func TestApp_SetupTwiceRejected(t *testing.T) {
	app := NewApp(WithConfig(config.LoadOptions{ConfigDir: writeConfigDir(t)}))
	require.NoError(t, app.Setup())
	t.Cleanup(func() { _ = app.Shutdown() })

	err := app.Setup()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Setup")
}

func TestApp_StopUnblocksRun(t *testing.T) {
	ready := make(chan struct{})
	app := NewApp(
		WithConfig(config.LoadOptions{ConfigDir: writeConfigDir(t)}),
		WithOnReady(func(*App) error {
			close(ready)
			return nil
		}),
	)
	require.NoError(t, app.Setup())

	var wg sync.WaitGroup
	wg.Add(1)
	var runErr error
	go func() {
		defer wg.Done()
		runErr = app.Run()
	}()

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("app never reached ready")
	}
	app.Stop()
	wg.Wait()

	require.NoError(t, runErr)
	assert.Equal(t, StateStopped, app.State())
}
