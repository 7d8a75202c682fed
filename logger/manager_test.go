package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestManagerConfig_ApplyDefaults(t *testing.T) {
	cfg := ManagerConfig{}
	cfg.ApplyDefaults()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "logs", cfg.BaseLogDir)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.Equal(t, "trace_id", cfg.TraceIDKey)
}

func TestManager_GetLogger_Cached(t *testing.T) {
	m := NewManager(ManagerConfig{EnableConsole: true})
	l1 := m.GetLogger("engine")
	l2 := m.GetLogger("engine")
	require.Same(t, l1, l2)
	assert.Equal(t, "engine", l1.Module())
}

func TestManager_FileOutput(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(ManagerConfig{
		Level:      "debug",
		BaseLogDir: dir,
		EnableFile: true,
	})
	l := m.GetLogger("store")
	l.Info("sweep complete", zap.Int("evicted", 3))
	require.NoError(t, m.Close())
}

func TestCtxZapLogger_TraceIDFromContextValue(t *testing.T) {
	l, logs := NewObserved(zapcore.DebugLevel)
	ctx := context.WithValue(context.Background(), "trace_id", "abc-123") //nolint:staticcheck

	l.InfoCtx(ctx, "cache hit")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "abc-123", entries[0].ContextMap()["trace_id"])
}

func TestCtxZapLogger_With(t *testing.T) {
	l, logs := NewObserved(zapcore.DebugLevel)
	l.With(zap.String("kind", "vehicles")).Debug("refetch scheduled")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "vehicles", entries[0].ContextMap()["kind"])
}
