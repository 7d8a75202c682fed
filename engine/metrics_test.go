package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectCounters(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]int64)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				out[m.Name] += dp.Value
			}
		}
	}
	return out
}

func TestMetrics_CountersRecorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	cfg := DefaultConfig()
	cfg.Defaults.BackoffBase = time.Millisecond
	e, err := New(cfg, WithMeterProvider(provider))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	e.RegisterFetcher("vehicles", func(ctx context.Context, params any) (any, error) {
		return "inventory", nil
	})

	ctx := context.Background()
	_, err = e.Query(ctx, "vehicles", listingParams())
	require.NoError(t, err)
	_, err = e.Query(ctx, "vehicles", listingParams())
	require.NoError(t, err)
	require.NoError(t, e.Invalidate(ctx, "vehicles", listingParams()))

	counters := collectCounters(t, reader)
	assert.EqualValues(t, 2, counters["querycache.queries"])
	assert.EqualValues(t, 1, counters["querycache.hits"])
	assert.EqualValues(t, 1, counters["querycache.misses"])
	assert.EqualValues(t, 1, counters["querycache.invalidations"])
}
