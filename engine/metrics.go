package engine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/builtwitharvadai/autoselect-querycache/engine"

// engineMetrics holds the OpenTelemetry counters. With no SDK installed
// the global provider is a noop, so recording is free.
type engineMetrics struct {
	queries       metric.Int64Counter
	hits          metric.Int64Counter
	misses        metric.Int64Counter
	retries       metric.Int64Counter
	evictions     metric.Int64Counter
	invalidations metric.Int64Counter
	mutations     metric.Int64Counter
	rollbacks     metric.Int64Counter
}

func newEngineMetrics(provider metric.MeterProvider) *engineMetrics {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	m := &engineMetrics{}
	m.queries, _ = meter.Int64Counter("querycache.queries",
		metric.WithDescription("Queries issued against the engine"))
	m.hits, _ = meter.Int64Counter("querycache.hits",
		metric.WithDescription("Queries served from fresh cache without network"))
	m.misses, _ = meter.Int64Counter("querycache.misses",
		metric.WithDescription("Queries that triggered a fetch"))
	m.retries, _ = meter.Int64Counter("querycache.retries",
		metric.WithDescription("Fetch attempts beyond the first"))
	m.evictions, _ = meter.Int64Counter("querycache.evictions",
		metric.WithDescription("Entries removed by the periodic sweep"))
	m.invalidations, _ = meter.Int64Counter("querycache.invalidations",
		metric.WithDescription("Keys marked stale"))
	m.mutations, _ = meter.Int64Counter("querycache.mutations",
		metric.WithDescription("Mutations executed"))
	m.rollbacks, _ = meter.Int64Counter("querycache.rollbacks",
		metric.WithDescription("Optimistic updates rolled back after a failed mutation"))
	return m
}

func (m *engineMetrics) add(ctx context.Context, c metric.Int64Counter, kind string, n int64) {
	if c == nil {
		return
	}
	c.Add(ctx, n, metric.WithAttributes(attribute.String("kind", kind)))
}
