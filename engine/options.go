package engine

import (
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/builtwitharvadai/autoselect-querycache/logger"
)

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger attaches a logger.
func WithLogger(log *logger.CtxZapLogger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMeterProvider replaces the metrics provider (the global otel
// provider by default).
func WithMeterProvider(p metric.MeterProvider) Option {
	return func(e *Engine) {
		e.meterProvider = p
	}
}

// WithClock replaces the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// QueryOption overrides resolved per-kind knobs for one query.
type QueryOption func(*queryOptions)

type queryOptions struct {
	rc      ResourceConfig
	enabled *bool
	force   bool
}

// WithStaleAfter overrides the freshness window.
func WithStaleAfter(d time.Duration) QueryOption {
	return func(o *queryOptions) {
		if d > 0 {
			o.rc.StaleAfter = d
		}
	}
}

// WithCollectAfter overrides the eviction grace window.
func WithCollectAfter(d time.Duration) QueryOption {
	return func(o *queryOptions) {
		if d > 0 {
			o.rc.CollectAfter = d
		}
	}
}

// WithMaxAttempts overrides the fetch attempt budget.
func WithMaxAttempts(n int) QueryOption {
	return func(o *queryOptions) {
		if n > 0 {
			o.rc.MaxAttempts = n
		}
	}
}

// WithEnabled toggles fetching for this call; a disabled query performs
// no network activity and reports idle.
func WithEnabled(enabled bool) QueryOption {
	return func(o *queryOptions) {
		o.enabled = &enabled
	}
}

// withForce bypasses the fresh fast path (used by Refetch).
func withForce() QueryOption {
	return func(o *queryOptions) {
		o.force = true
	}
}
