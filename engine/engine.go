// Package engine is the query cache core: one fetch coordinator and one
// mutation coordinator sharing a cache store, consumed by thin
// per-domain adapters. It deduplicates concurrent fetches, applies
// retry policy, discards superseded in-flight results and schedules the
// periodic eviction sweep.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/builtwitharvadai/autoselect-querycache/apierr"
	"github.com/builtwitharvadai/autoselect-querycache/invalidation"
	"github.com/builtwitharvadai/autoselect-querycache/logger"
	"github.com/builtwitharvadai/autoselect-querycache/querykey"
	"github.com/builtwitharvadai/autoselect-querycache/retry"
	"github.com/builtwitharvadai/autoselect-querycache/store"
)

// Fetcher loads the data for one resource kind. Domain adapters
// register one per kind; the engine owns when it runs.
type Fetcher func(ctx context.Context, params any) (any, error)

// QueryResult is what a caller sees for a key: the resolved data, the
// entry status, the last error and a handle to force a revalidation.
type QueryResult struct {
	Key    querykey.Key
	Data   any
	Status store.Status
	Err    *apierr.Error
	// Refetch bypasses the fresh fast path and revalidates the key.
	Refetch func(ctx context.Context) (*QueryResult, error)
}

// Engine is the query cache engine. Construct one per application (or
// per test) and share it; there is no package-level instance.
type Engine struct {
	cfg   Config
	store *store.Store
	bus   *invalidation.Bus
	sf    singleflight.Group

	mu       sync.RWMutex
	fetchers map[string]Fetcher

	log           *logger.CtxZapLogger
	meterProvider metric.MeterProvider
	metrics       *engineMetrics
	scheduler     gocron.Scheduler
	now           func() time.Time
	closed        int32
}

// New builds an engine from the given config.
func New(cfg Config, opts ...Option) (*Engine, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid config: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		fetchers: make(map[string]Fetcher),
		log:      logger.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.store = store.New(store.WithLogger(e.log), store.WithClock(e.now))

	bus, err := invalidation.NewBus(
		invalidation.WithPoolSize(cfg.BusPoolSize),
		invalidation.WithLogger(e.log),
	)
	if err != nil {
		return nil, fmt.Errorf("engine: create invalidation bus: %w", err)
	}
	e.bus = bus
	e.bus.OnInvalidate(e.onInvalidated, 0)

	e.metrics = newEngineMetrics(e.meterProvider)

	return e, nil
}

// Start launches the periodic sweep.
func (e *Engine) Start() error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("engine: create scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(e.cfg.SweepInterval),
		gocron.NewTask(e.sweep),
	)
	if err != nil {
		return fmt.Errorf("engine: schedule sweep: %w", err)
	}
	e.scheduler = scheduler
	scheduler.Start()
	e.log.Info("engine started", zap.Duration("sweep_interval", e.cfg.SweepInterval))
	return nil
}

// Close stops the sweep and the invalidation bus. In-flight fetches are
// left to finish.
func (e *Engine) Close() error {
	if !atomic.CompareAndSwapInt32(&e.closed, 0, 1) {
		return nil
	}
	var err error
	if e.scheduler != nil {
		err = e.scheduler.Shutdown()
	}
	e.bus.Close()
	e.log.Info("engine stopped")
	return err
}

// RegisterFetcher binds the loader for a resource kind.
func (e *Engine) RegisterFetcher(kind string, f Fetcher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fetchers[kind] = f
	e.log.Debug("fetcher registered", zap.String("kind", kind))
}

func (e *Engine) fetcher(kind string) Fetcher {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fetchers[kind]
}

// Store exposes the cache store for subscriptions and inspection.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Query resolves data for (kind, params): fresh cache is served without
// network, stale or missing data triggers a deduplicated fetch with the
// kind's retry policy.
func (e *Engine) Query(ctx context.Context, kind string, params any, opts ...QueryOption) (*QueryResult, error) {
	qo := &queryOptions{rc: e.cfg.resolve(kind)}
	for _, opt := range opts {
		opt(qo)
	}

	key, err := querykey.Normalize(kind, params)
	if err != nil {
		return nil, err
	}
	e.metrics.add(ctx, e.metrics.queries, kind, 1)

	result := &QueryResult{Key: key}
	result.Refetch = func(rctx context.Context) (*QueryResult, error) {
		return e.Query(rctx, kind, params, append(opts, withForce())...)
	}

	enabled := qo.rc.enabled()
	if qo.enabled != nil {
		enabled = *qo.enabled
	}
	if qo.rc.RequireParams && params == nil {
		enabled = false
	}
	if !enabled {
		// No network activity for disabled keys, and no cache entry
		// either: the next enabled subscription starts clean.
		result.Status = store.StatusIdle
		return result, nil
	}

	fetcher := e.fetcher(kind)
	if fetcher == nil {
		return nil, fmt.Errorf("engine: no fetcher registered for kind %q", kind)
	}

	data, err := e.fetch(ctx, key, params, fetcher, qo.rc, qo.force)

	entry, ok := e.store.Get(key)
	result.Status = entry.Status
	result.Err = entry.Err
	result.Data = entry.Data
	if err != nil {
		return result, err
	}
	// A successful store entry wins over the flight's own value: when
	// the flight was superseded, the entry already holds the newer
	// generation's result.
	if !ok || entry.Status != store.StatusSuccess {
		result.Data = data
	}
	return result, nil
}

// Prefetch warms the cache for (kind, params) without subscribing.
// Fire-and-forget: fetch errors are logged, not returned.
func (e *Engine) Prefetch(ctx context.Context, kind string, params any) error {
	key, err := querykey.Normalize(kind, params)
	if err != nil {
		return err
	}
	fetcher := e.fetcher(kind)
	if fetcher == nil {
		return fmt.Errorf("engine: no fetcher registered for kind %q", kind)
	}
	rc := e.cfg.resolve(kind)

	detached := context.WithoutCancel(ctx)
	go func() {
		if _, err := e.fetch(detached, key, params, fetcher, rc, false); err != nil {
			e.log.DebugCtx(detached, "prefetch failed",
				zap.String("key", key.String()),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Subscribe observes a key; fn receives a snapshot on every entry
// change. The entry is pinned against eviction until Unsubscribe.
func (e *Engine) Subscribe(kind string, params any, fn store.Listener) (store.Subscription, error) {
	key, err := querykey.Normalize(kind, params)
	if err != nil {
		return store.Subscription{}, err
	}
	rc := e.cfg.resolve(kind)
	e.store.Ensure(key, params, rc.StaleAfter, rc.CollectAfter)
	return e.store.Subscribe(key, fn), nil
}

// Unsubscribe removes an observer. An in-flight fetch for the key still
// completes and populates the cache; its result is just no longer
// delivered to this observer.
func (e *Engine) Unsubscribe(sub store.Subscription) {
	e.store.Unsubscribe(sub)
}

// Invalidate marks one key stale without dropping its data; subscribed
// keys are refetched in the background.
func (e *Engine) Invalidate(ctx context.Context, kind string, params any) error {
	key, err := querykey.Normalize(kind, params)
	if err != nil {
		return err
	}
	e.invalidateKey(ctx, key)
	return nil
}

// InvalidateKind marks every cached key of a resource kind stale.
func (e *Engine) InvalidateKind(ctx context.Context, kind string) {
	for _, key := range e.store.MarkStaleByPrefix(querykey.KindPrefix(kind)) {
		e.afterMarkStale(ctx, key)
	}
}

func (e *Engine) invalidateKey(ctx context.Context, key querykey.Key) {
	if _, ok := e.store.MarkStale(key); !ok {
		return
	}
	e.afterMarkStale(ctx, key)
}

func (e *Engine) afterMarkStale(ctx context.Context, key querykey.Key) {
	// Forget the flight so the next query starts a fresh generation
	// instead of joining a superseded one.
	e.sf.Forget(key.String())
	e.metrics.add(ctx, e.metrics.invalidations, key.Kind(), 1)
	e.log.DebugCtx(ctx, "key invalidated", zap.String("key", key.String()))

	if e.store.SubscriberCount(key) > 0 {
		e.bus.Notify(ctx, key)
	}
}

// onInvalidated is the bus listener: refetch invalidated keys that are
// still being observed.
func (e *Engine) onInvalidated(ctx context.Context, key querykey.Key) {
	entry, ok := e.store.Get(key)
	if !ok || entry.Subscribers == 0 {
		return
	}
	fetcher := e.fetcher(key.Kind())
	if fetcher == nil {
		e.log.WarnCtx(ctx, "cannot refetch invalidated key: no fetcher",
			zap.String("kind", key.Kind()))
		return
	}
	rc := e.cfg.resolve(key.Kind())
	if _, err := e.fetch(ctx, key, entry.Params, fetcher, rc, false); err != nil {
		e.log.DebugCtx(ctx, "invalidation refetch failed",
			zap.String("key", key.String()),
			zap.Error(err),
		)
	}
}

// fetch is the fetch coordinator: fast path, deduplicated flight,
// retry policy, generation-guarded cache writes.
func (e *Engine) fetch(ctx context.Context, key querykey.Key, params any, fetcher Fetcher, rc ResourceConfig, force bool) (any, error) {
	entry := e.store.Ensure(key, params, rc.StaleAfter, rc.CollectAfter)
	if !force && entry.Fresh(e.now()) {
		e.metrics.add(ctx, e.metrics.hits, key.Kind(), 1)
		e.log.DebugCtx(ctx, "cache hit", zap.String("key", key.String()))
		return entry.Data, nil
	}
	e.metrics.add(ctx, e.metrics.misses, key.Kind(), 1)

	gen := entry.Generation

	// The flight runs detached from this caller's cancellation so an
	// abandoned caller still populates the cache for everyone else.
	flightCtx := context.WithoutCancel(ctx)
	ch := e.sf.DoChan(key.String(), func() (any, error) {
		return e.runFlight(flightCtx, key, params, fetcher, rc, gen, force)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) runFlight(ctx context.Context, key querykey.Key, params any, fetcher Fetcher, rc ResourceConfig, gen uint64, force bool) (any, error) {
	// Double check: an earlier flight may have landed since the caller
	// looked the entry up.
	if cur, ok := e.store.Get(key); ok && !force && cur.Fresh(e.now()) {
		return cur.Data, nil
	}

	e.store.Apply(key, func(en store.Entry) (store.Entry, bool) {
		en.Status = store.StatusLoading
		en.Params = params
		return en, true
	})

	data, err := retry.DoWithData(ctx, func() (any, error) {
		attemptCtx := ctx
		if rc.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, rc.Timeout)
			defer cancel()
		}
		return fetcher(attemptCtx, params)
	},
		retry.MaxAttempts(rc.MaxAttempts),
		retry.Backoff(retry.ExponentialBackoff(rc.BackoffBase, retry.WithMaxDelay(rc.BackoffMax))),
		retry.OnRetry(func(attempt int, attemptErr error) {
			e.metrics.add(ctx, e.metrics.retries, key.Kind(), 1)
			e.log.DebugCtx(ctx, "fetch retry",
				zap.String("key", key.String()),
				zap.Int("attempt", attempt),
				zap.Error(attemptErr),
			)
		}),
	)

	if err != nil {
		apiErr := toAPIError(err)
		e.store.Apply(key, func(en store.Entry) (store.Entry, bool) {
			if en.Generation != gen {
				return en, false
			}
			en.Status = store.StatusError
			en.Err = apiErr
			return en, true
		})
		// Every deduplicated waiter receives this same error value.
		return nil, apiErr
	}

	fetchedAt := e.now()
	_, committed := e.store.Apply(key, func(en store.Entry) (store.Entry, bool) {
		if en.Generation != gen {
			// A newer generation resolved first; this result is stale.
			return en, false
		}
		en.Data = data
		en.Status = store.StatusSuccess
		en.FetchedAt = fetchedAt
		en.Err = nil
		return en, true
	})
	if !committed {
		e.log.Debug("superseded fetch result discarded", zap.String("key", key.String()))
	}
	return data, nil
}

func (e *Engine) sweep() {
	evicted := e.store.Sweep(e.now())
	if evicted > 0 {
		e.metrics.add(context.Background(), e.metrics.evictions, "", int64(evicted))
	}
}

// toAPIError coerces any failure into the uniform error shape. Retry
// aggregates unwrap to the final attempt's typed error; anything else
// at this point is a connectivity-level failure.
func toAPIError(err error) *apierr.Error {
	if apiErr := apierr.AsError(err); apiErr != nil {
		return apiErr
	}
	return apierr.Network(err)
}
