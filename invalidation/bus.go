// Package invalidation fans out cache invalidation notices to
// registered listeners. Delivery runs on a bounded goroutine pool so a
// slow refetch never blocks the caller that invalidated the key.
package invalidation

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/builtwitharvadai/autoselect-querycache/logger"
	"github.com/builtwitharvadai/autoselect-querycache/querykey"
)

// Listener handles one invalidated key.
type Listener func(ctx context.Context, key querykey.Key)

// UnsubscribeFunc removes a listener registration.
type UnsubscribeFunc func()

type listenerEntry struct {
	id       uint64
	priority int
	fn       Listener
}

// Bus is the invalidation notification hub.
type Bus struct {
	mu        sync.RWMutex
	listeners []listenerEntry
	nextID    uint64
	pool      *ants.Pool
	log       *logger.CtxZapLogger
	closed    int32
}

// Option configures a Bus.
type Option func(*busConfig)

type busConfig struct {
	poolSize int
	log      *logger.CtxZapLogger
}

// WithPoolSize sets the delivery pool size.
func WithPoolSize(n int) Option {
	return func(c *busConfig) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(log *logger.CtxZapLogger) Option {
	return func(c *busConfig) {
		if log != nil {
			c.log = log
		}
	}
}

// NewBus creates a bus with its delivery pool.
func NewBus(opts ...Option) (*Bus, error) {
	cfg := &busConfig{poolSize: 32, log: logger.NewNop()}
	for _, opt := range opts {
		opt(cfg)
	}

	pool, err := ants.NewPool(cfg.poolSize)
	if err != nil {
		return nil, err
	}
	return &Bus{pool: pool, log: cfg.log}, nil
}

// OnInvalidate registers a listener. Lower priority runs first.
func (b *Bus) OnInvalidate(fn Listener, priority int) UnsubscribeFunc {
	if fn == nil {
		return func() {}
	}

	entry := listenerEntry{
		id:       atomic.AddUint64(&b.nextID, 1),
		priority: priority,
		fn:       fn,
	}

	b.mu.Lock()
	b.listeners = append(b.listeners, entry)
	sort.SliceStable(b.listeners, func(i, j int) bool {
		return b.listeners[i].priority < b.listeners[j].priority
	})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, e := range b.listeners {
			if e.id == entry.id {
				b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

// Notify delivers the invalidated key to every listener asynchronously.
// Notices arriving after Close are dropped.
func (b *Bus) Notify(ctx context.Context, key querykey.Key) {
	if atomic.LoadInt32(&b.closed) == 1 {
		return
	}

	b.mu.RLock()
	entries := make([]listenerEntry, len(b.listeners))
	copy(entries, b.listeners)
	b.mu.RUnlock()

	for _, entry := range entries {
		fn := entry.fn
		if err := b.pool.Submit(func() {
			fn(ctx, key)
		}); err != nil {
			b.log.WarnCtx(ctx, "invalidation delivery rejected",
				zap.String("key", key.String()),
				zap.Error(err),
			)
		}
	}
}

// NotifySync delivers the key to every listener on the calling
// goroutine, in priority order.
func (b *Bus) NotifySync(ctx context.Context, key querykey.Key) {
	b.mu.RLock()
	entries := make([]listenerEntry, len(b.listeners))
	copy(entries, b.listeners)
	b.mu.RUnlock()

	for _, entry := range entries {
		entry.fn(ctx, key)
	}
}

// ListenerCount returns the number of registered listeners.
func (b *Bus) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Close stops delivery and releases the pool.
func (b *Bus) Close() {
	atomic.StoreInt32(&b.closed, 1)
	if b.pool != nil {
		b.pool.Release()
	}
}
