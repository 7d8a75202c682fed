// Package store holds one cache entry per normalized key along with the
// active subscriptions observing it. All entry mutations are whole-value
// replaces under one lock; subscribers are notified with snapshot copies
// after the lock is released.
package store

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/builtwitharvadai/autoselect-querycache/logger"
	"github.com/builtwitharvadai/autoselect-querycache/querykey"
)

// Listener receives entry snapshots whenever the entry changes.
type Listener func(Entry)

// Subscription identifies one active observer of a key.
type Subscription struct {
	Token string
	Key   querykey.Key
}

type slot struct {
	entry     Entry
	listeners map[string]Listener
}

// Store is the shared mutable cache state. It is mutated only by the
// fetch and mutation coordinators, never by callers directly.
type Store struct {
	mu    sync.Mutex
	slots map[string]*slot
	log   *logger.CtxZapLogger
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger attaches a logger.
func WithLogger(log *logger.CtxZapLogger) Option {
	return func(s *Store) { s.log = log }
}

// WithClock replaces the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		slots: make(map[string]*slot),
		log:   logger.NewNop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a snapshot of the entry for key.
func (s *Store) Get(key querykey.Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[key.String()]
	if !ok {
		return Entry{}, false
	}
	return sl.entry, true
}

// Ensure returns the entry for key, creating an idle one with the given
// params and windows when absent.
func (s *Store) Ensure(key querykey.Key, params any, staleAfter, collectAfter time.Duration) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[key.String()]
	if !ok {
		sl = &slot{
			entry: Entry{
				Key:          key,
				Params:       params,
				Status:       StatusIdle,
				StaleAfter:   staleAfter,
				CollectAfter: collectAfter,
				LastActive:   s.now(),
			},
			listeners: make(map[string]Listener),
		}
		s.slots[key.String()] = sl
	}
	return sl.entry
}

// Replace swaps the entry whole and notifies subscribers. Subscriber
// bookkeeping fields are preserved from the stored entry.
func (s *Store) Replace(key querykey.Key, entry Entry) Entry {
	applied, _ := s.Apply(key, func(Entry) (Entry, bool) {
		return entry, true
	})
	return applied
}

// Apply runs fn against the current entry under the store lock. fn
// returns the replacement entry and whether to commit; a discarded
// result leaves the entry untouched and notifies nobody. The store owns
// Key, Subscribers and LastActive regardless of what fn returns.
func (s *Store) Apply(key querykey.Key, fn func(Entry) (Entry, bool)) (Entry, bool) {
	s.mu.Lock()
	sl, ok := s.slots[key.String()]
	if !ok {
		sl = &slot{
			entry:     Entry{Key: key, Status: StatusIdle, LastActive: s.now()},
			listeners: make(map[string]Listener),
		}
		s.slots[key.String()] = sl
	}

	next, commit := fn(sl.entry)
	if !commit {
		s.mu.Unlock()
		return sl.entry, false
	}

	next.Key = sl.entry.Key
	next.Subscribers = sl.entry.Subscribers
	next.LastActive = s.now()
	sl.entry = next

	listeners := make([]Listener, 0, len(sl.listeners))
	for _, l := range sl.listeners {
		listeners = append(listeners, l)
	}
	snapshot := sl.entry
	s.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
	return snapshot, true
}

// Subscribe registers an observer for key, creating an idle entry when
// absent. The entry becomes ineligible for eviction until the last
// subscriber leaves.
func (s *Store) Subscribe(key querykey.Key, fn Listener) Subscription {
	token := uuid.NewString()
	s.mu.Lock()
	sl, ok := s.slots[key.String()]
	if !ok {
		sl = &slot{
			entry:     Entry{Key: key, Status: StatusIdle, LastActive: s.now()},
			listeners: make(map[string]Listener),
		}
		s.slots[key.String()] = sl
	}
	if fn != nil {
		sl.listeners[token] = fn
	}
	sl.entry.Subscribers++
	s.mu.Unlock()

	return Subscription{Token: token, Key: key}
}

// Unsubscribe removes an observer. The entry stays cached until the
// sweep collects it after CollectAfter of inactivity.
func (s *Store) Unsubscribe(sub Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[sub.Key.String()]
	if !ok {
		return
	}
	delete(sl.listeners, sub.Token)
	if sl.entry.Subscribers > 0 {
		sl.entry.Subscribers--
	}
	sl.entry.LastActive = s.now()
}

// SubscriberCount returns the live observer count for key.
func (s *Store) SubscriberCount(key querykey.Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok := s.slots[key.String()]; ok {
		return sl.entry.Subscribers
	}
	return 0
}

// MarkStale bumps the generation and expires FetchedAt while keeping
// Data visible (stale-while-revalidate). Returns the new snapshot.
func (s *Store) MarkStale(key querykey.Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[key.String()]
	if !ok {
		return Entry{}, false
	}
	sl.entry.Generation++
	sl.entry.FetchedAt = time.Time{}
	return sl.entry, true
}

// MarkStaleByPrefix marks every key under the prefix stale and returns
// the affected keys.
func (s *Store) MarkStaleByPrefix(prefix string) []querykey.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []querykey.Key
	for k, sl := range s.slots {
		if strings.HasPrefix(k, prefix) || k == strings.TrimSuffix(prefix, ":") {
			sl.entry.Generation++
			sl.entry.FetchedAt = time.Time{}
			keys = append(keys, sl.entry.Key)
		}
	}
	return keys
}

// Delete removes an entry outright.
func (s *Store) Delete(key querykey.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, key.String())
}

// Sweep evicts entries with zero subscribers whose inactivity exceeds
// CollectAfter. Subscribed entries are never evicted. Returns the number
// of evicted entries.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for k, sl := range s.slots {
		e := sl.entry
		if e.Subscribers > 0 || e.CollectAfter <= 0 {
			continue
		}
		if now.Sub(e.LastActive) > e.CollectAfter {
			delete(s.slots, k)
			evicted++
		}
	}
	if evicted > 0 {
		s.log.Debug("sweep evicted entries", zap.Int("count", evicted))
	}
	return evicted
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// Keys returns the keys currently cached.
func (s *Store) Keys() []querykey.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]querykey.Key, 0, len(s.slots))
	for _, sl := range s.slots {
		keys = append(keys, sl.entry.Key)
	}
	return keys
}
