package store

import (
	"time"

	"github.com/builtwitharvadai/autoselect-querycache/apierr"
	"github.com/builtwitharvadai/autoselect-querycache/querykey"
)

// Status is the lifecycle state of a cache entry.
type Status int

const (
	// StatusIdle means no fetch has been attempted (or fetching is
	// disabled for the key).
	StatusIdle Status = iota
	// StatusLoading means a fetch is in flight and no prior success
	// exists, or a revalidation is running.
	StatusLoading
	// StatusSuccess means Data holds the last known good value.
	StatusSuccess
	// StatusError means the last fetch exhausted its attempts. Data may
	// still hold the previous good value for graceful degradation.
	StatusError
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is one cached value with its lifecycle metadata. Entries are
// plain values: the store replaces them whole, so a reader never
// observes a partially written entry.
type Entry struct {
	Key    querykey.Key
	Data   any
	Status Status
	Err    *apierr.Error

	// Params is the original parameter set the key was normalized from,
	// kept so invalidation-triggered refetches can rebuild the request.
	Params any

	// FetchedAt is the time of the last successful fetch; zeroed when
	// the entry is invalidated.
	FetchedAt time.Time
	// StaleAfter is how long after FetchedAt the data is still fresh.
	StaleAfter time.Duration
	// CollectAfter is how long an entry may sit with zero subscribers
	// before the sweep evicts it.
	CollectAfter time.Duration

	// Generation increments on every invalidation; in-flight fetches
	// from older generations are discarded on completion.
	Generation uint64
	// Subscribers is the live observer count; managed by the store.
	Subscribers int
	// LastActive is the last write or unsubscribe; drives eviction.
	LastActive time.Time
}

// Fresh reports whether the entry can be served without a network call.
func (e Entry) Fresh(now time.Time) bool {
	return e.Status == StatusSuccess &&
		!e.FetchedAt.IsZero() &&
		now.Sub(e.FetchedAt) < e.StaleAfter
}

// HasData reports whether a last known good value is present.
func (e Entry) HasData() bool {
	return e.Data != nil
}
