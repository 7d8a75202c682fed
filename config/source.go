// Package config merges configuration from layered sources (files,
// environment, command-line overrides) and unmarshals it into typed
// settings for the cache engine, the backend transport and logging.
package config

// Source is one configuration data source. Load returns a flat map
// with dot-separated keys, e.g. "cache.defaults.stale_after".
type Source interface {
	// Name identifies the source in logs.
	Name() string
	// Priority orders merging; higher values override lower ones.
	// Convention: base file 10, environment file 20, env vars 50,
	// command-line overrides 100.
	Priority() int
	Load() (map[string]any, error)
}
