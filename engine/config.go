package engine

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ResourceConfig holds the per-resource-kind knobs. The source hooks
// disagreed on retry counts and stale windows per domain, so these are
// configuration, not constants.
type ResourceConfig struct {
	// StaleAfter is how long a successful fetch stays fresh.
	StaleAfter time.Duration `mapstructure:"stale_after"`
	// CollectAfter is the zero-subscriber grace before eviction.
	CollectAfter time.Duration `mapstructure:"collect_after"`
	// MaxAttempts bounds fetch attempts including the first call.
	MaxAttempts int `mapstructure:"max_attempts"`
	// BackoffBase seeds the exponential backoff between attempts.
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	// BackoffMax caps the backoff delay.
	BackoffMax time.Duration `mapstructure:"backoff_max"`
	// Timeout bounds each fetch attempt for the kind. Zero leaves the
	// transport adapter's own timeout in charge.
	Timeout time.Duration `mapstructure:"timeout"`
	// Enabled turns fetching for the kind off entirely; nil means on.
	Enabled *bool `mapstructure:"enabled"`
	// RequireParams short-circuits queries with nil params to idle
	// instead of issuing a malformed request.
	RequireParams bool `mapstructure:"require_params"`
}

// Config is the engine configuration.
type Config struct {
	// SweepInterval is how often unsubscribed entries are collected.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// BusPoolSize bounds the invalidation delivery pool.
	BusPoolSize int `mapstructure:"bus_pool_size"`
	// Defaults apply to every kind without an override.
	Defaults ResourceConfig `mapstructure:"defaults"`
	// Resources overrides knobs per resource kind.
	Resources map[string]ResourceConfig `mapstructure:"resources"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		SweepInterval: time.Minute,
		BusPoolSize:   32,
		Defaults: ResourceConfig{
			StaleAfter:   60 * time.Second,
			CollectAfter: 5 * time.Minute,
			MaxAttempts:  3,
			BackoffBase:  200 * time.Millisecond,
			BackoffMax:   5 * time.Second,
		},
	}
}

// ApplyDefaults fills zero-valued fields from DefaultConfig.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	if c.BusPoolSize <= 0 {
		c.BusPoolSize = def.BusPoolSize
	}
	if c.Defaults.StaleAfter <= 0 {
		c.Defaults.StaleAfter = def.Defaults.StaleAfter
	}
	if c.Defaults.CollectAfter <= 0 {
		c.Defaults.CollectAfter = def.Defaults.CollectAfter
	}
	if c.Defaults.MaxAttempts <= 0 {
		c.Defaults.MaxAttempts = def.Defaults.MaxAttempts
	}
	if c.Defaults.BackoffBase <= 0 {
		c.Defaults.BackoffBase = def.Defaults.BackoffBase
	}
	if c.Defaults.BackoffMax <= 0 {
		c.Defaults.BackoffMax = def.Defaults.BackoffMax
	}
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SweepInterval, validation.Min(time.Second)),
		validation.Field(&c.BusPoolSize, validation.Min(1)),
		validation.Field(&c.Defaults),
	)
}

// Validate checks a resource config block.
func (rc ResourceConfig) Validate() error {
	return validation.ValidateStruct(&rc,
		validation.Field(&rc.StaleAfter, validation.Min(time.Duration(0))),
		validation.Field(&rc.CollectAfter, validation.Min(time.Duration(0))),
		validation.Field(&rc.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&rc.MaxAttempts, validation.Min(0), validation.Max(10)),
	)
}

// resolve merges the defaults with the per-kind override.
func (c Config) resolve(kind string) ResourceConfig {
	rc := c.Defaults
	override, ok := c.Resources[kind]
	if !ok {
		return rc
	}
	if override.StaleAfter > 0 {
		rc.StaleAfter = override.StaleAfter
	}
	if override.CollectAfter > 0 {
		rc.CollectAfter = override.CollectAfter
	}
	if override.MaxAttempts > 0 {
		rc.MaxAttempts = override.MaxAttempts
	}
	if override.BackoffBase > 0 {
		rc.BackoffBase = override.BackoffBase
	}
	if override.BackoffMax > 0 {
		rc.BackoffMax = override.BackoffMax
	}
	if override.Timeout > 0 {
		rc.Timeout = override.Timeout
	}
	if override.Enabled != nil {
		rc.Enabled = override.Enabled
	}
	if override.RequireParams {
		rc.RequireParams = true
	}
	return rc
}

// enabled reports the effective enabled flag.
func (rc ResourceConfig) enabled() bool {
	return rc.Enabled == nil || *rc.Enabled
}
