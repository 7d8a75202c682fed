package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/builtwitharvadai/autoselect-querycache/engine"
	"github.com/builtwitharvadai/autoselect-querycache/logger"
)

// BackendConfig describes the storefront API the transport talks to.
type BackendConfig struct {
	BaseURL  string            `mapstructure:"base_url"`
	Timeout  time.Duration     `mapstructure:"timeout"`
	DealerID string            `mapstructure:"dealer_id"`
	Headers  map[string]string `mapstructure:"headers"`
}

// Validate checks the backend section.
func (c BackendConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// AppConfig is the full application configuration.
type AppConfig struct {
	Backend BackendConfig        `mapstructure:"backend"`
	Cache   engine.Config        `mapstructure:"cache"`
	Logging logger.ManagerConfig `mapstructure:"logging"`
}

// Validate checks every section.
func (c AppConfig) Validate() error {
	if err := c.Backend.Validate(); err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// LoadOptions controls which sources LoadApp assembles.
type LoadOptions struct {
	// ConfigDir holds config.yaml plus an optional <env>.yaml overlay.
	ConfigDir string
	// EnvPrefix enables environment variable overrides, e.g.
	// AUTOSELECT_BACKEND_BASE_URL with prefix "AUTOSELECT".
	EnvPrefix string
	// Flags are explicit command-line overrides, highest priority.
	Flags map[string]any
}

// Env returns the deployment environment name, defaulting to dev.
func Env() string {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env
	}
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "dev"
}

// LoadApp builds the layered loader, merges all sources and returns the
// validated application configuration.
func LoadApp(opts LoadOptions) (*AppConfig, *Loader, error) {
	loader := NewLoader()
	if opts.ConfigDir != "" {
		loader.AddSource(NewFileSource(filepath.Join(opts.ConfigDir, "config.yaml"), 10))
		loader.AddSource(NewFileSource(filepath.Join(opts.ConfigDir, Env()+".yaml"), 20))
	}
	if opts.EnvPrefix != "" {
		loader.AddSource(NewEnvSource(opts.EnvPrefix, 50))
	}
	if len(opts.Flags) > 0 {
		loader.AddSource(NewFlagSource(opts.Flags, 100))
	}

	if err := loader.Load(); err != nil {
		return nil, nil, err
	}

	cfg := &AppConfig{}
	if err := loader.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Cache.ApplyDefaults()
	cfg.Logging.ApplyDefaults()
	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = 30 * time.Second
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}
