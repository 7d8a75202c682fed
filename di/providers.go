// Package di wires the application together on samber/do: config,
// logger manager, transport, cache engine and the storefront services,
// with an explicit setup/run/shutdown lifecycle.
package di

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/builtwitharvadai/autoselect-querycache/config"
	"github.com/builtwitharvadai/autoselect-querycache/engine"
	"github.com/builtwitharvadai/autoselect-querycache/logger"
	"github.com/builtwitharvadai/autoselect-querycache/storefront"
	"github.com/builtwitharvadai/autoselect-querycache/transport"
)

// ProvideAppConfig loads and validates the layered configuration.
func ProvideAppConfig(opts config.LoadOptions) func(do.Injector) (*config.AppConfig, error) {
	return func(i do.Injector) (*config.AppConfig, error) {
		cfg, _, err := config.LoadApp(opts)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}
}

// ProvideLoggerManager builds the shared logger manager.
func ProvideLoggerManager(i do.Injector) (*logger.Manager, error) {
	cfg, err := do.Invoke[*config.AppConfig](i)
	if err != nil {
		return nil, err
	}
	return logger.NewManager(cfg.Logging), nil
}

// ProvideTransport builds the backend HTTP adapter.
func ProvideTransport(i do.Injector) (*transport.Adapter, error) {
	cfg, err := do.Invoke[*config.AppConfig](i)
	if err != nil {
		return nil, err
	}
	mgr, err := do.Invoke[*logger.Manager](i)
	if err != nil {
		return nil, err
	}

	opts := []transport.Option{
		transport.WithTimeout(cfg.Backend.Timeout),
		transport.WithLogger(mgr.GetLogger("transport")),
	}
	if cfg.Backend.DealerID != "" {
		opts = append(opts, transport.WithDefaultHeader("X-Dealer-ID", cfg.Backend.DealerID))
	}
	for key, value := range cfg.Backend.Headers {
		opts = append(opts, transport.WithDefaultHeader(key, value))
	}
	return transport.NewAdapter(cfg.Backend.BaseURL, opts...), nil
}

// ProvideEngine builds the cache engine and starts its sweeper. The
// injector shuts it down in reverse registration order.
func ProvideEngine(i do.Injector) (*engine.Engine, error) {
	cfg, err := do.Invoke[*config.AppConfig](i)
	if err != nil {
		return nil, err
	}
	mgr, err := do.Invoke[*logger.Manager](i)
	if err != nil {
		return nil, err
	}

	e, err := engine.New(cfg.Cache, engine.WithLogger(mgr.GetLogger("engine")))
	if err != nil {
		return nil, err
	}
	if err := e.Start(); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

// ProvideServices builds every storefront adapter over the shared
// engine and transport.
func ProvideServices(i do.Injector) (*storefront.Services, error) {
	e, err := do.Invoke[*engine.Engine](i)
	if err != nil {
		return nil, err
	}
	api, err := do.Invoke[*transport.Adapter](i)
	if err != nil {
		return nil, err
	}
	mgr, err := do.Invoke[*logger.Manager](i)
	if err != nil {
		return nil, err
	}
	return storefront.NewServices(e, api, mgr.GetLogger("storefront")), nil
}
