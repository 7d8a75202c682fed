package di

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/samber/do/v2"
	"go.uber.org/zap"

	"github.com/builtwitharvadai/autoselect-querycache/config"
	"github.com/builtwitharvadai/autoselect-querycache/engine"
	"github.com/builtwitharvadai/autoselect-querycache/logger"
	"github.com/builtwitharvadai/autoselect-querycache/storefront"
	"github.com/builtwitharvadai/autoselect-querycache/transport"
)

// State is the application lifecycle state.
type State int

const (
	StateInit State = iota
	StateSetup
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateSetup:
		return "Setup"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// App owns the injector and the lifecycle around it.
type App struct {
	injector *do.RootScope

	name     string
	loadOpts config.LoadOptions

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
	state  State

	log     *logger.CtxZapLogger
	onReady func(*App) error
}

// AppOption configures App construction.
type AppOption func(*App)

// WithName sets the application name used in logs.
func WithName(name string) AppOption {
	return func(a *App) { a.name = name }
}

// WithConfig sets where configuration is loaded from.
func WithConfig(opts config.LoadOptions) AppOption {
	return func(a *App) { a.loadOpts = opts }
}

// WithOnReady registers a callback invoked after setup, before the
// signal wait.
func WithOnReady(fn func(*App) error) AppOption {
	return func(a *App) { a.onReady = fn }
}

// NewApp creates an unstarted application.
func NewApp(opts ...AppOption) *App {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		injector: do.New(),
		name:     "autoselect",
		ctx:      ctx,
		cancel:   cancel,
		state:    StateInit,
		log:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Setup registers all providers and eagerly builds the service graph.
func (a *App) Setup() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateInit {
		return fmt.Errorf("di: setup from state %s", a.state)
	}

	do.Provide(a.injector, ProvideAppConfig(a.loadOpts))
	do.Provide(a.injector, ProvideLoggerManager)
	do.Provide(a.injector, ProvideTransport)
	do.Provide(a.injector, ProvideEngine)
	do.Provide(a.injector, ProvideServices)

	// Eager build: configuration or wiring mistakes surface here, not
	// on the first request.
	if _, err := do.Invoke[*storefront.Services](a.injector); err != nil {
		return err
	}

	mgr := do.MustInvoke[*logger.Manager](a.injector)
	a.log = mgr.GetLogger("app")
	a.state = StateSetup
	a.log.Info("application setup complete", zap.String("app", a.name))
	return nil
}

// Run blocks until SIGINT/SIGTERM or Stop, then shuts down.
func (a *App) Run() error {
	a.mu.Lock()
	if a.state != StateSetup {
		a.mu.Unlock()
		return fmt.Errorf("di: run from state %s", a.state)
	}
	a.state = StateRunning
	a.mu.Unlock()

	if a.onReady != nil {
		if err := a.onReady(a); err != nil {
			_ = a.shutdown()
			return err
		}
	}
	a.log.Info("application running", zap.String("app", a.name))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.log.Info("signal received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
	}
	return a.shutdown()
}

// Stop triggers shutdown from another goroutine.
func (a *App) Stop() {
	a.cancel()
}

// Shutdown tears the application down without going through Run, for
// one-shot command usage.
func (a *App) Shutdown() error {
	return a.shutdown()
}

func (a *App) shutdown() error {
	a.mu.Lock()
	if a.state == StateStopping || a.state == StateStopped {
		a.mu.Unlock()
		return nil
	}
	a.state = StateStopping
	a.mu.Unlock()

	a.log.Info("application stopping", zap.String("app", a.name))

	// The engine sweeper and bus are stopped explicitly before the
	// injector tears the rest down.
	if e, err := do.Invoke[*engine.Engine](a.injector); err == nil {
		if cerr := e.Close(); cerr != nil {
			a.log.Warn("engine close failed", zap.Error(cerr))
		}
	}

	mgr, merr := do.Invoke[*logger.Manager](a.injector)

	if err := a.injector.Shutdown(); err != nil {
		a.log.Warn("injector shutdown reported errors", zap.Error(err))
	}
	if merr == nil {
		_ = mgr.Close()
	}

	a.mu.Lock()
	a.state = StateStopped
	a.mu.Unlock()
	a.log.Info("application stopped", zap.String("app", a.name))
	return nil
}

// Injector exposes the container for tests and the CLI.
func (a *App) Injector() *do.RootScope { return a.injector }

// State returns the current lifecycle state.
func (a *App) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Services resolves the storefront services bundle.
func (a *App) Services() (*storefront.Services, error) {
	return do.Invoke[*storefront.Services](a.injector)
}

// Engine resolves the cache engine.
func (a *App) Engine() (*engine.Engine, error) {
	return do.Invoke[*engine.Engine](a.injector)
}

// Transport resolves the backend HTTP adapter.
func (a *App) Transport() (*transport.Adapter, error) {
	return do.Invoke[*transport.Adapter](a.injector)
}
