// Package logger provides context-aware zap loggers bound to a module
// name, built and cached by a Manager. File output rotates through
// lumberjack; console output is optional.
package logger

import (
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Manager builds and caches per-module loggers.
type Manager struct {
	baseConfig ManagerConfig
	loggers    map[string]*CtxZapLogger
	writers    []*lumberjack.Logger
	mu         sync.RWMutex
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// NewManager creates an independent Manager. Zero-valued config fields
// fall back to defaults.
func NewManager(cfg ManagerConfig) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		baseConfig: cfg,
		loggers:    make(map[string]*CtxZapLogger),
	}
}

// InitManager initializes the global manager exactly once.
func InitManager(cfg ManagerConfig) {
	managerOnce.Do(func() {
		globalManager = NewManager(cfg)
	})
}

// GetLogger returns the module logger from the global manager, building
// a console-only manager with defaults when none was initialized.
func GetLogger(module string) *CtxZapLogger {
	InitManager(DefaultManagerConfig())
	return globalManager.GetLogger(module)
}

// GetLogger returns the logger for a module, creating it on first use.
// The returned logger already carries the module field.
func (m *Manager) GetLogger(module string) *CtxZapLogger {
	m.mu.RLock()
	if l, ok := m.loggers[module]; ok {
		m.mu.RUnlock()
		return l
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.loggers[module]; ok {
		return l
	}

	l := m.buildLogger(module)
	m.loggers[module] = l
	return l
}

// Close flushes and closes all file writers.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for _, l := range m.loggers {
		_ = l.base.Sync()
	}
	for _, w := range m.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *Manager) buildLogger(module string) *CtxZapLogger {
	level := zapcore.InfoLevel
	if err := level.Set(m.baseConfig.Level); err != nil {
		level = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	if m.baseConfig.EnableFile {
		writer := &lumberjack.Logger{
			Filename:   filepath.Join(m.baseConfig.BaseLogDir, fmt.Sprintf("%s.log", module)),
			MaxSize:    m.baseConfig.MaxSize,
			MaxBackups: m.baseConfig.MaxBackups,
			MaxAge:     m.baseConfig.MaxAge,
			Compress:   m.baseConfig.Compress,
		}
		m.writers = append(m.writers, writer)
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg),
			zapcore.AddSync(writer),
			level,
		))
	}
	if m.baseConfig.EnableConsole || len(cores) == 0 {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(zapcore.AddSync(consoleWriter())),
			level,
		))
	}

	base := zap.New(zapcore.NewTee(cores...)).With(zap.String("module", module))
	if m.baseConfig.AppName != "" {
		base = base.With(zap.String("app", m.baseConfig.AppName))
	}

	return &CtxZapLogger{
		base:   base,
		module: module,
		config: &m.baseConfig,
	}
}
