package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewNop returns a logger that discards everything. Handy as the default
// in constructors that accept an optional logger.
func NewNop() *CtxZapLogger {
	return &CtxZapLogger{base: zap.NewNop(), module: "nop"}
}

// NewObserved returns a logger backed by zap's observer core plus the
// recorded log store, for asserting log output in tests.
func NewObserved(level zapcore.Level) (*CtxZapLogger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	cfg := DefaultManagerConfig()
	return &CtxZapLogger{
		base:   zap.New(core).With(zap.String("module", "test")),
		module: "test",
		config: &cfg,
	}, logs
}
