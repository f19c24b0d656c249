// Package logger builds the process logger.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	Log *zap.Logger
}

// New returns a no-op logger; call Init to enable output.
func New() *Logger {
	return &Logger{
		Log: zap.NewNop(),
	}
}

// Init replaces Log with a production JSON logger at level.
func (l *Logger) Init(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zl, err := cfg.Build()
	if err != nil {
		return err
	}

	l.Log = zl
	return nil
}

// Component returns a child logger tagged with name.
func (l *Logger) Component(name string) *zap.Logger {
	return l.Log.Named(name)
}

// Sync flushes buffered entries. Errors from syncing stderr on some
// platforms are not actionable and are dropped.
func (l *Logger) Sync() {
	_ = l.Log.Sync()
}
