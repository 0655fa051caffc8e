// Package logger wraps zap behind a small package-level API so the rest of
// the codebase never imports zap directly.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the global logger. Safe to use before Initialize — it starts as a
// no-op logger and is swapped on Initialize.
var Log = zap.NewNop()

// Initialize builds the production logger at the given level.
// Level is one of "debug", "info", "warn", "error"; anything else means info.
func Initialize(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true

	log, err := cfg.Build()
	if err != nil {
		return err
	}

	Log = log
	return nil
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	_ = Log.Sync()
}

// Field helpers so callers don't import zap.

func Error(err error) zap.Field { return zap.Error(err) }

func String(k, v string) zap.Field { return zap.String(k, v) }

func Int(k string, v int) zap.Field { return zap.Int(k, v) }

func Int64(k string, v int64) zap.Field { return zap.Int64(k, v) }

func Bool(k string, v bool) zap.Field { return zap.Bool(k, v) }

func Any(k string, v any) zap.Field { return zap.Any(k, v) }
