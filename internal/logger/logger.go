// Package logger holds the process-wide zap logger. Components that
// take a *zap.Logger explicitly (ingestion, retention, orchestrator) are
// preferred; this package exists for call sites — config loading, main
// wiring — that run before or outside that dependency graph.
package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	base   *zap.Logger
	levels zap.AtomicLevel
)

func init() {
	levels = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base = build(levels)
}

func build(level zap.AtomicLevel) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// SetLevel parses a log level name and applies it process-wide.
func SetLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		levels.SetLevel(zapcore.DebugLevel)
	case "warn", "warning":
		levels.SetLevel(zapcore.WarnLevel)
	case "error":
		levels.SetLevel(zapcore.ErrorLevel)
	default:
		levels.SetLevel(zapcore.InfoLevel)
	}
}

// L returns the process-wide logger. Callers that need a named child
// should use L().Named(...) or L().With(...) rather than mutating this
// instance.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Sync flushes any buffered log entries; call before process exit.
func Sync() {
	mu.RLock()
	l := base
	mu.RUnlock()
	if l != nil {
		_ = l.Sync()
	}
}
