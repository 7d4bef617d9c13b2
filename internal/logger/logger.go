// Package logger provides the tagged console log lines used across the
// advisory engine ("[TAG] message"), backed by a zap logger.
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	base  *zap.Logger
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func init() {
	base = newConsole()
}

func newConsole() *zap.Logger {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	enc.CallerKey = ""
	enc.StacktraceKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stdout), level)
	return zap.New(core)
}

// Use replaces the backing logger. Tests pass zap.NewNop().
func Use(l *zap.Logger) {
	if l == nil {
		l = newConsole()
	}
	mu.Lock()
	base = l
	mu.Unlock()
}

// L returns the backing zap logger for callers that want structured fields.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// SetLevel parses "debug", "info", "warn" or "error". Unknown values keep the current level.
func SetLevel(s string) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		return
	}
	level.SetLevel(lvl)
}

func tagged(tag, msg string) string {
	return "[" + tag + "] " + msg
}

// Debug logs at debug level. Used for lookup noise that is normally hidden.
func Debug(tag, msg string) { L().Debug(tagged(tag, msg)) }

// Info logs an informational line.
func Info(tag, msg string) { L().Info(tagged(tag, msg)) }

// Success logs a completed step.
func Success(tag, msg string) { L().Info(tagged(tag, "✓ "+msg)) }

// Warn logs a recoverable problem (dropped pages, missing quotes).
func Warn(tag, msg string) { L().Warn(tagged(tag, msg)) }

// Error logs a failure.
func Error(tag, msg string) { L().Error(tagged(tag, msg)) }

// Banner prints the startup banner.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	L().Info("eve-industry " + version)
}

// Section prints a section header.
func Section(title string) {
	L().Info("── " + title + " ──")
}

// Stats prints one aligned key/value line.
func Stats(key string, value any) {
	L().Info(fmt.Sprintf("   %-16s %v", key, value))
}
