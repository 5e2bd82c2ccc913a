// Package logger provides structured logging for the renderer runtime.
// Every tick, publish and consumer action should be traceable through this.
package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger with the small surface the runtime needs.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger creates a console logger writing to stderr. The level can be
// overridden through the WASM_RENDERER_LOG_LEVEL environment variable.
func NewLogger() *Logger {
	level := parseLevel(os.Getenv("WASM_RENDERER_LOG_LEVEL"))
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// NewNopLogger creates a logger that discards everything. Used by tests.
func NewNopLogger() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func parseLevel(raw string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Debug logs diagnostic messages.
func (l *Logger) Debug(msg string) {
	l.zl.Debug().Msg(msg)
}

// Info logs informational messages.
func (l *Logger) Info(msg string) {
	l.zl.Info().Msg(msg)
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string) {
	l.zl.Warn().Msg(msg)
}

// Error logs error messages. err may be nil.
func (l *Logger) Error(msg string, err error) {
	l.zl.Error().Err(err).Msg(msg)
}

// Tick logs a single production cycle with its outcome fields.
func (l *Logger) Tick(number int64, status string, durMillis float64) {
	l.zl.Debug().
		Int64("tick", number).
		Str("status", status).
		Float64("duration_ms", durMillis).
		Msg("tick")
}
