package logging

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/rmitchellscott/couchpilot/internal/config"
)

var logger *slog.Logger

func init() {
	logger = newLogger()
	slog.SetDefault(logger)
}

func newLogger() *slog.Logger {
	level := parseLevel(config.Get("LOG_LEVEL", "info"))

	w := os.Stdout
	if config.Get("LOG_FORMAT", "") == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
		NoColor:    !isatty.IsTerminal(w.Fd()),
	}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debug logs a debug message with optional key/value pairs
func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

// Info logs an informational message with optional key/value pairs
func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

// Warn logs a warning message with optional key/value pairs
func Warn(msg string, args ...any) {
	logger.Warn(msg, args...)
}

// Error logs an error message with optional key/value pairs
func Error(msg string, args ...any) {
	logger.Error(msg, args...)
}

// InfoWithComponent logs an informational message tagged with a component
func InfoWithComponent(component, msg string, args ...any) {
	logger.With("component", component).Info(msg, args...)
}

// WarnWithComponent logs a warning message tagged with a component
func WarnWithComponent(component, msg string, args ...any) {
	logger.With("component", component).Warn(msg, args...)
}

// ErrorWithComponent logs an error message tagged with a component
func ErrorWithComponent(component, msg string, args ...any) {
	logger.With("component", component).Error(msg, args...)
}

// WithComponent returns a logger with a component attribute attached,
// for call sites that log repeatedly from the same subsystem.
func WithComponent(component string) *slog.Logger {
	return logger.With("component", component)
}
