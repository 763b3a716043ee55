package logger

import (
	"log/slog"
	"os"
	"strings"
)

type Logger interface {
	Info(msg string, keyvals ...interface{})

	Warn(msg string, keyvals ...interface{})

	Error(msg string, keyvals ...interface{})

	Debug(msg string, keyvals ...interface{})
}

func New() Logger {
	return NewWithLevel("info")
}

// NewWithLevel accepts debug, info, warn or error. Anything else logs at info.
func NewWithLevel(level string) Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(level), // minimum log level
		AddSource: true,              // include file + line number
	}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
