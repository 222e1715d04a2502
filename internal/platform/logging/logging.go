// Package logging builds the process-wide structured logger: log/slog
// wrapped with lmittmann/tint for colored, leveled terminal output.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// New builds the root logger. levelName is one of debug/info/warn/error,
// case-insensitive; unrecognized values fall back to info.
func New(levelName string, addSource bool) *slog.Logger {
	level := parseLevel(levelName)
	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		AddSource:  addSource,
		TimeFormat: time.RFC3339,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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
