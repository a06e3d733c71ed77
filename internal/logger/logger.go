// Package logger configures the process-wide slog logger. Output goes to
// stderr so the stdio MCP transport keeps stdout to itself.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// L is the root logger. Init replaces it; callers derive component loggers
// with L.With(...).
var L = slog.New(slog.NewTextHandler(os.Stderr, nil))

func Init(level, format string) {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	L = slog.New(handler)
	slog.SetDefault(L)
}
