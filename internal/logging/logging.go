// Package logging builds the daemon's structured logger. Grounded on the
// teacher's setupLogger: a slog handler over stdout or a rotating file,
// selected by config. With no file configured the output is stdout.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mcp-daemon/mcp-daemon/internal/config"
)

// Setup builds a slog.Logger from cfg.Log and returns a cleanup func that
// closes any rotating file writer. Callers should `defer cleanup()`.
func Setup(cfg config.LogConfig) (*slog.Logger, func()) {
	var w io.Writer
	cleanup := func() {}

	switch cfg.File {
	case "":
		w = os.Stdout
	default:
		l := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		w = l
		cleanup = func() { _ = l.Close() }
	}

	level := new(slog.LevelVar)
	level.Set(levelFromString(cfg.Level))
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler), cleanup
}

func levelFromString(s string) slog.Level {
	switch s {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "warn", "WARN", "warning", "WARNING":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
