package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"BananaBot/internal/config"
)

// New creates a slog.Logger writing to stdout and, when cfg.File is set,
// to a size-rotated log file.
func New(cfg config.LoggingConfig) *slog.Logger {
	return slog.New(slog.NewTextHandler(writerFor(cfg), &slog.HandlerOptions{
		Level: levelFromString(cfg.Level),
	}))
}

func writerFor(cfg config.LoggingConfig) io.Writer {
	if strings.TrimSpace(cfg.File) == "" {
		return os.Stdout
	}
	return io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	})
}

func levelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info", "":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
