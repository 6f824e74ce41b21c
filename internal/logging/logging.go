// Package logging builds the diagnostic logger: a slog text handler that
// writes to stderr or to a rotating file.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/panbanda/sieve/pkg/config"
)

// ParseLevel maps a level name (or a numeric slog level) to a slog.Level.
// Unknown or empty values yield defaultLevel.
func ParseLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}
	return defaultLevel
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Writer returns the log destination for cfg: a lumberjack logger when a
// file is configured, stderr otherwise. The returned closer must be called
// on shutdown.
func Writer(cfg config.LogConfig) (io.Writer, io.Closer) {
	if strings.TrimSpace(cfg.File) == "" {
		return os.Stderr, nopCloser{}
	}
	w := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	return w, w
}

// New builds a logger from cfg. verbose forces debug level.
func New(cfg config.LogConfig, verbose bool) (*slog.Logger, io.Closer) {
	level := ParseLevel(cfg.Level, slog.LevelWarn)
	if verbose {
		level = slog.LevelDebug
	}

	w, closer := Writer(cfg)
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		AddSource: level <= slog.LevelDebug,
		Level:     level,
	})
	return slog.New(handler), closer
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
