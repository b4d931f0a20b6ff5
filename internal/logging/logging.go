// Package logging configures the process-wide slog logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/deixis/procexec/internal/config"
	"github.com/deixis/procexec/internal/runner"
)

// Setup installs the default logger described by cfg and returns it.
// With a log file configured, records are written as JSON to a rotated
// file; otherwise they go to stderr as text. A nil stderr is os.Stderr.
func Setup(cfg *config.Config, stderr io.Writer) *slog.Logger {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := New(cfg, stderr)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger for cfg. stderr receives text records when no log
// file is configured.
func New(cfg *config.Config, stderr io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}

	if cfg.Log.File == "" {
		return slog.New(slog.NewTextHandler(stderr, opts))
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.LogMaxSizeMB(),
		MaxBackups: 3,
		MaxAge:     30, // days
	}
	opts.AddSource = true
	return slog.New(slog.NewJSONHandler(rotator, opts))
}

// Sink adapts logger to a runner log sink emitting at level.
func Sink(logger *slog.Logger, level slog.Level) runner.LogFunc {
	return func(format string, args ...any) {
		logger.Log(context.Background(), level, fmt.Sprintf(format, args...))
	}
}
