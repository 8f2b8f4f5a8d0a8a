// Package logging configures the structured slog logger shared by the
// indexer, query planner, and operator CLI.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls where and how log records are written.
type Config struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string
	// FilePath, if set, writes JSON logs to a rotating file in addition
	// to (or instead of) stderr. Empty means stderr only.
	FilePath string
	// MaxSizeMB is the rotation threshold when FilePath is set (default 100).
	MaxSizeMB int
	// MaxFiles is the number of rotated files retained (default 5).
	MaxFiles int
	// WriteToStderr additionally writes to stderr even when FilePath is set.
	// Ignored (treated as true) when FilePath is empty.
	WriteToStderr bool
	// AddSource includes the file:line of the log call, useful when
	// debugging a specific component in a multi-shard build.
	AddSource bool
}

// DefaultConfig returns the config used by long-running indexer and query
// planner processes: info level, JSON to stderr only.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		WriteToStderr: true,
		MaxSizeMB:     100,
		MaxFiles:      5,
	}
}

// Setup builds a slog.Logger from cfg and returns a cleanup function that
// flushes and closes any file writer. Callers should defer cleanup().
func Setup(cfg Config) (*slog.Logger, func(), error) {
	var output io.Writer = os.Stderr
	cleanup := func() {}

	if cfg.FilePath != "" {
		writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, nil, err
		}
		if cfg.WriteToStderr {
			output = io.MultiWriter(writer, os.Stderr)
		} else {
			output = writer
		}
		cleanup = func() {
			_ = writer.Sync()
			_ = writer.Close()
		}
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	})

	return slog.New(handler), cleanup, nil
}

// SetupDefault wires Setup(DefaultConfig()) as the process-wide default
// logger and returns its cleanup function.
func SetupDefault() (func(), error) {
	logger, cleanup, err := Setup(DefaultConfig())
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cleanup, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
