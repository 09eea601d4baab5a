// Package logging builds the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/atmx/cachedb/internal/config"
)

// New creates a slog.Logger writing to stdout and, when OutputFile is set,
// to a size-rotated file.
func New(opts config.LogConfig) (*slog.Logger, error) {
	return newLogger(opts, os.Stdout)
}

func newLogger(opts config.LogConfig, stdout io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var out io.Writer = stdout
	if opts.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.OutputFile), 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		out = io.MultiWriter(stdout, &lumberjack.Logger{
			Filename:   opts.OutputFile,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     7, // days
			Compress:   true,
		})
	}

	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch opts.Format {
	case "", "json":
		handler = slog.NewJSONHandler(out, handlerOpts)
	case "text":
		handler = slog.NewTextHandler(out, handlerOpts)
	default:
		return nil, fmt.Errorf("invalid log format %q", opts.Format)
	}

	return slog.New(handler), nil
}

// ParseLevel maps a configured level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level %q", s)
}
