// Package logging sets up the process-wide structured logger. Cache
// and sync failures are swallowed by design in much of this service,
// so the JSON log stream is the only place they remain visible.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// New creates a *slog.Logger writing JSON to stderr, and to logFile as
// well when one is configured. The logger is installed as the slog
// default so package-level slog calls land in the same stream. Callers
// must defer the returned cleanup; it closes the log file if one was
// opened.
func New(level, logFile string) (*slog.Logger, func(), error) {
	out := io.Writer(os.Stderr)
	cleanup := func() {}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = io.MultiWriter(os.Stderr, f)
		cleanup = func() { _ = f.Close() }
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: parseLevel(level)}))
	slog.SetDefault(logger)
	return logger, cleanup, nil
}

// parseLevel maps the LOG_LEVEL value to a slog level. Unknown values
// fall back to info rather than failing startup.
func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
