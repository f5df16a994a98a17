// Package logging configures the process-wide slog logger.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures slog based on the REDDB_LOG_LEVEL environment variable.
// Supported levels: debug, info, warn, error. Unset leaves the default
// level at info.
func Init() {
	level := slog.LevelInfo
	if raw, ok := os.LookupEnv("REDDB_LOG_LEVEL"); ok {
		switch strings.ToLower(raw) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
