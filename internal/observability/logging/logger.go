package logging

import (
	"log/slog"
	"os"
	"strings"
)

// ForBinary builds the JSON logger shared by the pipeline binaries
// (sync, calibrate, api, export). Every line carries the binary name
// so the four services can be told apart in one aggregated stream.
func ForBinary(binary, level string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: Level(level),
	})
	return slog.New(handler).With("service", binary)
}

// Level maps the LOG_LEVEL config value onto slog levels. Unknown
// values fall back to info instead of failing startup: a sync run must
// not be blocked by a typo in an env var.
func Level(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
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
