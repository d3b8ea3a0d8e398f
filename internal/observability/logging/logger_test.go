package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestLevelParsesKnownValues(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"  Warn ": slog.LevelWarn,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
	}
	for value, want := range cases {
		if got := Level(value); got != want {
			t.Fatalf("Level(%q) = %v, want %v", value, got, want)
		}
	}
}

func TestLevelFallsBackToInfo(t *testing.T) {
	if got := Level("verbose"); got != slog.LevelInfo {
		t.Fatalf("unknown level must fall back to info, got %v", got)
	}
	if got := Level(""); got != slog.LevelInfo {
		t.Fatalf("empty level must fall back to info, got %v", got)
	}
}

func TestForBinaryTagsService(t *testing.T) {
	logger := ForBinary("sync", "debug")
	if logger == nil {
		t.Fatalf("expected logger")
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatalf("expected debug enabled")
	}
	if ForBinary("api", "error").Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("expected info suppressed at error level")
	}
}
