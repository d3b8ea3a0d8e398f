package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("CLEAN_POSTGRES_DSN", "")
	t.Setenv("IMAP_ADDR", "")
	t.Setenv("MAIL_FETCH_PER_SECOND", "")
	t.Setenv("NAV_LIMIT", "")
	t.Setenv("SYNC_CRON", "")

	cfg := Load()
	if cfg.IMAPAddr != "imap.163.com:993" {
		t.Fatalf("expected default imap addr, got %q", cfg.IMAPAddr)
	}
	if cfg.FetchPerSecond != 5 {
		t.Fatalf("expected default fetch rate 5, got %v", cfg.FetchPerSecond)
	}
	if cfg.NavLimit != 5.0 {
		t.Fatalf("expected default nav limit 5.0, got %v", cfg.NavLimit)
	}
	if cfg.SyncCron != "" {
		t.Fatalf("expected one-shot sync by default, got %q", cfg.SyncCron)
	}
	if cfg.CleanPostgresDSN != cfg.PostgresDSN {
		t.Fatalf("expected clean DSN to fall back to primary, got %q vs %q", cfg.CleanPostgresDSN, cfg.PostgresDSN)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://primary/db")
	t.Setenv("CLEAN_POSTGRES_DSN", "postgres://clean/db")
	t.Setenv("NAV_LIMIT", "8.5")
	t.Setenv("SYNC_CRON", "*/30 * * * *")
	t.Setenv("SYNONYMS_PATH", "/etc/fundnav/synonyms.yaml")

	cfg := Load()
	if cfg.CleanPostgresDSN != "postgres://clean/db" {
		t.Fatalf("expected clean DSN override, got %q", cfg.CleanPostgresDSN)
	}
	if cfg.NavLimit != 8.5 {
		t.Fatalf("expected nav limit 8.5, got %v", cfg.NavLimit)
	}
	if cfg.SyncCron != "*/30 * * * *" {
		t.Fatalf("expected cron override, got %q", cfg.SyncCron)
	}
	if cfg.SynonymsPath != "/etc/fundnav/synonyms.yaml" {
		t.Fatalf("expected synonyms path override, got %q", cfg.SynonymsPath)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("NAV_LIMIT", "lots")
	t.Setenv("MAIL_FETCH_PER_SECOND", "-")

	cfg := Load()
	if cfg.NavLimit != 5.0 {
		t.Fatalf("expected fallback nav limit, got %v", cfg.NavLimit)
	}
	if cfg.FetchPerSecond != 5 {
		t.Fatalf("expected fallback fetch rate, got %v", cfg.FetchPerSecond)
	}
}
