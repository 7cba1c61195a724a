package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != ":8787" {
		t.Fatalf("Addr = %q, want :8787", cfg.Addr)
	}
	if cfg.AccessTTL != 15*time.Minute {
		t.Fatalf("AccessTTL = %v, want 15m", cfg.AccessTTL)
	}
	if cfg.SMTPHost != "" {
		t.Fatalf("SMTPHost = %q, want empty", cfg.SMTPHost)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_ADDR", ":9000")
	t.Setenv("CASEDESK_REMINDER_WINDOW", "6h")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("Addr = %q, want :9000", cfg.Addr)
	}
	if cfg.ReminderWindow != 6*time.Hour {
		t.Fatalf("ReminderWindow = %v, want 6h", cfg.ReminderWindow)
	}
	if !cfg.MinioUseSSL {
		t.Fatal("expected MinioUseSSL to be true")
	}
}

func TestLoadMalformedFallsBackToDefaults(t *testing.T) {
	t.Setenv("CASEDESK_ACCESS_TTL", "soon")

	cfg, err := Load()
	if err == nil {
		t.Fatal("expected parse error for malformed duration")
	}
	if cfg.AccessTTL != 15*time.Minute {
		t.Fatalf("AccessTTL = %v, want default 15m", cfg.AccessTTL)
	}
}
