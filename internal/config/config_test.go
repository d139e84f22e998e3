package config

import (
	"testing"
	"time"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error without DATABASE_URL")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/reporthub")

	cfg, err := Load()

	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Port != 3000 {
		t.Fatalf("expected port 3000, got %d", cfg.Port)
	}

	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("expected 5s poll interval, got %s", cfg.PollInterval)
	}

	if cfg.StaleLockTimeout != 5*time.Minute {
		t.Fatalf("expected 5m stale lock timeout, got %s", cfg.StaleLockTimeout)
	}

	if cfg.MaxAttempts != 3 {
		t.Fatalf("expected 3 max attempts, got %d", cfg.MaxAttempts)
	}

	if cfg.WorkerID == "" {
		t.Fatalf("expected a generated worker id")
	}

	if cfg.LogLevel != "info" {
		t.Fatalf("expected info log level, got %s", cfg.LogLevel)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/reporthub")
	t.Setenv("PORT", "8080")
	t.Setenv("WORKER_POLL_INTERVAL_MS", "250")
	t.Setenv("WORKER_MAX_ATTEMPTS", "7")
	t.Setenv("WORKER_INSTANCE_ID", "worker-test-1")

	cfg, err := Load()

	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", cfg.Port)
	}

	if cfg.PollInterval != 250*time.Millisecond {
		t.Fatalf("expected 250ms poll interval, got %s", cfg.PollInterval)
	}

	if cfg.MaxAttempts != 7 {
		t.Fatalf("expected 7 max attempts, got %d", cfg.MaxAttempts)
	}

	if cfg.WorkerID != "worker-test-1" {
		t.Fatalf("expected worker-test-1, got %s", cfg.WorkerID)
	}
}
