package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"STORE_DRIVER", "LOCK_TIMEOUT_MS", "SUBMIT_RATE_LIMIT_PER_MINUTE", "MIGRATE_ON_START", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig()
	if cfg.StoreDriver != StorePostgres {
		t.Fatalf("expected postgres driver, got %q", cfg.StoreDriver)
	}
	if cfg.LockTimeout != 5*time.Second {
		t.Fatalf("expected 5s lock timeout, got %s", cfg.LockTimeout)
	}
	if cfg.SubmitRateLimitPerMin != 30 {
		t.Fatalf("expected submit limit 30, got %d", cfg.SubmitRateLimitPerMin)
	}
	if !cfg.MigrateOnStart {
		t.Fatalf("migrations should run by default")
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected info log level, got %q", cfg.LogLevel)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("LOCK_TIMEOUT_MS", "250")
	t.Setenv("MIGRATE_ON_START", "off")
	t.Setenv("SUBMIT_RATE_LIMIT_PER_MINUTE", "-3")

	cfg := LoadConfig()
	if cfg.StoreDriver != StoreMemory {
		t.Fatalf("expected memory driver, got %q", cfg.StoreDriver)
	}
	if cfg.LockTimeout != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %s", cfg.LockTimeout)
	}
	if cfg.MigrateOnStart {
		t.Fatalf("MIGRATE_ON_START=off must disable migrations")
	}
	if cfg.SubmitRateLimitPerMin != 30 {
		t.Fatalf("non-positive limit must fall back to default, got %d", cfg.SubmitRateLimitPerMin)
	}
}

func TestLoadConfigUnknownDriverFallsBack(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	if got := LoadConfig().StoreDriver; got != StorePostgres {
		t.Fatalf("expected postgres fallback, got %q", got)
	}
}

func TestLoadDotEnvKeepsExistingVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("TEACHER_USER=from_file\nAZMOON_DOTENV_PROBE=loaded\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("TEACHER_USER", "from_env")
	t.Setenv("AZMOON_DOTENV_PROBE", "")
	os.Unsetenv("AZMOON_DOTENV_PROBE")

	LoadDotEnv(path, filepath.Join(dir, "missing.env"))

	if got := os.Getenv("TEACHER_USER"); got != "from_env" {
		t.Fatalf("existing variable overwritten: %q", got)
	}
	if got := os.Getenv("AZMOON_DOTENV_PROBE"); got != "loaded" {
		t.Fatalf("expected probe loaded from file, got %q", got)
	}
}
