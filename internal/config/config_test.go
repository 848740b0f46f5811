package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ERPCORE_AUTH_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected http addr %q", cfg.HTTPAddr)
	}
	if cfg.MaxFailedLogins != 5 || cfg.LockoutDuration != 15*time.Minute {
		t.Fatalf("unexpected lockout policy: %d / %s", cfg.MaxFailedLogins, cfg.LockoutDuration)
	}
	if cfg.UsesPostgres() {
		t.Fatal("expected in-memory storage without DSN")
	}
	if cfg.IsProduction() {
		t.Fatal("default env must not be production")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ERPCORE_AUTH_SECRET", "s3cret")
	t.Setenv("ERPCORE_ENV", "production")
	t.Setenv("ERPCORE_PG_DSN", "postgres://localhost/erpcore")
	t.Setenv("ERPCORE_LOCKOUT_DURATION", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.IsProduction() || !cfg.UsesPostgres() {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.LockoutDuration != time.Hour {
		t.Fatalf("unexpected lockout duration %s", cfg.LockoutDuration)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("ERPCORE_AUTH_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without auth secret")
	}
}

func TestValidateRejectsBadLockoutPolicy(t *testing.T) {
	cfg := Config{AuthSecret: "x", MaxFailedLogins: 0, LockoutDuration: time.Minute, AccessTTL: time.Minute, RateBurst: 1, RatePerSec: 1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestValidateRequiresSuperuserPassword(t *testing.T) {
	cfg := Config{AuthSecret: "x", MaxFailedLogins: 5, LockoutDuration: time.Minute, AccessTTL: time.Minute, RateBurst: 1, RatePerSec: 1, SuperuserUsername: "admin"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error without superuser password")
	}
}

func TestLoadDatabaseWithoutAuthSecret(t *testing.T) {
	t.Setenv("ERPCORE_AUTH_SECRET", "")
	t.Setenv("ERPCORE_PG_DSN", "postgres://localhost/erpcore")

	db, err := LoadDatabase()
	if err != nil {
		t.Fatalf("LoadDatabase: %v", err)
	}
	if db.PGDSN != "postgres://localhost/erpcore" || db.PGMaxOpenConns != 50 {
		t.Fatalf("unexpected database config: %+v", db)
	}

	t.Setenv("ERPCORE_AUTH_SECRET", "s3cret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseConfig != *db {
		t.Fatalf("database settings diverge: %+v vs %+v", cfg.DatabaseConfig, *db)
	}
}
