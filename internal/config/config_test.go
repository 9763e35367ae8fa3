package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want INFO", cfg.LogLevel)
	}
	if cfg.RouteCacheTTL != 24*time.Hour {
		t.Errorf("RouteCacheTTL = %v, want 24h", cfg.RouteCacheTTL)
	}
	if !cfg.SeedDemo {
		t.Error("SeedDemo should default to true")
	}
}

func TestLoadRequiresAuth(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("AUTH_ALLOW_USER_HEADER", "false")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}

	t.Setenv("AUTH_ALLOW_USER_HEADER", "true")
	if _, err := Load(); err != nil {
		t.Fatalf("header auth should be enough: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("ROUTE_CACHE_TTL", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if cfg.RouteCacheTTL != 30*time.Minute {
		t.Errorf("RouteCacheTTL = %v", cfg.RouteCacheTTL)
	}
}
