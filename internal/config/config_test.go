// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q, want 0.0.0.0:8080", cfg.Server.Addr())
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v, want info/json", cfg.Logging)
	}
	if cfg.Store.Path != "/data/novelrec" {
		t.Errorf("store.path = %q, want /data/novelrec", cfg.Store.Path)
	}
	if cfg.Store.GCInterval != 10*time.Minute {
		t.Errorf("store.gc_interval = %v, want 10m", cfg.Store.GCInterval)
	}
	if cfg.Engine.DefaultLimit != 10 {
		t.Errorf("engine.default_limit = %d, want 10", cfg.Engine.DefaultLimit)
	}
	if cfg.RateLimit.RequestsPerMinute != 300 {
		t.Errorf("rate_limit.requests_per_minute = %d, want 300", cfg.RateLimit.RequestsPerMinute)
	}
	if cfg.Auth.JWTSecret != "" {
		t.Errorf("auth.jwt_secret = %q, want empty", cfg.Auth.JWTSecret)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NOVELREC_SERVER__PORT", "9090")
	t.Setenv("NOVELREC_SERVER__READ_TIMEOUT", "30s")
	t.Setenv("NOVELREC_RATE_LIMIT__REQUESTS_PER_MINUTE", "60")
	t.Setenv("NOVELREC_ENGINE__DEFAULT_LIMIT", "25")
	t.Setenv("NOVELREC_AUTH__JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("server.read_timeout = %v, want 30s", cfg.Server.ReadTimeout)
	}
	if cfg.RateLimit.RequestsPerMinute != 60 {
		t.Errorf("rate_limit.requests_per_minute = %d, want 60", cfg.RateLimit.RequestsPerMinute)
	}
	if cfg.Engine.DefaultLimit != 25 {
		t.Errorf("engine.default_limit = %d, want 25", cfg.Engine.DefaultLimit)
	}
	if cfg.Auth.JWTSecret != "test-secret" {
		t.Errorf("auth.jwt_secret = %q, want test-secret", cfg.Auth.JWTSecret)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: 7070
store:
  path: ""
engine:
  default_limit: 5
  hybrid:
    content: 0.7
    collaborative: 0.3
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("server.port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Store.Path != "" {
		t.Errorf("store.path = %q, want empty (in-memory)", cfg.Store.Path)
	}
	if cfg.Engine.DefaultLimit != 5 {
		t.Errorf("engine.default_limit = %d, want 5", cfg.Engine.DefaultLimit)
	}
	if cfg.Engine.Hybrid.Content != 0.7 {
		t.Errorf("engine.hybrid.content = %v, want 0.7", cfg.Engine.Hybrid.Content)
	}
	// Untouched keys keep their defaults.
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("server.shutdown_timeout = %v, want default 10s", cfg.Server.ShutdownTimeout)
	}
}

func TestLoadEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("NOVELREC_SERVER__PORT", "9999")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("server.port = %d, want env override 9999", cfg.Server.Port)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port out of range", "NOVELREC_SERVER__PORT", "70000"},
		{"negative rate limit", "NOVELREC_RATE_LIMIT__REQUESTS_PER_MINUTE", "-1"},
		{"zero default limit", "NOVELREC_ENGINE__DEFAULT_LIMIT", "0"},
		{"bad min similarity", "NOVELREC_ENGINE__MIN_SIMILARITY", "2.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Error("Load() error = nil, want validation error")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	base := defaultConfig()
	if err := base.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"zero shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = 0 }},
		{"zero gc interval", func(c *Config) { c.Store.GCInterval = 0 }},
		{"bad engine config", func(c *Config) { c.Engine.MaxLimit = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() error = nil, want error")
			}
		})
	}
}
