// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

// Package config loads service configuration with layered sources: built-in
// defaults, an optional YAML file, then NOVELREC_-prefixed environment
// variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/mliang5/novelrec/internal/moderation"
	"github.com/mliang5/novelrec/internal/recommend"
)

// DefaultConfigPaths lists where config files are searched, in order. The
// first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/novelrec/config.yaml",
	"/etc/novelrec/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "NOVELREC_CONFIG_PATH"

// envPrefix is stripped from environment variables before mapping them to
// koanf paths: NOVELREC_SERVER__PORT -> server.port.
const envPrefix = "NOVELREC_"

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig      `koanf:"server" json:"server"`
	Logging    LoggingConfig     `koanf:"logging" json:"logging"`
	Store      StoreConfig       `koanf:"store" json:"store"`
	Catalog    CatalogConfig     `koanf:"catalog" json:"catalog"`
	Engine     recommend.Config  `koanf:"engine" json:"engine"`
	Auth       AuthConfig        `koanf:"auth" json:"auth"`
	RateLimit  RateLimitConfig   `koanf:"rate_limit" json:"rate_limit"`
	Moderation moderation.Config `koanf:"moderation" json:"moderation"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host" json:"host"`
	Port            int           `koanf:"port" json:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout" json:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout"`

	// CORSOrigins lists allowed cross-origin hosts. Empty disables CORS.
	CORSOrigins []string `koanf:"cors_origins" json:"cors_origins"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level  string `koanf:"level" json:"level"`
	Format string `koanf:"format" json:"format"`
	Caller bool   `koanf:"caller" json:"caller"`
}

// StoreConfig holds the preference store settings.
type StoreConfig struct {
	// Path is the BadgerDB directory. Empty runs in memory.
	Path string `koanf:"path" json:"path"`

	// GCInterval is how often value-log garbage collection runs.
	GCInterval time.Duration `koanf:"gc_interval" json:"gc_interval"`
}

// CatalogConfig selects the catalog source.
type CatalogConfig struct {
	// SeedPath points to a JSON fixture loaded into the in-memory catalog
	// (standalone mode). Empty starts with an empty catalog.
	SeedPath string `koanf:"seed_path" json:"seed_path"`
}

// AuthConfig holds optional JWT bearer authentication. Requests without a
// valid token are served anonymously.
type AuthConfig struct {
	// JWTSecret verifies HS256 bearer tokens. Empty disables verification
	// and treats every request as anonymous.
	JWTSecret string `koanf:"jwt_secret" json:"jwt_secret"`
}

// RateLimitConfig holds API rate limits.
type RateLimitConfig struct {
	// RequestsPerMinute per client IP. Zero disables limiting.
	RequestsPerMinute int `koanf:"requests_per_minute" json:"requests_per_minute"`
}

// defaultConfig returns the built-in defaults, applied before the file and
// environment layers.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Path:       "/data/novelrec",
			GCInterval: 10 * time.Minute,
		},
		Engine: recommend.DefaultConfig(),
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 300,
		},
		Moderation: moderation.DefaultConfig(),
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// NOVELREC_ environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Double underscore separates nesting levels so single underscores
	// survive inside key names: NOVELREC_RATE_LIMIT__REQUESTS_PER_MINUTE.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate checks cross-field invariants.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("rate_limit.requests_per_minute must not be negative")
	}
	if c.Store.GCInterval <= 0 {
		return fmt.Errorf("store.gc_interval must be positive")
	}
	return nil
}

// Addr returns the host:port the server listens on.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
