// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, Mode Gate) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// FamilyOverride holds the optional per-family persistence policy knobs.
//
// A nil pointer means "not set" — the resolver falls back to the global
// default, then to the production-mode default.
type FamilyOverride struct {
	UseStore     *bool
	UseCache     *bool
	CacheName    string
	SyncInterval time.Duration
}

// Config holds all runtime configuration for the Vaultiq host server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL). Optional: only consulted when the
	// resolved policy enables the store tier for at least one family.
	DatabaseURL string `env:"DATABASE_URL"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL"`

	// ProductionMode, when set, defaults BOTH persistence tiers on for every
	// family that carries no explicit setting. Defaults to false: no
	// persistence unless explicitly opted in.
	ProductionMode bool `env:"VAULTIQ_PRODUCTION_MODE" envDefault:"false"`

	// Global persistence tier defaults. Nil means "not set".
	PersistUseStore *bool `env:"VAULTIQ_PERSIST_USE_STORE"`
	PersistUseCache *bool `env:"VAULTIQ_PERSIST_USE_CACHE"`

	// Per-family tier overrides. Nil means "fall back to the global default".
	SessionUseStore    *bool `env:"VAULTIQ_SESSION_USE_STORE"`
	SessionUseCache    *bool `env:"VAULTIQ_SESSION_USE_CACHE"`
	RevocationUseStore *bool `env:"VAULTIQ_REVOCATION_USE_STORE"`
	RevocationUseCache *bool `env:"VAULTIQ_REVOCATION_USE_CACHE"`
	IndexUseStore      *bool `env:"VAULTIQ_INDEX_USE_STORE"`
	IndexUseCache      *bool `env:"VAULTIQ_INDEX_USE_CACHE"`
	ActivityUseStore   *bool `env:"VAULTIQ_ACTIVITY_USE_STORE"`
	ActivityUseCache   *bool `env:"VAULTIQ_ACTIVITY_USE_CACHE"`

	// Per-family cache name overrides. Empty means "use the canonical alias".
	SessionCacheName    string `env:"VAULTIQ_SESSION_CACHE_NAME"`
	RevocationCacheName string `env:"VAULTIQ_REVOCATION_CACHE_NAME"`
	IndexCacheName      string `env:"VAULTIQ_INDEX_CACHE_NAME"`
	ActivityCacheName   string `env:"VAULTIQ_ACTIVITY_CACHE_NAME"`

	// RevokeDeletesSession selects the revocation reflection policy for
	// store-backed modes: true deletes the session row outright,
	// false (default) marks it revoked and keeps it for historical queries.
	RevokeDeletesSession bool `env:"VAULTIQ_REVOKE_DELETES_SESSION" envDefault:"false"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
