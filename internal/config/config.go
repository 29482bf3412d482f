// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

// Package config loads and validates Unmonitarr configuration from layered
// sources: built-in defaults, an optional YAML file, then environment
// variables, with env taking highest precedence.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Jellyfin JellyfinConfig `koanf:"jellyfin"`
	Sonarr   ArrConfig      `koanf:"sonarr"`
	Radarr   ArrConfig      `koanf:"radarr"`
	OMDB     OMDBConfig     `koanf:"omdb"`
	Sync     SyncConfig     `koanf:"sync"`
	Server   ServerConfig   `koanf:"server"`
	Store    StoreConfig    `koanf:"store"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// JellyfinConfig configures the media server connection and webhook intake.
type JellyfinConfig struct {
	URL    string `koanf:"url" validate:"required,url"`
	APIKey string `koanf:"api_key" validate:"required"`

	// UserID scopes watched-state queries during bulk sync. When empty the
	// first user returned by the server is used.
	UserID string `koanf:"user_id"`

	// WebhookToken, when set, must be presented as a bearer token on the
	// webhook endpoint.
	WebhookToken string `koanf:"webhook_token"`
}

// ArrConfig configures one downstream manager (Sonarr or Radarr).
type ArrConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	APIKey  string `koanf:"api_key"`
}

// OMDBConfig configures the optional metadata lookup used to disambiguate
// identical titles.
type OMDBConfig struct {
	Enabled bool   `koanf:"enabled"`
	APIKey  string `koanf:"api_key"`
	URL     string `koanf:"url"`
}

// SyncConfig tunes the reconciliation engine.
type SyncConfig struct {
	// DebounceDelay is the per-item quiet period before a watched-state
	// change is dispatched.
	DebounceDelay time.Duration `koanf:"debounce_delay"`

	// RetryAttempts bounds transient-failure retries per downstream call.
	RetryAttempts int `koanf:"retry_attempts" validate:"min=1,max=10"`

	// RetryDelay is the initial backoff between attempts; it doubles per
	// attempt.
	RetryDelay time.Duration `koanf:"retry_delay"`

	// RequestsPerMinute caps outbound calls per downstream service.
	RequestsPerMinute int `koanf:"requests_per_minute" validate:"min=1,max=600"`

	// RequestTimeout bounds each downstream HTTP call.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// IgnoreSpecialEpisodes skips season-0 items instead of resolving them.
	IgnoreSpecialEpisodes bool `koanf:"ignore_special_episodes"`

	// ResolveCacheTTL bounds how long a successful resolution is reused.
	ResolveCacheTTL time.Duration `koanf:"resolve_cache_ttl"`

	// BulkPageSize is the Jellyfin Items page size during bulk enumeration.
	BulkPageSize int `koanf:"bulk_page_size" validate:"min=1,max=1000"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout     time.Duration `koanf:"timeout"`
	CORSOrigins []string      `koanf:"cors_origins"`

	// RateLimitReqs bounds inbound requests per client IP per window.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// StoreConfig configures the durable action log.
type StoreConfig struct {
	// Path is the BadgerDB directory. Empty means in-memory (tests).
	Path string `koanf:"path"`
}

// LoggingConfig mirrors logging.Config for koanf unmarshaling.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Jellyfin: JellyfinConfig{},
		Sonarr:   ArrConfig{Enabled: true},
		Radarr:   ArrConfig{Enabled: true},
		OMDB: OMDBConfig{
			Enabled: false,
			URL:     "https://www.omdbapi.com",
		},
		Sync: SyncConfig{
			DebounceDelay:         5 * time.Second,
			RetryAttempts:         3,
			RetryDelay:            1 * time.Second,
			RequestsPerMinute:     60,
			RequestTimeout:        30 * time.Second,
			IgnoreSpecialEpisodes: true,
			ResolveCacheTTL:       1 * time.Hour,
			BulkPageSize:          500,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8088,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: 1 * time.Minute,
		},
		Store: StoreConfig{
			Path: "/data/unmonitarr",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
