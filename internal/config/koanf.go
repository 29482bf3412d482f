// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/unmonitarr/config.yaml",
	"/etc/unmonitarr/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load loads configuration with layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

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

// sliceConfigPaths are config keys parsed from comma-separated env strings.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values into slices for
// the keys listed in sliceConfigPaths. Env vars can only carry strings.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw := k.Get(path)
		s, ok := raw.(string)
		if !ok || s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - JELLYFIN_URL -> jellyfin.url
//   - SONARR_API_KEY -> sonarr.api_key
//   - SYNC_DELAY_SECONDS -> sync.debounce_delay (legacy alias)
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"jellyfin_url":           "jellyfin.url",
		"jellyfin_api_key":       "jellyfin.api_key",
		"jellyfin_user_id":       "jellyfin.user_id",
		"jellyfin_webhook_token": "jellyfin.webhook_token",
		"webhook_token":          "jellyfin.webhook_token",

		"sonarr_enabled": "sonarr.enabled",
		"sonarr_url":     "sonarr.url",
		"sonarr_api_key": "sonarr.api_key",

		"radarr_enabled": "radarr.enabled",
		"radarr_url":     "radarr.url",
		"radarr_api_key": "radarr.api_key",

		"omdb_enabled":     "omdb.enabled",
		"use_external_api": "omdb.enabled",
		"omdb_api_key":     "omdb.api_key",
		"omdb_url":         "omdb.url",

		"sync_debounce_delay":      "sync.debounce_delay",
		"sync_delay_seconds":       "sync.debounce_delay",
		"sync_retry_attempts":      "sync.retry_attempts",
		"retry_attempts":           "sync.retry_attempts",
		"sync_retry_delay":         "sync.retry_delay",
		"retry_delay":              "sync.retry_delay",
		"sync_requests_per_minute": "sync.requests_per_minute",
		"max_requests_per_minute":  "sync.requests_per_minute",
		"sync_request_timeout":     "sync.request_timeout",
		"ignore_special_episodes":  "sync.ignore_special_episodes",
		"sync_resolve_cache_ttl":   "sync.resolve_cache_ttl",
		"sync_bulk_page_size":      "sync.bulk_page_size",

		"server_host":              "server.host",
		"server_port":              "server.port",
		"http_port":                "server.port",
		"server_timeout":           "server.timeout",
		"server_cors_origins":      "server.cors_origins",
		"server_rate_limit_reqs":   "server.rate_limit_reqs",
		"server_rate_limit_window": "server.rate_limit_window",

		"store_path": "store.path",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unknown env vars are dropped rather than guessed into config paths.
	return ""
}
