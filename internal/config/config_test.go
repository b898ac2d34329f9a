// Tabrise Marketplace API - Catalog Resolution and Discovery Service
// Copyright 2026 Tabrise Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabrise/marketplace-api

package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Keep ambient config files and env vars out of the picture.
	t.Setenv(ConfigPathEnvVar, "/nonexistent/config.yaml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load with defaults failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Upstream.BaseURL != "https://marketplace-data.tabrise.com" {
		t.Errorf("Unexpected default base URL %q", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.ManifestTTL != time.Hour {
		t.Errorf("Expected 1h manifest TTL, got %v", cfg.Upstream.ManifestTTL)
	}
	if cfg.Marketplace.TrendingMode != TrendingByViews {
		t.Errorf("Expected views trending mode, got %q", cfg.Marketplace.TrendingMode)
	}
	if cfg.Marketplace.BatchMaxIDs != 100 {
		t.Errorf("Expected batch cap 100, got %d", cfg.Marketplace.BatchMaxIDs)
	}
	if cfg.Analytics.Enabled {
		t.Error("Analytics should be disabled by default")
	}
	if len(cfg.Security.CORSOrigins) != 1 || cfg.Security.CORSOrigins[0] != "*" {
		t.Errorf("Unexpected default CORS origins %v", cfg.Security.CORSOrigins)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "/nonexistent/config.yaml")
	t.Setenv("SERVER_PORT", "9191")
	t.Setenv("UPSTREAM_BASE_URL", "https://cdn.example.com")
	t.Setenv("MARKETPLACE_TRENDING_MODE", "weighted")
	t.Setenv("SECURITY_CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("Expected env port 9191, got %d", cfg.Server.Port)
	}
	if cfg.Upstream.BaseURL != "https://cdn.example.com" {
		t.Errorf("Expected env base URL, got %q", cfg.Upstream.BaseURL)
	}
	if cfg.Marketplace.TrendingMode != TrendingWeighted {
		t.Errorf("Expected weighted trending mode, got %q", cfg.Marketplace.TrendingMode)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("Expected comma-split CORS origins, got %v", cfg.Security.CORSOrigins)
	}
}

func TestEnvTransformIgnoresUnknownPrefixes(t *testing.T) {
	if got := envTransformFunc("PATH"); got != "" {
		t.Errorf("Expected unrelated env var to be ignored, got %q", got)
	}
	if got := envTransformFunc("SERVER_PORT"); got != "server.port" {
		t.Errorf("Expected server.port, got %q", got)
	}
	if got := envTransformFunc("UPSTREAM_BASE_URL"); got != "upstream.base_url" {
		t.Errorf("Expected upstream.base_url, got %q", got)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "zero port",
			mutate: func(c *Config) { c.Server.Port = 0 },
		},
		{
			name:   "unknown trending mode",
			mutate: func(c *Config) { c.Marketplace.TrendingMode = "hot" },
		},
		{
			name: "weighted mode with zero weights",
			mutate: func(c *Config) {
				c.Marketplace.TrendingMode = TrendingWeighted
				c.Marketplace.TrendingViewWeight = 0
				c.Marketplace.TrendingDownloadWeight = 0
			},
		},
		{
			name:   "zero rate limit",
			mutate: func(c *Config) { c.Security.RateLimitRequests = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := defaultConfig().Validate(); err != nil {
		t.Errorf("Default configuration should validate, got %v", err)
	}
}
