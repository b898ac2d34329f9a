// Tabrise Marketplace API - Catalog Resolution and Discovery Service
// Copyright 2026 Tabrise Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabrise/marketplace-api

// Package config provides layered configuration for the marketplace API.
//
// Configuration is resolved with the following precedence:
//
//	1. Defaults: built-in sensible defaults
//	2. Config file: optional YAML file
//	3. Environment variables: override any setting
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration object.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Upstream    UpstreamConfig    `koanf:"upstream"`
	Analytics   AnalyticsConfig   `koanf:"analytics"`
	Marketplace MarketplaceConfig `koanf:"marketplace"`
	Security    SecurityConfig    `koanf:"security"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// UpstreamConfig holds settings for the remote marketplace data origin.
// The manifest, search index, stats and full item bodies are all served
// from BaseURL; each document class has its own cache TTL.
type UpstreamConfig struct {
	BaseURL         string        `koanf:"base_url" validate:"required,url"`
	FetchTimeout    time.Duration `koanf:"fetch_timeout" validate:"gt=0"`
	ManifestTTL     time.Duration `koanf:"manifest_ttl" validate:"gt=0"`
	ManifestLiteTTL time.Duration `koanf:"manifest_lite_ttl" validate:"gt=0"`
	SearchIndexTTL  time.Duration `koanf:"search_index_ttl" validate:"gt=0"`
	StatsTTL        time.Duration `koanf:"stats_ttl" validate:"gt=0"`
	ItemTTL         time.Duration `koanf:"item_ttl" validate:"gt=0"`

	// Breaker trips upstream fetches after repeated failures so a dead
	// origin fails fast instead of holding request goroutines open.
	BreakerMaxRequests uint32        `koanf:"breaker_max_requests"`
	BreakerInterval    time.Duration `koanf:"breaker_interval"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
}

// AnalyticsConfig holds settings for the hosted PostgREST analytics
// database. When disabled, trending falls back to an empty result and
// counter increments become no-ops.
type AnalyticsConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url" validate:"required_if=Enabled true,omitempty,url"`
	Key     string `koanf:"key"`
	Schema  string `koanf:"schema"`
	Table   string `koanf:"table"`
}

// TrendingMode selects the trending ranking signal.
type TrendingMode string

const (
	// TrendingByViews ranks purely by descending view count.
	TrendingByViews TrendingMode = "views"

	// TrendingWeighted ranks by views*0.3 + downloads*0.7.
	TrendingWeighted TrendingMode = "weighted"
)

// MarketplaceConfig holds query-engine tunables.
type MarketplaceConfig struct {
	TrendingMode           TrendingMode `koanf:"trending_mode" validate:"oneof=views weighted"`
	TrendingDefaultLimit   int          `koanf:"trending_default_limit" validate:"gt=0"`
	TrendingViewWeight     float64      `koanf:"trending_view_weight"`
	TrendingDownloadWeight float64      `koanf:"trending_download_weight"`
	RandomMaxCount         int          `koanf:"random_max_count" validate:"gt=0"`
	BatchMaxIDs            int          `koanf:"batch_max_ids" validate:"gt=0"`
	RelatedLimit           int          `koanf:"related_limit" validate:"gt=0"`
	SortLocale             string       `koanf:"sort_locale"`
}

// SecurityConfig holds CORS, rate limiting and the static admin token.
type SecurityConfig struct {
	AdminToken        string        `koanf:"admin_token"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gt=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Upstream: UpstreamConfig{
			BaseURL:         "https://marketplace-data.tabrise.com",
			FetchTimeout:    10 * time.Second,
			ManifestTTL:     time.Hour,
			ManifestLiteTTL: 30 * time.Minute,
			SearchIndexTTL:  time.Hour,
			StatsTTL:        30 * time.Minute,
			ItemTTL:         time.Hour,

			BreakerMaxRequests: 3,
			BreakerInterval:    time.Minute,
			BreakerTimeout:     30 * time.Second,
		},
		Analytics: AnalyticsConfig{
			Enabled: false,
			URL:     "",
			Key:     "",
			Schema:  "public",
			Table:   "marketplace_analytics",
		},
		Marketplace: MarketplaceConfig{
			TrendingMode:           TrendingByViews,
			TrendingDefaultLimit:   20,
			TrendingViewWeight:     0.3,
			TrendingDownloadWeight: 0.7,
			RandomMaxCount:         10,
			BatchMaxIDs:            100,
			RelatedLimit:           10,
			SortLocale:             "en",
		},
		Security: SecurityConfig{
			AdminToken:        "",
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 300,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Marketplace.TrendingMode == TrendingWeighted {
		sum := c.Marketplace.TrendingViewWeight + c.Marketplace.TrendingDownloadWeight
		if sum <= 0 {
			return fmt.Errorf("invalid configuration: trending weights must sum to a positive value, got %v", sum)
		}
	}

	return nil
}
