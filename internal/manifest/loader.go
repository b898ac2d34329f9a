// Tabrise Marketplace API - Catalog Resolution and Discovery Service
// Copyright 2026 Tabrise Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabrise/marketplace-api

// Package manifest loads the denormalized catalog documents from the
// remote marketplace data origin and resolves caller-supplied
// identifiers against them.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"

	"github.com/tabrise/marketplace-api/internal/cache"
	"github.com/tabrise/marketplace-api/internal/config"
	"github.com/tabrise/marketplace-api/internal/logging"
	"github.com/tabrise/marketplace-api/internal/metrics"
	"github.com/tabrise/marketplace-api/internal/models"
)

// ErrUnavailable indicates the remote data origin could not be fetched or
// its response could not be parsed. Callers must not partially apply a
// broken document; the loader never caches a failed fetch.
var ErrUnavailable = errors.New("marketplace data origin unavailable")

// Loader fetches catalog documents over HTTP with a time-boxed cache.
// Each document class (manifest, lite manifest, search index, stats,
// featured, item bodies) has an independent cache entry and TTL. The
// cache is owned by the loader and handed in at construction so it can be
// shared with the admin purge endpoint; there is no package-level state.
type Loader struct {
	cfg     config.UpstreamConfig
	client  *http.Client
	cache   *cache.Cache
	group   singleflight.Group
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewLoader creates a loader over the configured data origin.
func NewLoader(cfg config.UpstreamConfig, c *cache.Cache) *Loader {
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "marketplace-data",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
	})

	return &Loader{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.FetchTimeout,
		},
		cache:   c,
		breaker: breaker,
	}
}

// GetManifest returns the catalog manifest, full or lite. Results are
// cached keyed by the lite flag; concurrent callers during the TTL window
// receive the cached value with no re-fetch, and callers racing on an
// expired entry are collapsed into a single fetch.
func (l *Loader) GetManifest(ctx context.Context, lite bool) (*models.Manifest, error) {
	key, path, ttl := "manifest:full", "/manifest.json?v=2", l.cfg.ManifestTTL
	if lite {
		key, path, ttl = "manifest:lite", "/manifest-lite.json", l.cfg.ManifestLiteTTL
	}

	v, err := l.load(ctx, key, path, ttl, func(data []byte) (interface{}, error) {
		m := &models.Manifest{}
		if err := json.Unmarshal(data, m); err != nil {
			return nil, err
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Manifest), nil
}

// GetSearchIndex returns the precomputed search-index document. Its cache
// lifetime is independent from the manifest.
func (l *Loader) GetSearchIndex(ctx context.Context) (*models.SearchIndex, error) {
	v, err := l.load(ctx, "search-index", "/search-index.json", l.cfg.SearchIndexTTL, func(data []byte) (interface{}, error) {
		idx := &models.SearchIndex{}
		if err := json.Unmarshal(data, idx); err != nil {
			return nil, err
		}
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.SearchIndex), nil
}

// GetStats returns the remote stats document.
func (l *Loader) GetStats(ctx context.Context) (*models.StatsDocument, error) {
	v, err := l.load(ctx, "stats", "/stats.json", l.cfg.StatsTTL, func(data []byte) (interface{}, error) {
		doc := &models.StatsDocument{}
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, err
		}
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.StatsDocument), nil
}

// GetFeatured returns the featured document verbatim.
func (l *Loader) GetFeatured(ctx context.Context) (json.RawMessage, error) {
	v, err := l.load(ctx, "featured", "/featured.json", l.cfg.ManifestTTL, func(data []byte) (interface{}, error) {
		if !json.Valid(data) {
			return nil, errors.New("invalid JSON document")
		}
		return json.RawMessage(append([]byte(nil), data...)), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(json.RawMessage), nil
}

// GetItemDocument fetches a full item body by canonical path.
func (l *Loader) GetItemDocument(ctx context.Context, category models.Category, key string) (models.ItemDocument, error) {
	cacheKey := fmt.Sprintf("item:%s/%s", category, key)
	path := fmt.Sprintf("/%s/%s.json", category, key)

	v, err := l.load(ctx, cacheKey, path, l.cfg.ItemTTL, func(data []byte) (interface{}, error) {
		doc := models.ItemDocument{}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(models.ItemDocument), nil
}

// Purge drops every cached document. The next request for each document
// triggers a fresh fetch.
func (l *Loader) Purge() {
	l.cache.Clear()
}

// load implements the shared fetch-parse-cache contract. The parsed value
// is built fully before it is swapped into the cache, so concurrent
// readers never observe a partially-applied document. Fetch failures are
// never cached.
func (l *Loader) load(ctx context.Context, key, path string, ttl time.Duration, parse func([]byte) (interface{}, error)) (interface{}, error) {
	if v, ok := l.cache.Get(key); ok {
		return v, nil
	}

	v, err, _ := l.group.Do(key, func() (interface{}, error) {
		// Re-check under singleflight: another caller may have populated
		// the entry while this one waited.
		if v, ok := l.cache.Get(key); ok {
			return v, nil
		}

		start := time.Now()
		data, err := l.fetch(ctx, path)
		metrics.RecordUpstreamFetch(key, err == nil, time.Since(start))
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", path, err)
		}

		parsed, err := parse(data)
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("path", path).Msg("Failed to parse upstream document")
			return nil, fmt.Errorf("parse %s: %w", path, ErrUnavailable)
		}

		l.cache.SetWithTTL(key, parsed, ttl)
		return parsed, nil
	})
	return v, err
}

// fetch performs one breaker-guarded GET against the data origin.
func (l *Loader) fetch(ctx context.Context, path string) ([]byte, error) {
	data, err := l.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.BaseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		return io.ReadAll(resp.Body)
	})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("path", path).Msg("Upstream fetch failed")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, nil
}
