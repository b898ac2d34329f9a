// Tabrise Marketplace API - Catalog Resolution and Discovery Service
// Copyright 2026 Tabrise Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabrise/marketplace-api

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tabrise/marketplace-api/internal/config"
	"github.com/tabrise/marketplace-api/internal/middleware"
	"github.com/tabrise/marketplace-api/internal/models"
)

// NewRouter builds the full route tree. The marketplace surface is
// mounted three times: /v1 and /v2 with their respective response
// shapes, and the unversioned /marketplace prefix kept as an alias for
// v1 so old clients keep working.
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Security.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}))

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(cfg, 1000, time.Minute))
		r.Get("/health", h.Health)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Mount("/v1/marketplace", marketplaceRoutes(h, cfg, models.V1))
	r.Mount("/v2/marketplace", marketplaceRoutes(h, cfg, models.V2))
	r.Mount("/marketplace", marketplaceRoutes(h, cfg, models.V1))

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(cfg, 10, time.Minute))
		r.Use(noStore)
		r.Post("/admin/cache/purge", h.AdminPurgeCache)
	})

	return r
}

// marketplaceRoutes builds one versioned marketplace sub-router.
func marketplaceRoutes(h *Handler, cfg *config.Config, v models.APIVersion) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.PrometheusMetrics)
	r.Use(rateLimit(cfg, cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow))

	catalogTTL := cfg.Upstream.ManifestTTL
	statsTTL := cfg.Upstream.StatsTTL

	// Catalog reads, cacheable for the manifest TTL.
	r.Group(func(r chi.Router) {
		r.Use(cacheControl(catalogTTL))

		r.Get("/item/{category}/{identifier}", h.GetItem(v))
		r.Get("/item/{identifier}", h.GetItem(v))
		r.Get("/items/{category}", h.ListItems(v))
		r.Get("/collections", h.ListCollections)
		r.Get("/collection/{name}", h.GetCollection(v))
		r.Get("/curators", h.ListCurators)
		r.Get("/curator/{name}", h.GetCurator)
		r.Get("/featured", h.GetFeatured)
		r.Get("/search", h.Search)
		r.Get("/related/{category}/{identifier}", h.Related)
		r.Get("/related/{identifier}", h.Related)
	})

	// Stats-backed reads, cacheable for the shorter stats TTL.
	r.Group(func(r chi.Router) {
		r.Use(cacheControl(statsTTL))

		r.Get("/recent", h.Recent)
		r.Get("/stats", h.GlobalStats)
		r.Get("/stats/{category}", h.CategoryStats)
	})

	// Random, analytics-backed and mutating routes are never cacheable.
	r.Group(func(r chi.Router) {
		r.Use(noStore)

		r.Get("/random", h.Random)
		r.Get("/random/{category}", h.Random)
		r.Get("/trending", h.Trending)
		r.Get("/batch", h.BatchGet)
		r.Post("/batch", h.BatchPost)
		r.Post("/item/{category}/{identifier}/view", h.IncrementView)
		r.Post("/item/{category}/{identifier}/download", h.IncrementDownload)
		r.Post("/item/{identifier}/view", h.IncrementView)
		r.Post("/item/{identifier}/download", h.IncrementDownload)
	})

	return r
}

// rateLimit returns an IP-keyed fixed-window rate limiter, or a no-op
// when rate limiting is disabled in configuration.
func rateLimit(cfg *config.Config, requests int, window time.Duration) func(http.Handler) http.Handler {
	if cfg.Security.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.LimitByIP(requests, window)
}

// cacheControl marks responses as publicly cacheable for the given TTL.
func cacheControl(ttl time.Duration) func(http.Handler) http.Handler {
	value := fmt.Sprintf("public, max-age=%d", int(ttl.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", value)
			next.ServeHTTP(w, r)
		})
	}
}

// noStore marks responses as never cacheable.
func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
