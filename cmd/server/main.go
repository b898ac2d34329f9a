// Tabrise Marketplace API - Catalog Resolution and Discovery Service
// Copyright 2026 Tabrise Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabrise/marketplace-api

// Package main is the entry point for the marketplace API server.
//
// The server is a stateless read layer over two remote stores: the
// static marketplace data origin (manifest, search index, stats,
// featured document and full item bodies) and an optional hosted
// analytics database holding per-item view and download counters. All
// catalog state lives upstream; the server caches documents in memory
// per their TTLs and answers queries from those snapshots.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (UPSTREAM_BASE_URL, ANALYTICS_URL, ...)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting new connections and waits for in-flight requests to
// complete before exiting.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tabrise/marketplace-api/internal/analytics"
	"github.com/tabrise/marketplace-api/internal/api"
	"github.com/tabrise/marketplace-api/internal/cache"
	"github.com/tabrise/marketplace-api/internal/catalog"
	"github.com/tabrise/marketplace-api/internal/config"
	"github.com/tabrise/marketplace-api/internal/logging"
	"github.com/tabrise/marketplace-api/internal/manifest"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("base_url", cfg.Upstream.BaseURL).
		Bool("analytics", cfg.Analytics.Enabled).
		Msg("Starting marketplace API")

	documentCache := cache.New(cfg.Upstream.ManifestTTL)
	loader := manifest.NewLoader(cfg.Upstream, documentCache)
	counters := analytics.New(cfg.Analytics)
	engine := catalog.NewEngine(loader, counters, cfg.Marketplace)

	handler := api.NewHandler(engine, loader, documentCache, cfg)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handler, cfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("HTTP server failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown failed")
	}

	logging.Info().Msg("Server stopped")
}
