// Tabrise Marketplace API - Catalog Resolution and Discovery Service
// Copyright 2026 Tabrise Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabrise/marketplace-api

// Package metrics provides Prometheus instrumentation for the
// marketplace API: endpoint latency and throughput, upstream document
// fetches, analytics collaborator calls and cache efficiency.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Upstream data-origin metrics
	UpstreamFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_fetches_total",
			Help: "Total number of fetches against the marketplace data origin",
		},
		[]string{"document", "outcome"},
	)

	UpstreamFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_fetch_duration_seconds",
			Help:    "Upstream document fetch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"document"},
	)

	// Analytics collaborator metrics
	AnalyticsCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_calls_total",
			Help: "Total number of calls to the analytics database",
		},
		[]string{"operation", "outcome"},
	)

	// Document cache metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "document_cache_hits_total",
			Help: "Total number of document cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "document_cache_misses_total",
			Help: "Total number of document cache misses",
		},
	)
)

// RecordAPIRequest records metrics for one completed API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the active request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordUpstreamFetch records one fetch against the data origin.
func RecordUpstreamFetch(document string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	UpstreamFetchesTotal.WithLabelValues(document, outcome).Inc()
	UpstreamFetchDuration.WithLabelValues(document).Observe(duration.Seconds())
}

// RecordAnalyticsCall records one call to the analytics database.
func RecordAnalyticsCall(operation string, success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	AnalyticsCallsTotal.WithLabelValues(operation, outcome).Inc()
}
