// Tabrise Marketplace API - Catalog Resolution and Discovery Service
// Copyright 2026 Tabrise Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabrise/marketplace-api

// Package api provides the HTTP surface of the marketplace: the Chi
// router, the request handlers and the response envelope shared by
// every endpoint.
package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tabrise/marketplace-api/internal/catalog"
	"github.com/tabrise/marketplace-api/internal/logging"
	"github.com/tabrise/marketplace-api/internal/manifest"
)

// Envelope is the success response wrapper for all endpoints.
type Envelope struct {
	// Data contains the response payload.
	Data interface{} `json:"data"`

	// Meta contains pagination or batch metadata where the endpoint
	// produces any.
	Meta interface{} `json:"meta,omitempty"`

	// Updated carries the item's last-modified timestamp on single-item
	// responses.
	Updated string `json:"updated,omitempty"`
}

// ErrorBody is the error response wrapper for all endpoints.
type ErrorBody struct {
	// Error is the machine-readable error kind.
	Error string `json:"error"`

	// Message is a human-readable description.
	Message string `json:"message"`
}

// Error kinds for API responses
const (
	ErrKindNotFound     = "not_found"
	ErrKindBadRequest   = "bad_request"
	ErrKindUpstream     = "upstream_unavailable"
	ErrKindInternal     = "internal_error"
	ErrKindUnauthorized = "unauthorized"
)

// WriteData writes a 200 success envelope with data only.
func WriteData(w http.ResponseWriter, r *http.Request, data interface{}) {
	writeJSON(w, r, http.StatusOK, Envelope{Data: data})
}

// WriteDataMeta writes a 200 success envelope with data and metadata.
func WriteDataMeta(w http.ResponseWriter, r *http.Request, data, meta interface{}) {
	writeJSON(w, r, http.StatusOK, Envelope{Data: data, Meta: meta})
}

// WriteItem writes a 200 single-item envelope with its update timestamp.
func WriteItem(w http.ResponseWriter, r *http.Request, data interface{}, updated string) {
	writeJSON(w, r, http.StatusOK, Envelope{Data: data, Updated: updated})
}

// WriteError writes an error envelope with the given status and kind.
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, kind, message string) {
	writeJSON(w, r, statusCode, ErrorBody{Error: kind, Message: message})
}

// WriteEngineError maps a query-engine error to its HTTP representation:
// resolution failures are 404, malformed requests are 400, a dead data
// origin is 502 and everything else is 500.
func WriteEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrItemNotFound),
		errors.Is(err, catalog.ErrCategoryNotFound),
		errors.Is(err, catalog.ErrCollectionNotFound),
		errors.Is(err, catalog.ErrCuratorNotFound):
		WriteError(w, r, http.StatusNotFound, ErrKindNotFound, err.Error())

	case errors.Is(err, catalog.ErrBadRequest),
		errors.Is(err, catalog.ErrMissingQuery),
		errors.Is(err, catalog.ErrLimitRequired),
		errors.Is(err, catalog.ErrBatchEmpty),
		errors.Is(err, catalog.ErrBatchTooLarge):
		WriteError(w, r, http.StatusBadRequest, ErrKindBadRequest, err.Error())

	case errors.Is(err, manifest.ErrUnavailable):
		logging.Ctx(r.Context()).Error().Err(err).
			Str("path", r.URL.Path).
			Msg("Data origin unavailable")
		WriteError(w, r, http.StatusBadGateway, ErrKindUpstream, "marketplace data origin unavailable")

	default:
		logging.Ctx(r.Context()).Error().Err(err).
			Str("path", r.URL.Path).
			Msg("Request failed")
		WriteError(w, r, http.StatusInternalServerError, ErrKindInternal, "internal server error")
	}
}

// writeJSON writes a JSON response with proper headers.
func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode JSON response")
	}
}
