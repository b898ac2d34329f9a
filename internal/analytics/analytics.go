// Tabrise Marketplace API - Catalog Resolution and Discovery Service
// Copyright 2026 Tabrise Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabrise/marketplace-api

// Package analytics is the collaborator boundary to the hosted PostgREST
// analytics database. It owns the per-item view and download counters;
// nothing else in the service writes to the remote store.
//
// Failures here are non-fatal by contract: the query engine logs them and
// keeps serving, trading strict counter consistency for availability.
package analytics

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/supabase-community/postgrest-go"

	"github.com/tabrise/marketplace-api/internal/config"
	"github.com/tabrise/marketplace-api/internal/metrics"
	"github.com/tabrise/marketplace-api/internal/models"
)

// ErrDisabled is returned when the analytics database is not configured.
var ErrDisabled = errors.New("analytics database is not configured")

// Client wraps the PostgREST client for the marketplace_analytics table.
type Client struct {
	pg    *postgrest.Client
	table string

	// Retained for building per-RPC clients, see increment.
	url     string
	schema  string
	headers map[string]string
}

// New creates an analytics client. Returns a disabled client (all calls
// fail with ErrDisabled) when the config has analytics turned off, so the
// caller does not need a nil check at every call site.
func New(cfg config.AnalyticsConfig) *Client {
	if !cfg.Enabled {
		return &Client{}
	}

	headers := map[string]string{
		"apikey":        cfg.Key,
		"Authorization": "Bearer " + cfg.Key,
	}

	return &Client{
		pg:      postgrest.NewClient(cfg.URL, cfg.Schema, headers),
		table:   cfg.Table,
		url:     cfg.URL,
		schema:  cfg.Schema,
		headers: headers,
	}
}

// Enabled reports whether the analytics database is configured.
func (c *Client) Enabled() bool {
	return c.pg != nil
}

// IncrementView calls the increment RPC for the view counter.
func (c *Client) IncrementView(ctx context.Context, category models.Category, key string) error {
	return c.increment(ctx, "increment_marketplace_views", category, key)
}

// IncrementDownload calls the increment RPC for the download counter.
func (c *Client) IncrementDownload(ctx context.Context, category models.Category, key string) error {
	return c.increment(ctx, "increment_marketplace_downloads", category, key)
}

func (c *Client) increment(_ context.Context, rpc string, category models.Category, key string) error {
	if c.pg == nil {
		return ErrDisabled
	}

	// Rpc reports failures through the client's ClientError field, which
	// is shared by every goroutine using the client and is never cleared
	// on success. Each call therefore gets its own throwaway client.
	rpcClient := postgrest.NewClient(c.url, c.schema, c.headers)
	body := rpcClient.Rpc(rpc, "", map[string]interface{}{
		"_category": string(category),
		"_item_id":  key,
	})
	if rpcClient.ClientError != nil {
		metrics.RecordAnalyticsCall(rpc, false)
		return fmt.Errorf("%s: %w", rpc, rpcClient.ClientError)
	}
	if msg := rpcErrorMessage(body); msg != "" {
		metrics.RecordAnalyticsCall(rpc, false)
		return fmt.Errorf("%s: %s", rpc, msg)
	}

	metrics.RecordAnalyticsCall(rpc, true)
	return nil
}

// rpcErrorMessage extracts the message from a PostgREST error payload.
// The increment RPCs are void, so a successful call returns an empty
// body; failed calls return a JSON object carrying code and message.
func rpcErrorMessage(body string) string {
	if body == "" || body[0] != '{' {
		return ""
	}

	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return ""
	}
	if payload.Code != "" && payload.Message != "" {
		return payload.Message
	}
	return ""
}

// Record reads back the counters for one item.
func (c *Client) Record(_ context.Context, category models.Category, key string) (models.AnalyticsRecord, error) {
	if c.pg == nil {
		return models.AnalyticsRecord{}, ErrDisabled
	}

	var record models.AnalyticsRecord
	_, err := c.pg.From(c.table).
		Select("item_id,category,views,downloads", "", false).
		Eq("item_id", key).
		Eq("category", string(category)).
		Single().
		ExecuteTo(&record)
	if err != nil {
		metrics.RecordAnalyticsCall("record", false)
		return models.AnalyticsRecord{}, fmt.Errorf("read counters for %s/%s: %w", category, key, err)
	}

	metrics.RecordAnalyticsCall("record", true)
	return record, nil
}

// Top returns up to limit analytics rows ordered by descending view
// count, optionally restricted to one category. An empty category means
// all categories.
func (c *Client) Top(_ context.Context, category models.Category, limit int) ([]models.AnalyticsRecord, error) {
	if c.pg == nil {
		return nil, ErrDisabled
	}

	query := c.pg.From(c.table).
		Select("item_id,category,views,downloads", "", false).
		Order("views", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "")

	if category != "" {
		query = query.Eq("category", string(category))
	}

	var rows []models.AnalyticsRecord
	_, err := query.ExecuteTo(&rows)
	if err != nil {
		metrics.RecordAnalyticsCall("top", false)
		return nil, fmt.Errorf("read top %d analytics rows: %w", limit, err)
	}

	metrics.RecordAnalyticsCall("top", true)
	return rows, nil
}
