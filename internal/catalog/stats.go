// Tabrise Marketplace API - Catalog Resolution and Discovery Service
// Copyright 2026 Tabrise Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabrise/marketplace-api

package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/tabrise/marketplace-api/internal/analytics"
	"github.com/tabrise/marketplace-api/internal/config"
	"github.com/tabrise/marketplace-api/internal/logging"
	"github.com/tabrise/marketplace-api/internal/manifest"
	"github.com/tabrise/marketplace-api/internal/models"
)

// batchConcurrency bounds the fan-out of parallel item fetches in
// BatchGetItems.
const batchConcurrency = 16

// Trending returns the most viewed items per the analytics store. In
// weighted mode the ranking score is views*view_weight +
// downloads*download_weight, computed over a window three times the
// requested limit so items whose manifest entry has since disappeared can
// be skipped without starving the result.
func (e *Engine) Trending(ctx context.Context, category models.Category, limit int) ([]models.ItemSummary, error) {
	if limit <= 0 || limit > e.cfg.TrendingDefaultLimit {
		limit = e.cfg.TrendingDefaultLimit
	}

	window := limit
	if e.cfg.TrendingMode == config.TrendingWeighted {
		window = limit * 3
	}

	rows, err := e.counters.Top(ctx, category, window)
	if err != nil {
		if errors.Is(err, analytics.ErrDisabled) {
			return []models.ItemSummary{}, nil
		}
		return nil, fmt.Errorf("fetch trending rows: %w", err)
	}

	if e.cfg.TrendingMode == config.TrendingWeighted {
		sort.SliceStable(rows, func(i, j int) bool {
			return e.trendingScore(rows[i]) > e.trendingScore(rows[j])
		})
	}

	m, err := e.source.GetManifest(ctx, false)
	if err != nil {
		return nil, err
	}

	// Skip-and-continue on lookup miss: analytics rows may outlive their
	// manifest entry.
	items := make([]models.ItemSummary, 0, limit)
	for _, row := range rows {
		item, ok := m.Item(row.Category, row.ItemID)
		if !ok {
			continue
		}
		item.Views = row.Views
		item.Downloads = row.Downloads
		items = append(items, item)
		if len(items) == limit {
			break
		}
	}

	return items, nil
}

func (e *Engine) trendingScore(r models.AnalyticsRecord) float64 {
	return float64(r.Views)*e.cfg.TrendingViewWeight + float64(r.Downloads)*e.cfg.TrendingDownloadWeight
}

// Recent slices the precomputed recent-items list from the remote stats
// document, optionally filtered by category. The returned total counts
// the filtered list before slicing.
func (e *Engine) Recent(ctx context.Context, category models.Category, limit int) ([]models.RecentItem, int, error) {
	stats, err := e.source.GetStats(ctx)
	if err != nil {
		return nil, 0, err
	}

	recent := stats.RecentItems
	if category != "" {
		filtered := make([]models.RecentItem, 0, len(recent))
		for _, item := range recent {
			if item.Type == category {
				filtered = append(filtered, item)
			}
		}
		recent = filtered
	}

	total := len(recent)
	if limit <= 0 {
		limit = e.cfg.TrendingDefaultLimit
	}
	if limit > len(recent) {
		limit = len(recent)
	}

	return recent[:limit], total, nil
}

// GlobalStats returns the remote stats document verbatim.
func (e *Engine) GlobalStats(ctx context.Context) (*models.StatsDocument, error) {
	return e.source.GetStats(ctx)
}

// CategoryStats computes aggregate statistics for one category from the
// manifest.
func (e *Engine) CategoryStats(ctx context.Context, category models.Category) (models.CategoryStats, error) {
	m, err := e.source.GetManifest(ctx, false)
	if err != nil {
		return models.CategoryStats{}, err
	}

	items, ok := m.Items(category)
	if !ok {
		return models.CategoryStats{}, ErrCategoryNotFound
	}

	stats := models.CategoryStats{
		Category:   category,
		TotalItems: len(items),
	}

	authors := map[string]bool{}
	languages := map[string]bool{}
	values := m.CategoryValues(category)
	for _, item := range values {
		stats.TotalItemCount += item.ItemCount
		authors[item.Author] = true
		if item.Language != "" {
			languages[item.Language] = true
		}
	}
	stats.Authors = len(authors)
	stats.Languages = sortedKeys(languages)

	sort.SliceStable(values, func(i, j int) bool {
		return values[i].CreatedAt.After(values[j].CreatedAt)
	})
	if len(values) > 10 {
		values = values[:10]
	}
	stats.RecentItems = values

	return stats, nil
}

// IncrementView resolves the item, bumps its view counter and reads the
// updated count back. Counter failures are logged but never fail the
// request: the response falls back to 1, so a caller cannot distinguish
// "first view" from "read-back failed". That trade is deliberate and
// documented; strict counter consistency loses to availability here.
func (e *Engine) IncrementView(ctx context.Context, token string, hint models.Category) (int64, error) {
	return e.incrementCounter(ctx, token, hint, true)
}

// IncrementDownload is the download-counter twin of IncrementView, with
// the same graceful degradation contract.
func (e *Engine) IncrementDownload(ctx context.Context, token string, hint models.Category) (int64, error) {
	return e.incrementCounter(ctx, token, hint, false)
}

func (e *Engine) incrementCounter(ctx context.Context, token string, hint models.Category, view bool) (int64, error) {
	m, err := e.source.GetManifest(ctx, false)
	if err != nil {
		return 0, err
	}

	res, ok := manifest.Resolve(m, token, hint)
	if !ok || res.Collection {
		return 0, ErrItemNotFound
	}

	var incErr error
	if view {
		incErr = e.counters.IncrementView(ctx, res.Category, res.Key)
	} else {
		incErr = e.counters.IncrementDownload(ctx, res.Category, res.Key)
	}
	if incErr != nil {
		logging.Ctx(ctx).Warn().Err(incErr).
			Str("category", string(res.Category)).
			Str("item", res.Key).
			Msg("Failed to increment counter")
	}

	record, err := e.counters.Record(ctx, res.Category, res.Key)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("category", string(res.Category)).
			Str("item", res.Key).
			Msg("Failed to read counters back")
		return 1, nil
	}

	count := record.Views
	if !view {
		count = record.Downloads
	}
	if count < 1 {
		count = 1
	}
	return count, nil
}

// BatchResult is the per-ID outcome of a batch request. Exactly one of
// Data and Error is set.
type BatchResult struct {
	ID    string              `json:"id"`
	Data  models.ItemDocument `json:"data,omitempty"`
	Error string              `json:"error,omitempty"`
}

// BatchMeta summarizes a batch response.
type BatchMeta struct {
	Requested int `json:"requested"`
	Found     int `json:"found"`
	Errors    int `json:"errors"`
}

// BatchGetItems resolves each stable ID independently and in parallel,
// collecting per-ID success or error without one failure aborting the
// batch. Empty input and input over the configured maximum are client
// errors.
func (e *Engine) BatchGetItems(ctx context.Context, ids []string) ([]BatchResult, BatchMeta, error) {
	if len(ids) == 0 {
		return nil, BatchMeta{}, ErrBatchEmpty
	}
	if len(ids) > e.cfg.BatchMaxIDs {
		return nil, BatchMeta{}, fmt.Errorf("%w: got %d, maximum %d", ErrBatchTooLarge, len(ids), e.cfg.BatchMaxIDs)
	}

	m, err := e.source.GetManifest(ctx, false)
	if err != nil {
		return nil, BatchMeta{}, err
	}

	results := make([]BatchResult, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = e.batchFetchOne(gctx, m, id)
			return nil
		})
	}
	// The per-ID workers never return an error; failures land in their
	// result slot.
	_ = g.Wait()

	meta := BatchMeta{Requested: len(ids)}
	for _, r := range results {
		if r.Error != "" {
			meta.Errors++
		} else {
			meta.Found++
		}
	}

	return results, meta, nil
}

func (e *Engine) batchFetchOne(ctx context.Context, m *models.Manifest, id string) BatchResult {
	res, ok := manifest.Resolve(m, id, "")
	if !ok || res.Collection {
		return BatchResult{ID: id, Error: "Not found"}
	}

	summary, ok := m.Item(res.Category, res.Key)
	if !ok {
		return BatchResult{ID: id, Error: "Not found"}
	}

	doc, err := e.source.GetItemDocument(ctx, res.Category, res.Key)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("id", id).Msg("Batch item fetch failed")
		return BatchResult{ID: id, Error: "Failed to fetch"}
	}

	doc = doc.Clone()
	doc["in_collections"] = collectionSummaries(m, summary.InCollections)

	return BatchResult{ID: id, Data: doc}
}
