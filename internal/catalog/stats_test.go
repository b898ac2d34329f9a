// Tabrise Marketplace API - Catalog Resolution and Discovery Service
// Copyright 2026 Tabrise Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabrise/marketplace-api

package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tabrise/marketplace-api/internal/analytics"
	"github.com/tabrise/marketplace-api/internal/config"
	"github.com/tabrise/marketplace-api/internal/models"
)

func TestTrending_ViewsMode(t *testing.T) {
	engine, _, counters := testEngine()
	counters.topRows = []models.AnalyticsRecord{
		{ItemID: "cities", Category: models.CategoryPhotoPacks, Views: 500, Downloads: 10},
		{ItemID: "gone", Category: models.CategoryPhotoPacks, Views: 400},
		{ItemID: "forests", Category: models.CategoryPhotoPacks, Views: 300, Downloads: 80},
	}

	items, err := engine.Trending(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("Trending failed: %v", err)
	}

	// The row for a vanished manifest entry is skipped, not fatal
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].ID != "pp_3" || items[0].Views != 500 {
		t.Errorf("Expected cities with 500 views first, got %s views %d", items[0].ID, items[0].Views)
	}
	if items[1].ID != "pp_1" || items[1].Downloads != 80 {
		t.Errorf("Expected forests with downloads attached, got %s downloads %d", items[1].ID, items[1].Downloads)
	}
}

func TestTrending_WeightedModeReranks(t *testing.T) {
	engine, source, counters := testEngine()
	cfg := testConfig()
	cfg.TrendingMode = config.TrendingWeighted
	engine = NewEngine(source, counters, cfg)

	// cities wins on raw views but forests wins on the weighted score:
	// 0.3*100 + 0.7*90 = 93 versus 0.3*200 + 0.7*10 = 67
	counters.topRows = []models.AnalyticsRecord{
		{ItemID: "cities", Category: models.CategoryPhotoPacks, Views: 200, Downloads: 10},
		{ItemID: "forests", Category: models.CategoryPhotoPacks, Views: 100, Downloads: 90},
	}

	items, err := engine.Trending(context.Background(), "", 2)
	if err != nil {
		t.Fatalf("Trending failed: %v", err)
	}

	if len(items) != 2 || items[0].ID != "pp_1" {
		t.Errorf("Expected forests first under weighted ranking, got %v", items)
	}
}

func TestTrending_DisabledAnalyticsIsEmpty(t *testing.T) {
	engine, _, counters := testEngine()
	counters.topErr = analytics.ErrDisabled

	items, err := engine.Trending(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("Disabled analytics must not fail trending: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected empty result, got %d items", len(items))
	}
}

func TestTrending_ClampsLimit(t *testing.T) {
	engine, _, counters := testEngine()
	for _, key := range []string{"forests", "oceans", "cities"} {
		counters.topRows = append(counters.topRows, models.AnalyticsRecord{
			ItemID: key, Category: models.CategoryPhotoPacks, Views: 10,
		})
	}

	items, err := engine.Trending(context.Background(), "", 2)
	if err != nil {
		t.Fatalf("Trending failed: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("Expected limit of 2 respected, got %d", len(items))
	}
}

func statsFixture(t *testing.T) *models.StatsDocument {
	t.Helper()
	raw := []byte(`{
		"total_items": 5,
		"recent_items": [
			{"id": "qp_1", "display_name": "Stoic", "type": "quote_packs"},
			{"id": "pp_3", "display_name": "Cities", "type": "photo_packs"},
			{"id": "pp_2", "display_name": "Oceans", "type": "photo_packs"}
		]
	}`)
	doc := &models.StatsDocument{}
	if err := json.Unmarshal(raw, doc); err != nil {
		t.Fatalf("Failed to build stats fixture: %v", err)
	}
	return doc
}

func TestRecent_FiltersByCategory(t *testing.T) {
	engine, source, _ := testEngine()
	source.stats = statsFixture(t)

	items, total, err := engine.Recent(context.Background(), models.CategoryPhotoPacks, 1)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}

	// Total counts the filtered list before slicing
	if total != 2 {
		t.Errorf("Expected filtered total 2, got %d", total)
	}
	if len(items) != 1 || items[0].ID != "pp_3" {
		t.Errorf("Expected first photo pack entry, got %v", items)
	}
}

func TestRecent_NoFilter(t *testing.T) {
	engine, source, _ := testEngine()
	source.stats = statsFixture(t)

	items, total, err := engine.Recent(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Errorf("Expected all 3 entries, got %d of %d", len(items), total)
	}
}

func TestGlobalStats_VerbatimDocument(t *testing.T) {
	engine, source, _ := testEngine()
	source.stats = statsFixture(t)

	doc, err := engine.GlobalStats(context.Background())
	if err != nil {
		t.Fatalf("GlobalStats failed: %v", err)
	}

	// Re-serializing must reproduce upstream fields the typed model does
	// not know about
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var round map[string]interface{}
	if err := json.Unmarshal(data, &round); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if round["total_items"] != float64(5) {
		t.Errorf("Verbatim field lost: %v", round["total_items"])
	}
}

func TestCategoryStats(t *testing.T) {
	engine, _, _ := testEngine()

	stats, err := engine.CategoryStats(context.Background(), models.CategoryPhotoPacks)
	if err != nil {
		t.Fatalf("CategoryStats failed: %v", err)
	}

	if stats.TotalItems != 3 {
		t.Errorf("Expected 3 items, got %d", stats.TotalItems)
	}
	if stats.TotalItemCount != 40 {
		t.Errorf("Expected summed item count 40, got %d", stats.TotalItemCount)
	}
	if stats.Authors != 3 {
		t.Errorf("Expected 3 distinct authors, got %d", stats.Authors)
	}
	if len(stats.Languages) != 2 || stats.Languages[0] != "de" || stats.Languages[1] != "en" {
		t.Errorf("Expected sorted languages [de en], got %v", stats.Languages)
	}
	if len(stats.RecentItems) != 3 || stats.RecentItems[0].ID != "pp_3" {
		t.Errorf("Recent items should lead with the newest, got %v", stats.RecentItems)
	}
}

func TestIncrementView_ReadsCounterBack(t *testing.T) {
	engine, _, counters := testEngine()
	counters.records["photo_packs/forests"] = models.AnalyticsRecord{
		ItemID: "forests", Category: models.CategoryPhotoPacks, Views: 42, Downloads: 7,
	}

	views, err := engine.IncrementView(context.Background(), "forests", models.CategoryPhotoPacks)
	if err != nil {
		t.Fatalf("IncrementView failed: %v", err)
	}

	if counters.viewCalls != 1 {
		t.Errorf("Expected one increment call, got %d", counters.viewCalls)
	}
	if views != 42 {
		t.Errorf("Expected 42 views, got %d", views)
	}
}

func TestIncrementDownload_ReadsCounterBack(t *testing.T) {
	engine, _, counters := testEngine()
	counters.records["photo_packs/forests"] = models.AnalyticsRecord{
		ItemID: "forests", Category: models.CategoryPhotoPacks, Views: 42, Downloads: 7,
	}

	downloads, err := engine.IncrementDownload(context.Background(), "pp_1", "")
	if err != nil {
		t.Fatalf("IncrementDownload failed: %v", err)
	}
	if downloads != 7 {
		t.Errorf("Expected 7 downloads, got %d", downloads)
	}
}

func TestIncrementView_DegradesToOne(t *testing.T) {
	engine, _, counters := testEngine()
	counters.recordErr = errors.New("connection refused")

	views, err := engine.IncrementView(context.Background(), "forests", models.CategoryPhotoPacks)
	if err != nil {
		t.Fatalf("Counter failure must not fail the request: %v", err)
	}
	if views != 1 {
		t.Errorf("Expected fallback of 1, got %d", views)
	}
}

func TestIncrementView_UnknownItem(t *testing.T) {
	engine, _, counters := testEngine()

	_, err := engine.IncrementView(context.Background(), "missing", "")
	if !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound, got %v", err)
	}
	if counters.viewCalls != 0 {
		t.Error("Counter must not be bumped for an unresolved item")
	}
}

func TestBatchGetItems_EmptyAndOversized(t *testing.T) {
	engine, _, _ := testEngine()

	if _, _, err := engine.BatchGetItems(context.Background(), nil); !errors.Is(err, ErrBatchEmpty) {
		t.Errorf("Expected ErrBatchEmpty, got %v", err)
	}

	ids := make([]string, 101)
	for i := range ids {
		ids[i] = "pp_1"
	}
	if _, _, err := engine.BatchGetItems(context.Background(), ids); !errors.Is(err, ErrBatchTooLarge) {
		t.Errorf("Expected ErrBatchTooLarge, got %v", err)
	}
}

func TestBatchGetItems_MixedOutcomes(t *testing.T) {
	engine, source, _ := testEngine()
	source.docErr["photo_packs/oceans"] = errors.New("origin timeout")

	results, meta, err := engine.BatchGetItems(context.Background(), []string{"pp_1", "nope", "pp_2"})
	if err != nil {
		t.Fatalf("BatchGetItems failed: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("Expected 3 slots, got %d", len(results))
	}

	// Results keep request order regardless of completion order
	if results[0].ID != "pp_1" || results[0].Error != "" || results[0].Data == nil {
		t.Errorf("Expected pp_1 to succeed, got %+v", results[0])
	}
	if results[1].Error != "Not found" {
		t.Errorf("Expected unresolvable ID to report Not found, got %q", results[1].Error)
	}
	if results[2].Error != "Failed to fetch" {
		t.Errorf("Expected fetch failure to report Failed to fetch, got %q", results[2].Error)
	}

	if meta.Requested != 3 || meta.Found != 1 || meta.Errors != 2 {
		t.Errorf("Unexpected meta: %+v", meta)
	}
}

func TestBatchGetItems_AttachesCollections(t *testing.T) {
	engine, _, _ := testEngine()

	results, _, err := engine.BatchGetItems(context.Background(), []string{"pp_1"})
	if err != nil {
		t.Fatalf("BatchGetItems failed: %v", err)
	}

	attached, ok := results[0].Data["in_collections"].([]models.Collection)
	if !ok || len(attached) != 1 {
		t.Fatalf("Expected attached collections, got %v", results[0].Data["in_collections"])
	}
	if attached[0].Items != nil {
		t.Error("Attached collection must not carry its item list")
	}
}
