// Tabrise Marketplace API - Catalog Resolution and Discovery Service
// Copyright 2026 Tabrise Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabrise/marketplace-api

package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/tabrise/marketplace-api/internal/models"
)

func testSearchIndex() *models.SearchIndex {
	return &models.SearchIndex{
		Items: []models.SearchIndexEntry{
			{
				ID: "pp_1", DisplayName: "Forest Walks", Author: "alice",
				Keywords:     []string{"trees", "hiking"},
				CategoryTags: []string{"nature"},
				SearchText:   "forest walks alice trees hiking nature",
			},
			{
				ID: "pp_2", DisplayName: "Ocean Waves", Author: "bob",
				Keywords:   []string{"sea"},
				SearchText: "ocean waves bob sea",
			},
			{
				ID: "qp_1", DisplayName: "Morning Quotes", Author: "carol",
				SearchText: "morning quotes carol forest",
			},
		},
	}
}

func TestSearch_WeightsAndOrder(t *testing.T) {
	engine, source, _ := testEngine()
	source.index = testSearchIndex()

	results, meta, err := engine.Search(context.Background(), "forest", Query{Page: 1, PerPage: 20})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(results))
	}

	// pp_1 matches display_name (10) and search_text (2); qp_1 only
	// search_text (2)
	if results[0].ID != "pp_1" || results[0].Score != 12 {
		t.Errorf("Expected pp_1 with score 12 first, got %s score %d", results[0].ID, results[0].Score)
	}
	if results[1].ID != "qp_1" || results[1].Score != 2 {
		t.Errorf("Expected qp_1 with score 2, got %s score %d", results[1].ID, results[1].Score)
	}

	if meta.Query != "forest" {
		t.Errorf("Meta should echo the query, got %q", meta.Query)
	}
}

func TestSearch_MultiTermAccumulates(t *testing.T) {
	engine, source, _ := testEngine()
	source.index = testSearchIndex()

	results, _, err := engine.Search(context.Background(), "ocean sea", Query{Page: 1, PerPage: 20})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	// "ocean": display_name 10 + search_text 2; "sea": keywords 8 +
	// search_text 2
	if len(results) != 1 || results[0].ID != "pp_2" {
		t.Fatalf("Expected only pp_2, got %v", results)
	}
	if results[0].Score != 22 {
		t.Errorf("Expected accumulated score 22, got %d", results[0].Score)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	engine, source, _ := testEngine()
	source.index = testSearchIndex()

	_, _, err := engine.Search(context.Background(), "   ", Query{Page: 1, PerPage: 20})
	if !errors.Is(err, ErrMissingQuery) {
		t.Errorf("Expected ErrMissingQuery, got %v", err)
	}
}

func TestSearch_CaseInsensitive(t *testing.T) {
	engine, source, _ := testEngine()
	source.index = testSearchIndex()

	results, _, err := engine.Search(context.Background(), "FOREST", Query{Page: 1, PerPage: 20})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Upper-case query should match, got %d results", len(results))
	}
}

func TestRandom_SampleBounds(t *testing.T) {
	engine, _, _ := testEngine()

	items, err := engine.Random(context.Background(), "photo_packs", 2)
	if err != nil {
		t.Fatalf("Random failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}

	seen := map[string]bool{}
	for _, item := range items {
		if seen[item.ID] {
			t.Errorf("Duplicate item %s in sample", item.ID)
		}
		seen[item.ID] = true
	}
}

func TestRandom_CountClampedToPool(t *testing.T) {
	engine, _, _ := testEngine()

	// Pool has 3 photo packs; oversized requests return the whole pool
	items, err := engine.Random(context.Background(), "photo_packs", 50)
	if err != nil {
		t.Fatalf("Random failed: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("Expected full pool of 3, got %d", len(items))
	}
}

func TestRandom_CountClampedToConfiguredMax(t *testing.T) {
	engine, source, _ := testEngine()

	// Grow the pool beyond the configured cap of 10
	for i := 0; i < 15; i++ {
		key := "extra" + string(rune('a'+i))
		source.manifest.PhotoPacks[key] = models.ItemSummary{ID: "x_" + key}
	}

	items, err := engine.Random(context.Background(), "photo_packs", 50)
	if err != nil {
		t.Fatalf("Random failed: %v", err)
	}
	if len(items) != 10 {
		t.Errorf("Expected sample capped at 10, got %d", len(items))
	}
}

func TestRandom_UnknownCategory(t *testing.T) {
	engine, _, _ := testEngine()

	_, err := engine.Random(context.Background(), "wallpapers", 1)
	if !errors.Is(err, ErrCategoryNotFound) {
		t.Errorf("Expected ErrCategoryNotFound, got %v", err)
	}
}

func TestRandom_AllCategories(t *testing.T) {
	engine, _, _ := testEngine()

	items, err := engine.Random(context.Background(), "all", 5)
	if err != nil {
		t.Fatalf("Random failed: %v", err)
	}
	if len(items) != 5 {
		t.Errorf("Expected 5 items from the combined pool, got %d", len(items))
	}
}

func TestGetRelatedItems_ScoresSignals(t *testing.T) {
	engine, _, _ := testEngine()

	result, err := engine.GetRelatedItems(context.Background(), "forests", models.CategoryPhotoPacks)
	if err != nil {
		t.Fatalf("GetRelatedItems failed: %v", err)
	}

	if result.Item.ID != "pp_1" {
		t.Fatalf("Expected target pp_1, got %s", result.Item.ID)
	}

	// oceans: shared collection (10) + shared tag nature (3) = 13.
	// minimal and stoic: same author alice (5) each, minimal first by
	// category scan order. cities matches no signal.
	if len(result.Related) != 3 {
		t.Fatalf("Expected 3 related items, got %d", len(result.Related))
	}

	if result.Related[0].ID != "pp_2" || result.Related[0].RelevanceScore != 13 {
		t.Errorf("Expected pp_2 score 13 first, got %s score %d",
			result.Related[0].ID, result.Related[0].RelevanceScore)
	}
	if result.Related[1].ID != "ps_1" || result.Related[1].RelevanceScore != 5 {
		t.Errorf("Expected ps_1 score 5 second, got %s score %d",
			result.Related[1].ID, result.Related[1].RelevanceScore)
	}
	if result.Related[2].ID != "qp_1" || result.Related[2].RelevanceScore != 5 {
		t.Errorf("Expected qp_1 score 5 third, got %s score %d",
			result.Related[2].ID, result.Related[2].RelevanceScore)
	}
}

func TestGetRelatedItems_ExcludesSelf(t *testing.T) {
	engine, _, _ := testEngine()

	result, err := engine.GetRelatedItems(context.Background(), "pp_1", "")
	if err != nil {
		t.Fatalf("GetRelatedItems failed: %v", err)
	}

	for _, item := range result.Related {
		if item.ID == "pp_1" {
			t.Error("Related items must not include the target itself")
		}
	}
}

func TestGetRelatedItems_SharedCollectionCountsOnce(t *testing.T) {
	engine, source, _ := testEngine()

	// Put forests and oceans together in a second collection; the shared
	// collection signal must still contribute its weight only once
	source.manifest.Collections["blue-green"] = models.Collection{
		Name:  "blue-green",
		Items: []string{"photo_packs/forests", "photo_packs/oceans"},
	}
	forests := source.manifest.PhotoPacks["forests"]
	forests.InCollections = []string{"nature", "blue-green"}
	source.manifest.PhotoPacks["forests"] = forests

	result, err := engine.GetRelatedItems(context.Background(), "forests", models.CategoryPhotoPacks)
	if err != nil {
		t.Fatalf("GetRelatedItems failed: %v", err)
	}

	if result.Related[0].ID != "pp_2" || result.Related[0].RelevanceScore != 13 {
		t.Errorf("Expected pp_2 score 13 despite two shared collections, got %s score %d",
			result.Related[0].ID, result.Related[0].RelevanceScore)
	}
}

func TestGetRelatedItems_UnknownToken(t *testing.T) {
	engine, _, _ := testEngine()

	_, err := engine.GetRelatedItems(context.Background(), "missing", "")
	if !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound, got %v", err)
	}
}
