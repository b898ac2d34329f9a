// Tabrise Marketplace API - Catalog Resolution and Discovery Service
// Copyright 2026 Tabrise Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabrise/marketplace-api

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Category identifies one of the marketplace item namespaces. Unknown
// category strings are rejected at the API boundary, never at lookup sites.
type Category string

const (
	CategoryPresetSettings Category = "preset_settings"
	CategoryPhotoPacks     Category = "photo_packs"
	CategoryQuotePacks     Category = "quote_packs"
)

// Categories returns all item categories in their canonical order.
// The order is stable because GetItems("all") concatenates per-category
// values in this order before sorting.
func Categories() []Category {
	return []Category{CategoryPresetSettings, CategoryPhotoPacks, CategoryQuotePacks}
}

// ParseCategory validates a caller-supplied category string.
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case CategoryPresetSettings, CategoryPhotoPacks, CategoryQuotePacks:
		return Category(s), true
	}
	return "", false
}

// ItemSummary is the lightweight manifest-resident record for an item.
// Full item bodies are fetched separately per canonical path and are a
// superset of these fields.
type ItemSummary struct {
	ID            string    `json:"id"`
	DisplayName   string    `json:"display_name"`
	Author        string    `json:"author"`
	Tags          []string  `json:"tags,omitempty"`
	Language      string    `json:"language,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	ItemCount     int       `json:"item_count"`
	InCollections []string  `json:"in_collections"`
	IsDark        bool      `json:"isDark,omitempty"`
	IsLight       bool      `json:"isLight,omitempty"`

	// Type is a synthetic tag added when items from several categories are
	// combined into one list. It is never present in the manifest itself.
	Type Category `json:"type,omitempty"`

	// RelevanceScore is populated by related-item and search responses.
	RelevanceScore int `json:"relevance_score,omitempty"`

	// Views and Downloads are populated by trending responses from the
	// analytics store.
	Views     int64 `json:"views,omitempty"`
	Downloads int64 `json:"downloads,omitempty"`
}

// Tagged returns a copy of the summary with the synthetic type tag set.
func (s ItemSummary) Tagged(c Category) ItemSummary {
	s.Type = c
	return s
}

// Collection groups items under a display name. Synthetic collections
// (news) carry a nil Items slice and pass through endpoints unchanged.
type Collection struct {
	Name        string   `json:"name,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	Description string   `json:"description,omitempty"`
	ImageURL    string   `json:"img,omitempty"`
	Items       []string `json:"items,omitempty"`
	News        bool     `json:"news,omitempty"`
	NewsLink    string   `json:"news_link,omitempty"`
}

// WithoutItems returns a copy of the collection with the item list
// stripped. Handlers must never delete the field on the original struct:
// the receiver may be shared by every request served from the cached
// manifest.
func (c Collection) WithoutItems() Collection {
	c.Items = nil
	return c
}

// Manifest is the denormalized root catalog document. It is immutable
// once loaded; every accessor that hands data to reshaping code returns
// copies of mutable values.
type Manifest struct {
	Collections    map[string]Collection    `json:"collections"`
	Curators       map[string][]string      `json:"curators"`
	PresetSettings map[string]ItemSummary   `json:"preset_settings"`
	PhotoPacks     map[string]ItemSummary   `json:"photo_packs"`
	QuotePacks     map[string]ItemSummary   `json:"quote_packs"`
	IDIndex        map[string]string        `json:"_id_index"`
}

// Items returns the item map for a category. The bool result is false
// for categories absent from the manifest.
func (m *Manifest) Items(c Category) (map[string]ItemSummary, bool) {
	switch c {
	case CategoryPresetSettings:
		return m.PresetSettings, m.PresetSettings != nil
	case CategoryPhotoPacks:
		return m.PhotoPacks, m.PhotoPacks != nil
	case CategoryQuotePacks:
		return m.QuotePacks, m.QuotePacks != nil
	}
	return nil, false
}

// Item looks up a single summary by category and key.
func (m *Manifest) Item(c Category, key string) (ItemSummary, bool) {
	items, ok := m.Items(c)
	if !ok {
		return ItemSummary{}, false
	}
	item, ok := items[key]
	return item, ok
}

// CategoryValues returns the summaries of one category as a slice.
func (m *Manifest) CategoryValues(c Category) []ItemSummary {
	items, ok := m.Items(c)
	if !ok {
		return nil
	}
	out := make([]ItemSummary, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out
}

// AllItems returns every summary across all categories, each tagged with
// its source category.
func (m *Manifest) AllItems() []ItemSummary {
	var out []ItemSummary
	for _, c := range Categories() {
		for _, item := range m.CategoryValues(c) {
			out = append(out, item.Tagged(c))
		}
	}
	return out
}

// SearchIndexEntry is one row of the precomputed search-index document.
type SearchIndexEntry struct {
	ID           string   `json:"id,omitempty"`
	DisplayName  string   `json:"display_name"`
	Author       string   `json:"author"`
	Type         Category `json:"type,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	CategoryTags []string `json:"category_tags,omitempty"`
	SearchText   string   `json:"search_text"`

	// Score is populated by search responses, zero-score entries are dropped.
	Score int `json:"score,omitempty"`
}

// SearchIndex is the remote search-index document. It has an independent
// cache lifetime from the manifest.
type SearchIndex struct {
	Items []SearchIndexEntry `json:"items"`
}

// RecentItem is one entry of the stats document's precomputed recent list.
type RecentItem struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Type        Category  `json:"type,omitempty"`
	Author      string    `json:"author,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// StatsDocument wraps the remote stats document. The raw bytes are kept
// so the global stats endpoint can return the document verbatim while
// typed access stays available for the recent-items slice.
type StatsDocument struct {
	RecentItems []RecentItem

	raw json.RawMessage
}

// UnmarshalJSON retains the full document alongside the typed fields.
func (s *StatsDocument) UnmarshalJSON(data []byte) error {
	var typed struct {
		RecentItems []RecentItem `json:"recent_items"`
	}
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}
	s.RecentItems = typed.RecentItems
	s.raw = append(s.raw[:0], data...)
	return nil
}

// MarshalJSON emits the document exactly as fetched.
func (s StatsDocument) MarshalJSON() ([]byte, error) {
	if s.raw == nil {
		return []byte("null"), nil
	}
	return s.raw, nil
}

// CategoryStats is computed on demand from the manifest.
type CategoryStats struct {
	Category       Category      `json:"category"`
	TotalItems     int           `json:"total_items"`
	TotalItemCount int           `json:"total_item_count"`
	Authors        int           `json:"authors"`
	Languages      []string      `json:"languages"`
	RecentItems    []ItemSummary `json:"recent_items"`
}

// AnalyticsRecord mirrors one row of the remote marketplace_analytics
// table, keyed by (item_id, category). Counters are monotonically
// non-decreasing and are mutated only through the analytics collaborator.
type AnalyticsRecord struct {
	ItemID    string   `json:"item_id"`
	Category  Category `json:"category"`
	Views     int64    `json:"views"`
	Downloads int64    `json:"downloads"`
}
