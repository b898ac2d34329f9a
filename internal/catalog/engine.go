// Tabrise Marketplace API - Catalog Resolution and Discovery Service
// Copyright 2026 Tabrise Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabrise/marketplace-api

// Package catalog implements the marketplace query engine: the read
// operations over the manifest plus the filter/sort/paginate pipeline
// they share. The engine owns no storage; it reads the cached documents
// supplied by the manifest loader and the counters supplied by the
// analytics collaborator, and reshapes them per request.
package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tabrise/marketplace-api/internal/config"
	"github.com/tabrise/marketplace-api/internal/manifest"
	"github.com/tabrise/marketplace-api/internal/models"
)

// Source supplies the remote catalog documents. *manifest.Loader is the
// production implementation; tests substitute a fixture-backed fake.
type Source interface {
	GetManifest(ctx context.Context, lite bool) (*models.Manifest, error)
	GetSearchIndex(ctx context.Context) (*models.SearchIndex, error)
	GetStats(ctx context.Context) (*models.StatsDocument, error)
	GetFeatured(ctx context.Context) (json.RawMessage, error)
	GetItemDocument(ctx context.Context, category models.Category, key string) (models.ItemDocument, error)
}

// Counters is the analytics collaborator boundary: per-item view and
// download counters in the remote store.
type Counters interface {
	IncrementView(ctx context.Context, category models.Category, key string) error
	IncrementDownload(ctx context.Context, category models.Category, key string) error
	Record(ctx context.Context, category models.Category, key string) (models.AnalyticsRecord, error)
	Top(ctx context.Context, category models.Category, limit int) ([]models.AnalyticsRecord, error)
}

// Engine is the marketplace query engine.
type Engine struct {
	source   Source
	counters Counters
	cfg      config.MarketplaceConfig
	sorter   sorter
}

// NewEngine creates a query engine over the given document source and
// analytics counters.
func NewEngine(source Source, counters Counters, cfg config.MarketplaceConfig) *Engine {
	return &Engine{
		source:   source,
		counters: counters,
		cfg:      cfg,
		sorter:   newSorter(cfg.SortLocale),
	}
}

// ItemResult is a full item body plus its update timestamp.
type ItemResult struct {
	Data    models.ItemDocument
	Updated string
}

// GetItem resolves a token (name or stable ID, category hint optional)
// and returns the full item body with its collection memberships
// attached. Attached collections are copies with their item lists
// stripped; the cached manifest is never mutated.
func (e *Engine) GetItem(ctx context.Context, token string, hint models.Category, v models.APIVersion) (ItemResult, error) {
	m, err := e.source.GetManifest(ctx, false)
	if err != nil {
		return ItemResult{}, err
	}

	res, ok := manifest.Resolve(m, token, hint)
	if !ok || res.Collection {
		return ItemResult{}, ErrItemNotFound
	}

	summary, ok := m.Item(res.Category, res.Key)
	if !ok {
		return ItemResult{}, ErrItemNotFound
	}

	doc, err := e.source.GetItemDocument(ctx, res.Category, res.Key)
	if err != nil {
		return ItemResult{}, err
	}

	doc = doc.Clone()
	doc["in_collections"] = collectionSummaries(m, summary.InCollections)
	doc = models.ItemView(doc, res.Key, v)

	return ItemResult{Data: doc, Updated: doc.UpdatedAt()}, nil
}

// collectionSummaries maps collection keys to stripped collection copies.
func collectionSummaries(m *models.Manifest, names []string) []models.Collection {
	out := make([]models.Collection, 0, len(names))
	for _, name := range names {
		if c, ok := m.Collections[name]; ok {
			out = append(out, c.WithoutItems())
		}
	}
	return out
}

// ListItems returns one category's items, or all categories combined when
// category is "all", shaped by the filter/sort/paginate pipeline.
//
// The combined list always tags each item with its source category; a
// named category is tagged only under V1, V2 omits the redundant tag.
func (e *Engine) ListItems(ctx context.Context, category string, q Query, v models.APIVersion) ([]models.ItemSummary, PageMeta, error) {
	m, err := e.source.GetManifest(ctx, false)
	if err != nil {
		return nil, PageMeta{}, err
	}

	var items []models.ItemSummary
	if category == "all" {
		items = m.AllItems()
	} else {
		cat, ok := models.ParseCategory(category)
		if !ok {
			return nil, PageMeta{}, ErrCategoryNotFound
		}
		items = m.CategoryValues(cat)
		if v == models.V1 {
			for i := range items {
				items[i].Type = cat
			}
		}
	}

	items = applyFilters(items, q)
	items = e.sorter.apply(items, q)

	if q.Offset != nil {
		sliced, err := paginateOffset(items, q)
		if err != nil {
			return nil, PageMeta{}, err
		}
		meta := PageMeta{
			Total:      len(items),
			Page:       q.Page,
			PerPage:    q.PerPage,
			TotalPages: (len(items) + q.PerPage - 1) / q.PerPage,
			HasMore:    *q.Offset+len(sliced) < len(items),
		}
		return sliced, meta, nil
	}

	sliced, meta := paginatePage(items, q)
	return sliced, meta, nil
}

// ListCollections returns all collections with their item lists stripped,
// offset/limit paginated.
func (e *Engine) ListCollections(ctx context.Context, q Query) ([]models.Collection, error) {
	m, err := e.source.GetManifest(ctx, false)
	if err != nil {
		return nil, err
	}

	keys := sortedKeys(m.Collections)
	collections := make([]models.Collection, 0, len(keys))
	for _, key := range keys {
		collections = append(collections, m.Collections[key].WithoutItems())
	}

	return paginateOffset(collections, q)
}

// GetCollection resolves a token in the collections namespace and returns
// the collection with its item references resolved to full summaries.
// Collections with a nil item list (synthetic news collections) pass
// through unchanged.
func (e *Engine) GetCollection(ctx context.Context, token string, v models.APIVersion) (models.ResolvedCollection, error) {
	m, err := e.source.GetManifest(ctx, false)
	if err != nil {
		return models.ResolvedCollection{}, err
	}

	res, ok := manifest.Resolve(m, token, "")
	if !ok || !res.Collection {
		return models.ResolvedCollection{}, ErrCollectionNotFound
	}

	c, ok := m.Collections[res.Key]
	if !ok {
		return models.ResolvedCollection{}, ErrCollectionNotFound
	}

	rc := models.ResolvedCollection{
		Name:        c.Name,
		DisplayName: c.DisplayName,
		Description: c.Description,
		ImageURL:    c.ImageURL,
		News:        c.News,
		NewsLink:    c.NewsLink,
	}

	if c.Items != nil {
		rc.Items = resolveReferences(m, c.Items)
	}

	return models.CollectionView(rc, v), nil
}

// ListCurators returns all curator names, offset/limit paginated.
func (e *Engine) ListCurators(ctx context.Context, q Query) ([]string, error) {
	m, err := e.source.GetManifest(ctx, false)
	if err != nil {
		return nil, err
	}

	return paginateOffset(sortedKeys(m.Curators), q)
}

// GetCurator returns a curator's ordered item references resolved to full
// summaries.
func (e *Engine) GetCurator(ctx context.Context, name string) ([]models.ItemSummary, error) {
	m, err := e.source.GetManifest(ctx, false)
	if err != nil {
		return nil, err
	}

	refs, ok := m.Curators[name]
	if !ok {
		return nil, ErrCuratorNotFound
	}

	return resolveReferences(m, refs), nil
}

// GetFeatured returns the featured document verbatim.
func (e *Engine) GetFeatured(ctx context.Context) (json.RawMessage, error) {
	return e.source.GetFeatured(ctx)
}

// resolveReferences maps "<category>/<name>" reference strings to tagged
// summaries. References that no longer resolve are skipped; the manifest
// invariant says they all do, but a torn upstream publish must not take
// the endpoint down.
func resolveReferences(m *models.Manifest, refs []string) []models.ItemSummary {
	out := make([]models.ItemSummary, 0, len(refs))
	for _, ref := range refs {
		typ, name, found := strings.Cut(ref, "/")
		if !found {
			continue
		}
		cat, ok := models.ParseCategory(typ)
		if !ok {
			continue
		}
		if item, ok := m.Item(cat, name); ok {
			out = append(out, item.Tagged(cat))
		}
	}
	return out
}

// sortedKeys returns map keys in lexical order for deterministic output.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// itemsInKeyOrder returns one category's summaries in lexical key order.
// Scoring scans iterate with this so tie-breaking stays deterministic.
func itemsInKeyOrder(m *models.Manifest, c models.Category) []models.ItemSummary {
	items, ok := m.Items(c)
	if !ok {
		return nil
	}
	out := make([]models.ItemSummary, 0, len(items))
	for _, key := range sortedKeys(items) {
		out = append(out, items[key].Tagged(c))
	}
	return out
}

// allItemsInKeyOrder returns every summary in canonical category order,
// keys sorted within each category.
func allItemsInKeyOrder(m *models.Manifest) []models.ItemSummary {
	var out []models.ItemSummary
	for _, c := range models.Categories() {
		out = append(out, itemsInKeyOrder(m, c)...)
	}
	return out
}
