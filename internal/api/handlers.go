// Tabrise Marketplace API - Catalog Resolution and Discovery Service
// Copyright 2026 Tabrise Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabrise/marketplace-api

package api

import (
	"crypto/subtle"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tabrise/marketplace-api/internal/cache"
	"github.com/tabrise/marketplace-api/internal/catalog"
	"github.com/tabrise/marketplace-api/internal/config"
	"github.com/tabrise/marketplace-api/internal/logging"
	"github.com/tabrise/marketplace-api/internal/manifest"
	"github.com/tabrise/marketplace-api/internal/models"
)

// Handler holds the query engine and collaborators behind the HTTP
// surface.
type Handler struct {
	engine  *catalog.Engine
	loader  *manifest.Loader
	cache   *cache.Cache
	cfg     *config.Config
	started time.Time
}

// NewHandler creates the handler set for the marketplace endpoints.
func NewHandler(engine *catalog.Engine, loader *manifest.Loader, c *cache.Cache, cfg *config.Config) *Handler {
	return &Handler{
		engine:  engine,
		loader:  loader,
		cache:   c,
		cfg:     cfg,
		started: time.Now(),
	}
}

// pathParam returns a URL path parameter with percent-escapes decoded.
// Curator names and item keys may contain spaces.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// categoryHint parses an optional category path segment. An empty
// segment means no hint; an unknown one is a resolution failure.
func categoryHint(raw string) (models.Category, error) {
	if raw == "" {
		return "", nil
	}
	c, ok := models.ParseCategory(raw)
	if !ok {
		return "", catalog.ErrCategoryNotFound
	}
	return c, nil
}

// GetItem serves GET /item/{category}/{identifier} and the ID-addressed
// GET /item/{identifier}.
func (h *Handler) GetItem(v models.APIVersion) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hint, err := categoryHint(chi.URLParam(r, "category"))
		if err != nil {
			WriteEngineError(w, r, err)
			return
		}

		result, err := h.engine.GetItem(r.Context(), pathParam(r, "identifier"), hint, v)
		if err != nil {
			WriteEngineError(w, r, err)
			return
		}

		WriteItem(w, r, result.Data, result.Updated)
	}
}

// ListItems serves GET /items/{category}. The pseudo-category "all"
// returns every category combined.
func (h *Handler) ListItems(v models.APIVersion) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := catalog.ParseQuery(r.URL.Query())
		if err != nil {
			WriteEngineError(w, r, err)
			return
		}

		items, meta, err := h.engine.ListItems(r.Context(), pathParam(r, "category"), q, v)
		if err != nil {
			WriteEngineError(w, r, err)
			return
		}

		WriteDataMeta(w, r, items, meta)
	}
}

// ListCollections serves GET /collections.
func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	q, err := catalog.ParseQuery(r.URL.Query())
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	collections, err := h.engine.ListCollections(r.Context(), q)
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	WriteData(w, r, collections)
}

// GetCollection serves GET /collection/{name}.
func (h *Handler) GetCollection(v models.APIVersion) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collection, err := h.engine.GetCollection(r.Context(), pathParam(r, "name"), v)
		if err != nil {
			WriteEngineError(w, r, err)
			return
		}

		WriteData(w, r, collection)
	}
}

// ListCurators serves GET /curators.
func (h *Handler) ListCurators(w http.ResponseWriter, r *http.Request) {
	q, err := catalog.ParseQuery(r.URL.Query())
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	curators, err := h.engine.ListCurators(r.Context(), q)
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	WriteData(w, r, curators)
}

// GetCurator serves GET /curator/{name}.
func (h *Handler) GetCurator(w http.ResponseWriter, r *http.Request) {
	items, err := h.engine.GetCurator(r.Context(), pathParam(r, "name"))
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	WriteData(w, r, map[string]interface{}{"items": items})
}

// GetFeatured serves GET /featured with the curated document verbatim.
func (h *Handler) GetFeatured(w http.ResponseWriter, r *http.Request) {
	doc, err := h.engine.GetFeatured(r.Context())
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	WriteData(w, r, doc)
}

// Search serves GET /search?q=. The legacy "query" parameter is accepted
// as an alias.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	rawQuery := r.URL.Query().Get("q")
	if rawQuery == "" {
		rawQuery = r.URL.Query().Get("query")
	}

	q, err := catalog.ParseQuery(r.URL.Query())
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	entries, meta, err := h.engine.Search(r.Context(), rawQuery, q)
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	WriteDataMeta(w, r, entries, meta)
}

// BatchGet serves GET /batch?ids=a,b,c.
func (h *Handler) BatchGet(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	h.serveBatch(w, r, ids)
}

// BatchPost serves POST /batch with a JSON body {"ids": [...]}.
func (h *Handler) BatchPost(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, r, http.StatusBadRequest, ErrKindBadRequest, "invalid JSON body")
		return
	}

	h.serveBatch(w, r, body.IDs)
}

func (h *Handler) serveBatch(w http.ResponseWriter, r *http.Request, ids []string) {
	results, meta, err := h.engine.BatchGetItems(r.Context(), ids)
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	WriteDataMeta(w, r, results, meta)
}

// Random serves GET /random and GET /random/{category}. A count of one
// returns a single object rather than a one-element array.
func (h *Handler) Random(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	if category == "" {
		category = "all"
	}

	count := 1
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			WriteError(w, r, http.StatusBadRequest, ErrKindBadRequest, "invalid count "+strconv.Quote(raw))
			return
		}
		count = n
	}

	items, err := h.engine.Random(r.Context(), category, count)
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	if count == 1 && len(items) == 1 {
		WriteData(w, r, items[0])
		return
	}
	WriteData(w, r, items)
}

// Related serves GET /related/{category}/{identifier} and the
// ID-addressed GET /related/{identifier}.
func (h *Handler) Related(w http.ResponseWriter, r *http.Request) {
	hint, err := categoryHint(chi.URLParam(r, "category"))
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	result, err := h.engine.GetRelatedItems(r.Context(), pathParam(r, "identifier"), hint)
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	WriteDataMeta(w, r, result, map[string]interface{}{"total_related": len(result.Related)})
}

// Trending serves GET /trending?category=&limit=.
func (h *Handler) Trending(w http.ResponseWriter, r *http.Request) {
	category, err := categoryHint(r.URL.Query().Get("category"))
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	limit, err := optionalInt(r, "limit")
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	items, err := h.engine.Trending(r.Context(), category, limit)
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	WriteDataMeta(w, r, items, map[string]interface{}{
		"count": len(items),
		"mode":  h.cfg.Marketplace.TrendingMode,
	})
}

// Recent serves GET /recent?category=&limit=.
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	category, err := categoryHint(r.URL.Query().Get("category"))
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	limit, err := optionalInt(r, "limit")
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	items, total, err := h.engine.Recent(r.Context(), category, limit)
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	WriteDataMeta(w, r, items, map[string]interface{}{
		"total": total,
		"count": len(items),
	})
}

// GlobalStats serves GET /stats with the remote document verbatim.
func (h *Handler) GlobalStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.GlobalStats(r.Context())
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	WriteData(w, r, stats)
}

// CategoryStats serves GET /stats/{category}.
func (h *Handler) CategoryStats(w http.ResponseWriter, r *http.Request) {
	category, ok := models.ParseCategory(chi.URLParam(r, "category"))
	if !ok {
		WriteEngineError(w, r, catalog.ErrCategoryNotFound)
		return
	}

	stats, err := h.engine.CategoryStats(r.Context(), category)
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	WriteData(w, r, stats)
}

// IncrementView serves POST /item/{category}/{identifier}/view and the
// ID-addressed POST /item/{identifier}/view.
func (h *Handler) IncrementView(w http.ResponseWriter, r *http.Request) {
	hint, err := categoryHint(chi.URLParam(r, "category"))
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	views, err := h.engine.IncrementView(r.Context(), pathParam(r, "identifier"), hint)
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	WriteData(w, r, map[string]int64{"views": views})
}

// IncrementDownload serves POST /item/{category}/{identifier}/download
// and the ID-addressed POST /item/{identifier}/download.
func (h *Handler) IncrementDownload(w http.ResponseWriter, r *http.Request) {
	hint, err := categoryHint(chi.URLParam(r, "category"))
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	downloads, err := h.engine.IncrementDownload(r.Context(), pathParam(r, "identifier"), hint)
	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	WriteData(w, r, map[string]int64{"downloads": downloads})
}

// AdminPurgeCache serves POST /admin/cache/purge. The caller must
// present the configured admin token as a bearer credential; the
// comparison is constant-time.
func (h *Handler) AdminPurgeCache(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	configured := h.cfg.Security.AdminToken
	if configured == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(configured)) != 1 {
		WriteError(w, r, http.StatusUnauthorized, ErrKindUnauthorized, "invalid admin token")
		return
	}

	h.loader.Purge()
	logging.Ctx(r.Context()).Info().Msg("Document cache purged")

	w.WriteHeader(http.StatusNoContent)
}

// Health serves GET /health with process uptime and cache efficiency.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.cache.GetStats()

	WriteData(w, r, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"cache": map[string]interface{}{
			"entries":  stats.TotalKeys,
			"hits":     stats.Hits,
			"misses":   stats.Misses,
			"hit_rate": h.cache.HitRate(),
		},
	})
}

// optionalInt parses an optional non-negative integer query parameter,
// zero when absent.
func optionalInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, catalog.ErrBadRequest
	}
	return n, nil
}
