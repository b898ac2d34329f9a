// Tabrise Marketplace API - Catalog Resolution and Discovery Service
// Copyright 2026 Tabrise Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabrise/marketplace-api

package catalog

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/tabrise/marketplace-api/internal/models"
)

// Query holds the recognized list-shaping parameters. Filter fields are
// pointers (or empty strings) so "absent" and "zero" stay distinct; a
// filter is applied only when its query key was present.
type Query struct {
	Tags       []string
	Author     string
	Language   string
	DateFrom   *time.Time
	DateTo     *time.Time
	MinItems   *int
	MaxItems   *int
	ColorTheme string

	Sort  string
	Order string

	// Offset/limit slicing, used by plain list endpoints. Offset without
	// limit is a client error.
	Offset *int
	Limit  *int

	// Page-based pagination with metadata, used by item lists and search.
	Page    int
	PerPage int
}

// ParseQuery extracts the pipeline parameters from a URL query. Malformed
// numbers and dates are rejected at this boundary rather than silently
// matching nothing.
func ParseQuery(values url.Values) (Query, error) {
	q := Query{
		Sort:       values.Get("sort"),
		Order:      values.Get("order"),
		Author:     values.Get("author"),
		Language:   values.Get("language"),
		ColorTheme: values.Get("color_theme"),
		Page:       1,
		PerPage:    20,
	}

	if raw := values.Get("tags"); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				q.Tags = append(q.Tags, strings.ToLower(tag))
			}
		}
	}

	for _, field := range []struct {
		key  string
		dest **time.Time
	}{
		{"date_from", &q.DateFrom},
		{"date_to", &q.DateTo},
	} {
		raw := values.Get(field.key)
		if raw == "" {
			continue
		}
		t, err := parseDate(raw)
		if err != nil {
			return Query{}, fmt.Errorf("%w: invalid %s %q", ErrBadRequest, field.key, raw)
		}
		*field.dest = &t
	}

	for _, field := range []struct {
		key  string
		dest **int
	}{
		{"min_items", &q.MinItems},
		{"max_items", &q.MaxItems},
		{"offset", &q.Offset},
		{"limit", &q.Limit},
	} {
		raw := values.Get(field.key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Query{}, fmt.Errorf("%w: invalid %s %q", ErrBadRequest, field.key, raw)
		}
		v := n
		*field.dest = &v
	}

	if raw := values.Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			q.Page = n
		}
	}
	if raw := values.Get("per_page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			q.PerPage = n
		}
	}

	return q, nil
}

// parseDate accepts calendar dates and full timestamps.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// applyFilters narrows a sequence using independent AND-combined
// predicates. Stored tags are already lowercase, so only the requested
// side is folded.
func applyFilters(items []models.ItemSummary, q Query) []models.ItemSummary {
	filtered := make([]models.ItemSummary, 0, len(items))

	for _, item := range items {
		if len(q.Tags) > 0 && !hasAnyTag(item.Tags, q.Tags) {
			continue
		}
		if q.Author != "" && !strings.EqualFold(item.Author, q.Author) {
			continue
		}
		if q.Language != "" && (item.Language == "" || !strings.EqualFold(item.Language, q.Language)) {
			continue
		}
		if q.DateFrom != nil && item.CreatedAt.Before(*q.DateFrom) {
			continue
		}
		if q.DateTo != nil && item.CreatedAt.After(*q.DateTo) {
			continue
		}
		if q.MinItems != nil && item.ItemCount < *q.MinItems {
			continue
		}
		if q.MaxItems != nil && item.ItemCount > *q.MaxItems {
			continue
		}
		switch q.ColorTheme {
		case "dark":
			if !item.IsDark {
				continue
			}
		case "light":
			if !item.IsLight {
				continue
			}
		}

		filtered = append(filtered, item)
	}

	return filtered
}

func hasAnyTag(itemTags, wanted []string) bool {
	for _, tag := range itemTags {
		for _, w := range wanted {
			if tag == w {
				return true
			}
		}
	}
	return false
}

// sorter performs the stable, locale-aware sorting stage. A collator is
// not safe for concurrent use, so each call builds a fresh one from the
// configured locale tag.
type sorter struct {
	locale language.Tag
}

func newSorter(locale string) sorter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return sorter{locale: tag}
}

// apply stably sorts a copy of items by q.Sort (default "newest") in
// direction q.Order (default "desc"; "asc" negates the comparison). An
// unrecognized sort field makes the stage an identity, not an error.
func (s sorter) apply(items []models.ItemSummary, q Query) []models.ItemSummary {
	field := q.Sort
	if field == "" {
		field = "newest"
	}

	var cmp func(a, b models.ItemSummary) int
	switch field {
	case "newest":
		cmp = func(a, b models.ItemSummary) int { return b.CreatedAt.Compare(a.CreatedAt) }
	case "oldest":
		cmp = func(a, b models.ItemSummary) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case "updated":
		cmp = func(a, b models.ItemSummary) int { return b.UpdatedAt.Compare(a.UpdatedAt) }
	case "name":
		coll := collate.New(s.locale)
		cmp = func(a, b models.ItemSummary) int {
			return coll.CompareString(b.DisplayName, a.DisplayName)
		}
	case "item_count":
		cmp = func(a, b models.ItemSummary) int { return b.ItemCount - a.ItemCount }
	case "popular":
		// Collection membership as a proxy popularity signal.
		cmp = func(a, b models.ItemSummary) int { return len(b.InCollections) - len(a.InCollections) }
	default:
		out := make([]models.ItemSummary, len(items))
		copy(out, items)
		return out
	}

	invert := q.Order == "asc"
	out := make([]models.ItemSummary, len(items))
	copy(out, items)

	// Stability matters: ties must keep their input order.
	sort.SliceStable(out, func(i, j int) bool {
		c := cmp(out[i], out[j])
		if invert {
			c = -c
		}
		return c < 0
	})

	return out
}

// PageMeta is the pagination metadata returned alongside page-sliced
// lists.
type PageMeta struct {
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	PerPage    int    `json:"per_page"`
	TotalPages int    `json:"total_pages"`
	HasMore    bool   `json:"has_more"`
	Query      string `json:"query,omitempty"`
}

// paginateOffset implements the offset/limit slicing mode. When offset is
// present, limit is mandatory; its absence is a client error. Slices are
// clamped to the input bounds.
func paginateOffset[T any](data []T, q Query) ([]T, error) {
	if q.Offset == nil {
		return data, nil
	}
	if q.Limit == nil {
		return nil, ErrLimitRequired
	}

	start := *q.Offset
	if start > len(data) {
		start = len(data)
	}
	end := start + *q.Limit
	if end > len(data) {
		end = len(data)
	}

	return data[start:end], nil
}

// paginatePage implements the page/per_page mode used by list endpoints,
// returning the slice plus pagination metadata.
func paginatePage[T any](data []T, q Query) ([]T, PageMeta) {
	total := len(data)
	totalPages := (total + q.PerPage - 1) / q.PerPage

	start := (q.Page - 1) * q.PerPage
	if start > total {
		start = total
	}
	end := start + q.PerPage
	if end > total {
		end = total
	}

	meta := PageMeta{
		Total:      total,
		Page:       q.Page,
		PerPage:    q.PerPage,
		TotalPages: totalPages,
		HasMore:    q.Page < totalPages,
	}

	return data[start:end], meta
}
