// Tabrise Marketplace API - Catalog Resolution and Discovery Service
// Copyright 2026 Tabrise Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabrise/marketplace-api

package manifest

import (
	"strings"

	"github.com/tabrise/marketplace-api/internal/models"
)

// Resolution is the canonical address of a manifest entry.
type Resolution struct {
	// Category is the item category; empty when the identifier named a
	// collection.
	Category models.Category

	// Collection is set when the identifier resolved in the collections
	// namespace, the only category-less namespace.
	Collection bool

	// Key is the canonical item or collection key.
	Key string

	// Path is the canonical "<category>/<name>" address.
	Path string
}

// Resolve maps a caller-supplied token (human-readable name or opaque
// stable ID) plus optional category hint to a canonical entry.
//
// Stable IDs are checked first so an ID can never be shadowed by a
// same-named but different item. A supplied category hint is
// authoritative: if the ID resolves into a different category, the
// resolution fails rather than silently overriding the caller's claim.
// Names resolve inside the hinted category, or, hint-less, inside the
// collections namespace only.
func Resolve(m *models.Manifest, identifier string, hint models.Category) (Resolution, bool) {
	if canonical, ok := m.IDIndex[identifier]; ok {
		pathCategory, name, found := strings.Cut(canonical, "/")
		if !found {
			return Resolution{}, false
		}

		category, ok := models.ParseCategory(pathCategory)
		if !ok {
			return Resolution{}, false
		}
		if hint != "" && hint != category {
			return Resolution{}, false
		}

		return Resolution{
			Category: category,
			Key:      name,
			Path:     canonical,
		}, true
	}

	if hint != "" {
		if _, ok := m.Item(hint, identifier); ok {
			return Resolution{
				Category: hint,
				Key:      identifier,
				Path:     string(hint) + "/" + identifier,
			}, true
		}
		return Resolution{}, false
	}

	if _, ok := m.Collections[identifier]; ok {
		return Resolution{
			Collection: true,
			Key:        identifier,
			Path:       "collections/" + identifier,
		}, true
	}

	return Resolution{}, false
}
