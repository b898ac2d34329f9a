// Tabrise Marketplace API - Catalog Resolution and Discovery Service
// Copyright 2026 Tabrise Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabrise/marketplace-api

package models

// APIVersion selects the response shape of version-dependent endpoints.
// Version 1 is the untouched upstream shape; version 2 swaps the roles of
// the name/display_name pair on item bodies and keeps display_name on
// collections.
type APIVersion int

const (
	V1 APIVersion = 1
	V2 APIVersion = 2
)

// ItemDocument is a full item body fetched from the remote object store.
// Bodies are a superset of ItemSummary, so they are kept as a generic
// document and reshaped by the versioned view functions below.
type ItemDocument map[string]interface{}

// Clone returns a shallow copy. Sufficient for the view functions, which
// only add or replace top-level keys.
func (d ItemDocument) Clone() ItemDocument {
	out := make(ItemDocument, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// UpdatedAt returns the document's updated_at field when present.
func (d ItemDocument) UpdatedAt() string {
	if v, ok := d["updated_at"].(string); ok {
		return v
	}
	return ""
}

// ItemView applies the versioned reshaping for item bodies as the last
// step before serialization. Under V2 the raw document's name becomes
// display_name and the resolved key becomes the new name; V1 passes the
// upstream shape through untouched.
func ItemView(doc ItemDocument, key string, v APIVersion) ItemDocument {
	if v != V2 {
		return doc
	}
	out := doc.Clone()
	if name, ok := doc["name"]; ok {
		out["display_name"] = name
	}
	out["name"] = key
	return out
}

// ResolvedCollection is a collection with its references resolved to full
// summaries, each tagged with its source category.
type ResolvedCollection struct {
	Name        string        `json:"name,omitempty"`
	DisplayName string        `json:"display_name,omitempty"`
	Description string        `json:"description,omitempty"`
	ImageURL    string        `json:"img,omitempty"`
	Items       []ItemSummary `json:"items"`
	News        bool          `json:"news,omitempty"`
	NewsLink    string        `json:"news_link,omitempty"`
}

// CollectionView applies the versioned reshaping for collections. V1
// renames display_name back to name.
func CollectionView(c ResolvedCollection, v APIVersion) ResolvedCollection {
	if v != V1 {
		return c
	}
	if c.DisplayName != "" {
		c.Name = c.DisplayName
		c.DisplayName = ""
	}
	return c
}
