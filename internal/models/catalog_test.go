// Tabrise Marketplace API - Catalog Resolution and Discovery Service
// Copyright 2026 Tabrise Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabrise/marketplace-api

package models

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestCollectionWithoutItems_OmitsKey(t *testing.T) {
	full := Collection{
		Name:        "nature",
		DisplayName: "Nature",
		Items:       []string{"photo_packs/forests"},
	}

	stripped, err := json.Marshal(full.WithoutItems())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if strings.Contains(string(stripped), `"items"`) {
		t.Errorf("Stripped collection must not carry an items key, got %s", stripped)
	}

	// The original keeps its item list.
	kept, err := json.Marshal(full)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(kept), `"items":["photo_packs/forests"]`) {
		t.Errorf("Full collection should keep its items, got %s", kept)
	}
}
