// Tabrise Marketplace API - Catalog Resolution and Discovery Service
// Copyright 2026 Tabrise Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabrise/marketplace-api

package catalog

import "errors"

// Sentinel errors for the query engine. Handlers map these onto the HTTP
// error taxonomy: *NotFound errors become 404, the rest of the local
// errors become 400, and upstream failures propagate as 502.
var (
	ErrItemNotFound       = errors.New("item not found")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrCuratorNotFound    = errors.New("curator not found")

	ErrBadRequest    = errors.New("bad request")
	ErrMissingQuery  = errors.New("missing search query parameter (q or query)")
	ErrLimitRequired = errors.New("page limit is required for pagination")
	ErrBatchEmpty    = errors.New("missing ids parameter")
	ErrBatchTooLarge = errors.New("maximum items per batch request exceeded")
)
