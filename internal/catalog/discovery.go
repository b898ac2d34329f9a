// Tabrise Marketplace API - Catalog Resolution and Discovery Service
// Copyright 2026 Tabrise Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabrise/marketplace-api

package catalog

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/tabrise/marketplace-api/internal/manifest"
	"github.com/tabrise/marketplace-api/internal/models"
)

// Search term weights. display_name matches rank highest, the catch-all
// search_text haystack lowest.
const (
	weightDisplayName  = 10
	weightKeywords     = 8
	weightCategoryTags = 6
	weightAuthor       = 5
	weightSearchText   = 2
)

// Search scores every search-index entry against the whitespace-tokenized
// query and returns the matches sorted by descending score, page
// paginated. Ties keep index order. An empty query is a client error.
func (e *Engine) Search(ctx context.Context, rawQuery string, q Query) ([]models.SearchIndexEntry, PageMeta, error) {
	terms := strings.Fields(strings.ToLower(rawQuery))
	if len(terms) == 0 {
		return nil, PageMeta{}, ErrMissingQuery
	}

	idx, err := e.source.GetSearchIndex(ctx)
	if err != nil {
		return nil, PageMeta{}, err
	}

	results := make([]models.SearchIndexEntry, 0, len(idx.Items))
	for _, entry := range idx.Items {
		score := scoreEntry(entry, terms)
		if score == 0 {
			continue
		}
		entry.Score = score
		results = append(results, entry)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	sliced, meta := paginatePage(results, q)
	meta.Query = rawQuery
	return sliced, meta, nil
}

// scoreEntry accumulates per-term weights for one index entry. search_text
// is precomputed lowercase; the other haystacks are folded here.
func scoreEntry(entry models.SearchIndexEntry, terms []string) int {
	displayName := strings.ToLower(entry.DisplayName)
	author := strings.ToLower(entry.Author)

	score := 0
	for _, term := range terms {
		if strings.Contains(displayName, term) {
			score += weightDisplayName
		}
		if anyContains(entry.Keywords, term, true) {
			score += weightKeywords
		}
		if anyContains(entry.CategoryTags, term, false) {
			score += weightCategoryTags
		}
		if strings.Contains(author, term) {
			score += weightAuthor
		}
		if strings.Contains(entry.SearchText, term) {
			score += weightSearchText
		}
	}
	return score
}

func anyContains(haystacks []string, term string, fold bool) bool {
	for _, h := range haystacks {
		if fold {
			h = strings.ToLower(h)
		}
		if strings.Contains(h, term) {
			return true
		}
	}
	return false
}

// Random returns a uniform sample without replacement from one category,
// or all categories. The sample size is clamped to the configured cap and
// to the pool size; an undersized pool is not an error.
func (e *Engine) Random(ctx context.Context, category string, count int) ([]models.ItemSummary, error) {
	m, err := e.source.GetManifest(ctx, false)
	if err != nil {
		return nil, err
	}

	var pool []models.ItemSummary
	if category == "all" {
		pool = m.AllItems()
	} else {
		cat, ok := models.ParseCategory(category)
		if !ok {
			return nil, ErrCategoryNotFound
		}
		pool = m.CategoryValues(cat)
	}

	if count < 1 {
		count = 1
	}
	if count > e.cfg.RandomMaxCount {
		count = e.cfg.RandomMaxCount
	}
	if count > len(pool) {
		count = len(pool)
	}

	// Fisher-Yates shuffle of the candidate pool, truncated to count.
	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	return pool[:count], nil
}

// RelatedResult is the target item plus its scored related set.
type RelatedResult struct {
	Item    models.ItemSummary   `json:"item"`
	Related []models.ItemSummary `json:"related"`
}

// Related weights. Collection co-membership dominates, then same author,
// then tag overlap.
const (
	weightSharedCollection = 10
	weightSameAuthor       = 5
	weightSharedTag        = 3
)

// GetRelatedItems resolves the target and scores candidates on three
// independent signals: shared collection membership, same author and tag
// overlap. Each signal contributes its weight at most once per candidate;
// a candidate matched by several signals sums their weights. The top
// candidates by accumulated score are returned, ties broken by the
// deterministic insertion order of the scoring pass.
func (e *Engine) GetRelatedItems(ctx context.Context, token string, hint models.Category) (RelatedResult, error) {
	m, err := e.source.GetManifest(ctx, false)
	if err != nil {
		return RelatedResult{}, err
	}

	res, ok := manifest.Resolve(m, token, hint)
	if !ok || res.Collection {
		return RelatedResult{}, ErrItemNotFound
	}
	item, ok := m.Item(res.Category, res.Key)
	if !ok {
		return RelatedResult{}, ErrItemNotFound
	}

	scores := newScoreBoard()

	// Items sharing a collection. Deduplicate per signal: an item in two
	// shared collections still counts once at full weight.
	inCollection := map[string]bool{}
	for _, name := range item.InCollections {
		c, ok := m.Collections[name]
		if !ok {
			continue
		}
		for _, candidate := range resolveReferences(m, c.Items) {
			if candidate.ID != item.ID && !inCollection[candidate.ID] {
				inCollection[candidate.ID] = true
				scores.add(candidate.ID, weightSharedCollection)
			}
		}
	}

	all := allItemsInKeyOrder(m)

	// Items by the same author, excluding self.
	for _, candidate := range all {
		if candidate.ID != item.ID && candidate.Author == item.Author {
			scores.add(candidate.ID, weightSameAuthor)
		}
	}

	// Items sharing at least one tag.
	if len(item.Tags) > 0 {
		for _, candidate := range all {
			if candidate.ID != item.ID && hasAnyTag(candidate.Tags, item.Tags) {
				scores.add(candidate.ID, weightSharedTag)
			}
		}
	}

	related := make([]models.ItemSummary, 0, e.cfg.RelatedLimit)
	for _, id := range scores.top(e.cfg.RelatedLimit) {
		canonical, ok := m.IDIndex[id]
		if !ok {
			continue
		}
		typ, name, _ := strings.Cut(canonical, "/")
		cat, ok := models.ParseCategory(typ)
		if !ok {
			continue
		}
		if candidate, ok := m.Item(cat, name); ok {
			candidate.RelevanceScore = scores.score(id)
			related = append(related, candidate)
		}
	}

	return RelatedResult{Item: item, Related: related}, nil
}

// scoreBoard accumulates weighted scores per candidate ID while
// preserving first-insertion order for deterministic tie-breaking.
type scoreBoard struct {
	scores map[string]int
	order  []string
}

func newScoreBoard() *scoreBoard {
	return &scoreBoard{scores: map[string]int{}}
}

func (b *scoreBoard) add(id string, weight int) {
	if _, seen := b.scores[id]; !seen {
		b.order = append(b.order, id)
	}
	b.scores[id] += weight
}

func (b *scoreBoard) score(id string) int {
	return b.scores[id]
}

// top returns up to n IDs by descending score, ties in insertion order.
func (b *scoreBoard) top(n int) []string {
	ids := make([]string, len(b.order))
	copy(ids, b.order)

	sort.SliceStable(ids, func(i, j int) bool {
		return b.scores[ids[i]] > b.scores[ids[j]]
	})

	if len(ids) > n {
		ids = ids[:n]
	}
	return ids
}
