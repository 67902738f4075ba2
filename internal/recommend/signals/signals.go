// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

// Package signals provides the individual scoring strategies the engine fans
// out to: content-based profile matching, collaborative filtering over shared
// favorites, and popularity ranking. Every signal produces scores in [0,1]
// and sorts deterministically so hybrid merging stays reproducible.
package signals

import (
	"context"
	"sort"

	"github.com/mliang5/novelrec/internal/recommend"
)

// Compile-time interface compliance checks.
var (
	_ recommend.Signal = (*ContentBased)(nil)
	_ recommend.Signal = (*Collaborative)(nil)
	_ recommend.Signal = (*Popularity)(nil)
)

// ctxCancelled is a cheap cancellation probe used inside scoring loops.
func ctxCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// sortRanked orders items by score descending, breaking ties by view count
// descending and then item ID ascending. The final ID tie-break makes the
// ordering a total order, which the ranked-list contract requires.
func sortRanked(items []recommend.ScoredItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		if items[i].Item.ViewCount != items[j].Item.ViewCount {
			return items[i].Item.ViewCount > items[j].Item.ViewCount
		}
		return items[i].Item.ID < items[j].Item.ID
	})
}

// keyMatch reports the binary membership of a key in a profile weight map:
// 1 when the reader has any positive weight for it, 0 otherwise.
func keyMatch(m map[string]float64, key string) float64 {
	if m[key] > 0 {
		return 1
	}
	return 0
}
