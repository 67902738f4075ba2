// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

// Package reranking adjusts an already-scored recommendation list without
// recomputing scores. The diversity reranker spreads categories across the
// list so a reader with one dominant preference still sees variety.
package reranking

import (
	"math"

	"github.com/mliang5/novelrec/internal/recommend"
)

// maxRerankSize bounds the greedy pass; anything past this stays in score
// order.
const maxRerankSize = 500

// Diversity reorders a ranked list so that a category does not repeat within
// a sliding window of the last ceil(1/factor) selections. Factor 1 forbids
// adjacent repeats; factor 0 disables reranking entirely. Within the window
// constraint the original score order is preserved, and when every remaining
// candidate is blocked the best-scored one is taken anyway rather than
// starving the list.
type Diversity struct{}

// NewDiversity creates the diversity reranker.
func NewDiversity() *Diversity {
	return &Diversity{}
}

// Name identifies the reranker in logs and metadata.
func (d *Diversity) Name() string { return "category_diversity" }

// Rerank applies the category window to items, which must already be sorted
// by score descending. The input slice is not modified.
func (d *Diversity) Rerank(items []recommend.ScoredItem, factor float64) []recommend.ScoredItem {
	if factor <= 0 || len(items) < 2 {
		return items
	}
	if factor > 1 {
		factor = 1
	}
	window := int(math.Ceil(1 / factor))

	n := len(items)
	if n > maxRerankSize {
		n = maxRerankSize
	}

	remaining := make([]recommend.ScoredItem, n)
	copy(remaining, items[:n])
	out := make([]recommend.ScoredItem, 0, len(items))

	recent := make([]string, 0, window)
	for len(remaining) > 0 {
		pick := -1
		for i := range remaining {
			if !inWindow(recent, remaining[i].Item.Category) {
				pick = i
				break
			}
		}
		if pick < 0 {
			// Every remaining category is inside the window; fall
			// back to the best-scored candidate.
			pick = 0
		}

		chosen := remaining[pick]
		out = append(out, chosen)
		remaining = append(remaining[:pick], remaining[pick+1:]...)

		recent = append(recent, chosen.Item.Category)
		if len(recent) > window {
			recent = recent[1:]
		}
	}

	// Past the rerank cap the tail keeps its score order.
	out = append(out, items[n:]...)
	return out
}

func inWindow(recent []string, category string) bool {
	for _, c := range recent {
		if c == category {
			return true
		}
	}
	return false
}
