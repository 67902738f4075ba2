// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package signals

import (
	"context"
	"time"

	"github.com/mliang5/novelrec/internal/catalog"
	"github.com/mliang5/novelrec/internal/recommend"
)

// Popularity component weights. Views dominate, favorites signal committed
// readers, rating keeps low-quality viral novels in check.
const (
	popViewWeight     = 0.5
	popFavoriteWeight = 0.3
	popRatingWeight   = 0.2
)

// Popularity ranks candidates by a composite of view count, favorite count
// and average rating. Counts are normalized against the pool maximum so the
// composite stays in [0,1]; rating is normalized against its fixed 0-5 scale.
// This signal needs no per-user data, which makes it the cold-start path and
// the gap filler when personalized signals come up short.
type Popularity struct{}

// NewPopularity creates the popularity signal.
func NewPopularity() *Popularity {
	return &Popularity{}
}

// Name implements recommend.Signal.
func (s *Popularity) Name() string { return "popularity" }

// Algorithm implements recommend.Signal.
func (s *Popularity) Algorithm() recommend.Algorithm { return recommend.AlgorithmPopularity }

// Score implements recommend.Signal.
func (s *Popularity) Score(ctx context.Context, req *recommend.SignalRequest) ([]recommend.ScoredItem, error) {
	return s.rank(ctx, req.Candidates, time.Time{})
}

// TopSince ranks only novels created after the cutoff, which backs the
// trending and new-arrivals views. A zero cutoff ranks the whole pool.
func (s *Popularity) TopSince(ctx context.Context, candidates []catalog.Novel, cutoff time.Time) ([]recommend.ScoredItem, error) {
	return s.rank(ctx, candidates, cutoff)
}

func (s *Popularity) rank(ctx context.Context, candidates []catalog.Novel, cutoff time.Time) ([]recommend.ScoredItem, error) {
	var maxViews, maxFavorites int64
	for i := range candidates {
		n := &candidates[i]
		if !cutoff.IsZero() && n.CreatedAt.Before(cutoff) {
			continue
		}
		if n.ViewCount > maxViews {
			maxViews = n.ViewCount
		}
		if n.FavoriteCount > maxFavorites {
			maxFavorites = n.FavoriteCount
		}
	}

	items := make([]recommend.ScoredItem, 0, len(candidates))
	for i := range candidates {
		if ctxCancelled(ctx) {
			return nil, ctx.Err()
		}
		n := &candidates[i]
		if !cutoff.IsZero() && n.CreatedAt.Before(cutoff) {
			continue
		}

		score := popViewWeight*normCount(n.ViewCount, maxViews) +
			popFavoriteWeight*normCount(n.FavoriteCount, maxFavorites) +
			popRatingWeight*(n.Rating/5)

		reasons := make([]string, 0, 2)
		if maxViews > 0 && n.ViewCount == maxViews {
			reasons = append(reasons, "most viewed right now")
		} else {
			reasons = append(reasons, "popular with readers")
		}
		if n.Rating >= 4 {
			reasons = append(reasons, "highly rated by readers")
		}

		items = append(items, recommend.ScoredItem{
			Item:      *n,
			Score:     score,
			Algorithm: recommend.AlgorithmPopularity,
			Reasons:   reasons,
			Signals: map[string]float64{
				"views":     normCount(n.ViewCount, maxViews),
				"favorites": normCount(n.FavoriteCount, maxFavorites),
				"rating":    n.Rating / 5,
			},
		})
	}

	sortRanked(items)
	return items, nil
}

func normCount(v, max int64) float64 {
	if max <= 0 {
		return 0
	}
	return float64(v) / float64(max)
}
