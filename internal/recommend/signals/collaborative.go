// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package signals

import (
	"context"
	"fmt"
	"sort"

	"github.com/mliang5/novelrec/internal/catalog"
	"github.com/mliang5/novelrec/internal/recommend"
)

// minSharedFavorites is how many favorites two readers must have in common
// before one counts as the other's neighbor.
const minSharedFavorites = 2

// defaultNeighborCap bounds the neighbor set so one viral novel cannot turn
// every reader into a neighbor.
const defaultNeighborCap = 50

// Collaborative scores candidates by neighbor co-favoriting: readers who
// share at least two favorites with the requesting user are neighbors, and a
// candidate's raw score is the number of distinct neighbors who favorited it,
// normalized by the neighbor count and capped at 1.
type Collaborative struct {
	interactions catalog.InteractionStore
	neighborCap  int
}

// NewCollaborative creates the collaborative signal. neighborCap <= 0 selects
// the default cap.
func NewCollaborative(interactions catalog.InteractionStore, neighborCap int) *Collaborative {
	if neighborCap <= 0 {
		neighborCap = defaultNeighborCap
	}
	return &Collaborative{interactions: interactions, neighborCap: neighborCap}
}

// Name implements recommend.Signal.
func (s *Collaborative) Name() string { return "collaborative" }

// Algorithm implements recommend.Signal.
func (s *Collaborative) Algorithm() recommend.Algorithm { return recommend.AlgorithmCollaborative }

// Score implements recommend.Signal. Users with no favorites have no
// neighbors and get an empty result.
func (s *Collaborative) Score(ctx context.Context, req *recommend.SignalRequest) ([]recommend.ScoredItem, error) {
	own, err := s.interactions.Favorites(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}
	if len(own) == 0 {
		return nil, nil
	}
	ownSet := make(map[string]struct{}, len(own))
	for _, id := range own {
		ownSet[id] = struct{}{}
	}

	// Count shared favorites per co-favoriting reader.
	shared := make(map[string]int)
	for _, itemID := range own {
		if ctxCancelled(ctx) {
			return nil, ctx.Err()
		}
		users, err := s.interactions.FavoritedBy(ctx, itemID)
		if err != nil {
			return nil, fmt.Errorf("load co-favoriters of %s: %w", itemID, err)
		}
		for _, u := range users {
			if u != req.UserID {
				shared[u]++
			}
		}
	}

	neighbors := make([]string, 0, len(shared))
	for u, n := range shared {
		if n >= minSharedFavorites {
			neighbors = append(neighbors, u)
		}
	}
	if len(neighbors) == 0 {
		return nil, nil
	}
	if len(neighbors) > s.neighborCap {
		// Keep the closest neighbors: most shared favorites first,
		// user ID as tie-break for determinism.
		sortNeighbors(neighbors, shared)
		neighbors = neighbors[:s.neighborCap]
	}

	// Count distinct neighbors per candidate novel.
	counts := make(map[string]int)
	for _, u := range neighbors {
		if ctxCancelled(ctx) {
			return nil, ctx.Err()
		}
		favs, err := s.interactions.Favorites(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("load neighbor favorites: %w", err)
		}
		for _, id := range favs {
			if _, already := ownSet[id]; !already {
				counts[id]++
			}
		}
	}

	items := make([]recommend.ScoredItem, 0, len(counts))
	for i := range req.Candidates {
		n := &req.Candidates[i]
		cnt, ok := counts[n.ID]
		if !ok {
			continue
		}
		score := float64(cnt) / float64(len(neighbors))
		if score > 1 {
			score = 1
		}
		if score < req.MinSimilarity {
			continue
		}
		items = append(items, recommend.ScoredItem{
			Item:      *n,
			Score:     score,
			Algorithm: recommend.AlgorithmCollaborative,
			Reasons: []string{
				fmt.Sprintf("favorited by %d readers with taste similar to yours", cnt),
			},
			Signals: map[string]float64{"neighbors": float64(cnt)},
		})
	}

	sortRanked(items)
	return items, nil
}

func sortNeighbors(neighbors []string, shared map[string]int) {
	sort.Slice(neighbors, func(i, j int) bool {
		if shared[neighbors[i]] != shared[neighbors[j]] {
			return shared[neighbors[i]] > shared[neighbors[j]]
		}
		return neighbors[i] < neighbors[j]
	})
}
