// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package signals

import (
	"context"
	"fmt"

	"github.com/mliang5/novelrec/internal/catalog"
	"github.com/mliang5/novelrec/internal/recommend"
)

// ContentBased scores candidates against the reader's preference profile.
//
// The score is a weighted sum of four components, each in [0,1]:
//
//	w.Category * categoryMatch + w.Tags * tagOverlap +
//	w.Author * authorMatch + w.Rating * rating/5
//
// Category and author matches are binary: 1 when the key exists in the
// profile's weight map, 0 otherwise. Tag overlap is the fraction of the
// novel's tags the reader has shown interest in. The weights are independent
// importance dials, so a component weight raised in isolation can only raise
// the scores of candidates matching that component.
type ContentBased struct{}

// NewContentBased creates the content-based signal.
func NewContentBased() *ContentBased {
	return &ContentBased{}
}

// Name implements recommend.Signal.
func (s *ContentBased) Name() string { return "content_based" }

// Algorithm implements recommend.Signal.
func (s *ContentBased) Algorithm() recommend.Algorithm { return recommend.AlgorithmContentBased }

// Score implements recommend.Signal. An empty profile yields no items; the
// engine falls back to popularity in that case.
func (s *ContentBased) Score(ctx context.Context, req *recommend.SignalRequest) ([]recommend.ScoredItem, error) {
	if req.Profile.IsEmpty() {
		return nil, nil
	}

	p := req.Profile
	w := req.Weights

	items := make([]recommend.ScoredItem, 0, len(req.Candidates))
	for i := range req.Candidates {
		if ctxCancelled(ctx) {
			return nil, ctx.Err()
		}
		n := &req.Candidates[i]

		catMatch := keyMatch(p.CategoryWeights, n.Category)
		tagMatch, matched := tagOverlap(p.TagWeights, n.Tags)
		authorMatch := keyMatch(p.AuthorWeights, n.Author)
		ratingPart := n.Rating / 5

		score := w.Category*catMatch + w.Tags*tagMatch + w.Author*authorMatch + w.Rating*ratingPart
		if score <= 0 {
			continue
		}

		items = append(items, recommend.ScoredItem{
			Item:      *n,
			Score:     score,
			Algorithm: recommend.AlgorithmContentBased,
			Reasons:   contentReasons(n, catMatch, matched, authorMatch),
			Signals: map[string]float64{
				"category": catMatch,
				"tags":     tagMatch,
				"author":   authorMatch,
				"rating":   ratingPart,
			},
		})
	}

	sortRanked(items)
	return items, nil
}

// SimilarTo ranks candidates by item-to-item similarity with the target:
// same weighting scheme as Score, but matched against the target novel's own
// category, tags and author instead of a profile.
func (s *ContentBased) SimilarTo(ctx context.Context, target *catalog.Novel, candidates []catalog.Novel, w recommend.ContentWeights) ([]recommend.ScoredItem, error) {
	targetTags := make(map[string]float64, len(target.Tags))
	for _, t := range target.Tags {
		targetTags[t] = 1
	}

	items := make([]recommend.ScoredItem, 0, len(candidates))
	for i := range candidates {
		if ctxCancelled(ctx) {
			return nil, ctx.Err()
		}
		n := &candidates[i]
		if n.ID == target.ID {
			continue
		}

		var catMatch float64
		if n.Category == target.Category {
			catMatch = 1
		}
		tagMatch, matched := tagOverlap(targetTags, n.Tags)
		var authorMatch float64
		if n.Author == target.Author {
			authorMatch = 1
		}

		score := w.Category*catMatch + w.Tags*tagMatch + w.Author*authorMatch + w.Rating*n.Rating/5
		if catMatch == 0 && matched == 0 && authorMatch == 0 {
			// Rating alone does not make a novel similar.
			continue
		}

		reasons := make([]string, 0, 3)
		if catMatch > 0 {
			reasons = append(reasons, fmt.Sprintf("same category as %q", target.Title))
		}
		if matched > 0 {
			reasons = append(reasons, fmt.Sprintf("shares %d tags with %q", matched, target.Title))
		}
		if authorMatch > 0 {
			reasons = append(reasons, fmt.Sprintf("also by %s", target.Author))
		}

		items = append(items, recommend.ScoredItem{
			Item:      *n,
			Score:     score,
			Algorithm: recommend.AlgorithmContentBased,
			Reasons:   reasons,
		})
	}

	sortRanked(items)
	return items, nil
}

// tagOverlap returns the fraction of the novel's tags present in the weight
// map, plus the matched tag count. A tagless novel scores 0.
func tagOverlap(tagWeights map[string]float64, tags []string) (float64, int) {
	if len(tags) == 0 || len(tagWeights) == 0 {
		return 0, 0
	}
	matched := 0
	for _, t := range tags {
		if tagWeights[t] > 0 {
			matched++
		}
	}
	return float64(matched) / float64(len(tags)), matched
}

func contentReasons(n *catalog.Novel, catMatch float64, matchedTags int, authorMatch float64) []string {
	reasons := make([]string, 0, 4)
	if catMatch > 0 {
		reasons = append(reasons, fmt.Sprintf("matches your interest in %s", n.Category))
	}
	if matchedTags > 0 {
		reasons = append(reasons, fmt.Sprintf("has %d tags you enjoy", matchedTags))
	}
	if authorMatch > 0 {
		reasons = append(reasons, fmt.Sprintf("by %s, an author you read", n.Author))
	}
	if n.Rating >= 4 {
		reasons = append(reasons, "highly rated by readers")
	}
	return reasons
}
