// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package recommend

import (
	"context"
	"fmt"

	"github.com/mliang5/novelrec/internal/catalog"
)

// Explainer answers "why this novel for this reader". It reuses the signal
// implementations so explanations always agree with the scores the engine
// would produce.
type Explainer struct {
	catalog    catalog.Catalog
	profiles   *ProfileBuilder
	content    Signal
	popularity Signal
	weights    ContentWeights
}

// NewExplainer creates an explainer using the engine's content weighting.
func NewExplainer(cat catalog.Catalog, profiles *ProfileBuilder, content, popularity Signal, weights ContentWeights) *Explainer {
	return &Explainer{
		catalog:    cat,
		profiles:   profiles,
		content:    content,
		popularity: popularity,
		weights:    weights,
	}
}

// Explain produces reasons and a score for recommending the novel to the
// user. Unknown readers get popularity-based reasons.
func (x *Explainer) Explain(ctx context.Context, userID, itemID string) (*Explanation, error) {
	n, err := x.catalog.Get(ctx, itemID)
	if err != nil {
		return nil, wrapCatalogErr(itemID, err)
	}

	data, err := x.profiles.Build(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("build profile: %w", err)
	}

	// Score against the full pool so popularity normalization matches what
	// the engine computes.
	pool, err := x.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	sreq := &SignalRequest{
		UserID:     userID,
		Profile:    data.Profile,
		Candidates: pool,
		Weights:    x.weights,
	}

	sig := x.content
	if data.Profile.IsEmpty() {
		sig = x.popularity
	}
	items, err := sig.Score(ctx, sreq)
	if err != nil {
		return nil, fmt.Errorf("score item: %w", err)
	}

	ex := &Explanation{ItemID: itemID, UserID: userID}
	for i := range items {
		if items[i].Item.ID == n.ID {
			ex.Score = items[i].Score
			ex.Reasons = dedupe(items[i].Reasons)
			break
		}
	}
	if len(ex.Reasons) == 0 {
		ex.Reasons = []string{"does not match your current preferences"}
	}
	return ex, nil
}
