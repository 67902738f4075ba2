// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mliang5/novelrec/internal/catalog"
)

// Interaction weights for behavioral profile derivation. A favorite is the
// strongest implicit signal; an explicit rating scales with the rating; a
// completed read sits in between; everything else is a weak touch.
const (
	weightFavorite  = 1.0
	weightCompleted = 0.5
	weightOther     = 0.1

	// completedProgress is the completion fraction at which a reading
	// history entry counts as a completed read.
	completedProgress = 0.9
)

// UserData bundles everything the engine needs about one reader: the merged
// preference profile plus the raw interaction sets used for exclusion
// filtering.
type UserData struct {
	Profile   *Profile
	Favorites map[string]struct{}
	Read      map[string]struct{}
}

// ProfileBuilder derives a reader's preference profile on demand: behavioral
// weights from favorites and reading history, merged with the stored profile
// (explicit preferences and feedback adjustments). Profiles are built lazily
// per request; only the stored half persists.
type ProfileBuilder struct {
	catalog      catalog.Catalog
	interactions catalog.InteractionStore
	prefs        PreferenceStore
}

// NewProfileBuilder creates a profile builder.
func NewProfileBuilder(cat catalog.Catalog, inter catalog.InteractionStore, prefs PreferenceStore) *ProfileBuilder {
	return &ProfileBuilder{catalog: cat, interactions: inter, prefs: prefs}
}

// Build derives the merged profile and interaction sets for a user. A user
// with no stored profile and no interactions yields an empty profile, which
// routes recommendations down the cold-start path.
func (b *ProfileBuilder) Build(ctx context.Context, userID string) (*UserData, error) {
	stored, err := b.prefs.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrProfileNotFound) {
			return nil, fmt.Errorf("load stored profile: %w", err)
		}
		stored = &Profile{UserID: userID}
	}

	favorites, err := b.interactions.Favorites(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}
	history, err := b.interactions.History(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	data := &UserData{
		Profile:   cloneProfile(stored),
		Favorites: make(map[string]struct{}, len(favorites)),
		Read:      make(map[string]struct{}, len(history)),
	}
	p := data.Profile
	if p.CategoryWeights == nil {
		p.CategoryWeights = make(map[string]float64)
	}
	if p.TagWeights == nil {
		p.TagWeights = make(map[string]float64)
	}
	if p.AuthorWeights == nil {
		p.AuthorWeights = make(map[string]float64)
	}

	for _, itemID := range favorites {
		data.Favorites[itemID] = struct{}{}
		b.accumulate(ctx, p, itemID, weightFavorite)
	}
	for i := range history {
		it := &history[i]
		data.Read[it.ItemID] = struct{}{}
		b.accumulate(ctx, p, it.ItemID, interactionWeight(it))
	}

	p.UserID = userID
	return data, nil
}

// accumulate adds an interaction's weight to the profile's category, tag and
// author maps. Novels missing from the catalog are skipped; a stale history
// entry must not fail the whole build.
func (b *ProfileBuilder) accumulate(ctx context.Context, p *Profile, itemID string, weight float64) {
	n, err := b.catalog.Get(ctx, itemID)
	if err != nil {
		return
	}
	p.CategoryWeights[n.Category] += weight
	for _, t := range n.Tags {
		p.TagWeights[t] += weight
	}
	p.AuthorWeights[n.Author] += weight
}

// interactionWeight maps one reading-history entry to its profile weight.
// An explicit rating takes precedence over completion.
func interactionWeight(it *catalog.Interaction) float64 {
	if it.Rating != nil {
		return *it.Rating / 5
	}
	if it.Progress >= completedProgress {
		return weightCompleted
	}
	return weightOther
}

// cloneProfile deep-copies a profile so builds never mutate the stored copy.
func cloneProfile(p *Profile) *Profile {
	out := &Profile{
		UserID:            p.UserID,
		CategoryWeights:   copyWeights(p.CategoryWeights),
		TagWeights:        copyWeights(p.TagWeights),
		AuthorWeights:     copyWeights(p.AuthorWeights),
		ExcludeCategories: append([]string(nil), p.ExcludeCategories...),
		ExcludeTags:       append([]string(nil), p.ExcludeTags...),
		MinRating:         p.MinRating,
		ExcludedItems:     append([]string(nil), p.ExcludedItems...),
		UpdatedAt:         p.UpdatedAt,
	}
	if p.WordCount != nil {
		wc := *p.WordCount
		out.WordCount = &wc
	}
	return out
}

func copyWeights(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ApplyExplicit folds an explicit-preferences update into the stored profile
// and stamps the update time.
func ApplyExplicit(p *Profile, ex *ExplicitPreferences, now time.Time) {
	if p.CategoryWeights == nil {
		p.CategoryWeights = make(map[string]float64)
	}
	if p.TagWeights == nil {
		p.TagWeights = make(map[string]float64)
	}
	if p.AuthorWeights == nil {
		p.AuthorWeights = make(map[string]float64)
	}
	for _, c := range ex.PreferredCategories {
		if p.CategoryWeights[c] < 1 {
			p.CategoryWeights[c] = 1
		}
	}
	for _, t := range ex.PreferredTags {
		if p.TagWeights[t] < 1 {
			p.TagWeights[t] = 1
		}
	}
	for _, a := range ex.PreferredAuthors {
		if p.AuthorWeights[a] < 1 {
			p.AuthorWeights[a] = 1
		}
	}
	p.ExcludeCategories = ex.ExcludeCategories
	p.ExcludeTags = ex.ExcludeTags
	p.MinRating = ex.MinRating
	p.WordCount = ex.WordCount
	p.UpdatedAt = now
}
