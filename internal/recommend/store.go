// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package recommend

import (
	"context"
	"errors"
)

// ErrProfileNotFound is returned when no stored profile exists for a user.
// Callers treat it as an empty profile, not a failure.
var ErrProfileNotFound = errors.New("recommend: profile not found")

// Patch is an incremental change to a stored profile. Weight deltas add to
// the stored weights (negative deltas clamp at zero); exclusions append;
// Explicit, when set, replaces the explicit-preference block wholesale.
type Patch struct {
	CategoryDeltas map[string]float64 `json:"category_deltas,omitempty"`
	TagDeltas      map[string]float64 `json:"tag_deltas,omitempty"`
	AuthorDeltas   map[string]float64 `json:"author_deltas,omitempty"`

	ExcludeItems []string `json:"exclude_items,omitempty"`

	Explicit *ExplicitPreferences `json:"explicit,omitempty"`
}

// ExplicitPreferences is the user-editable preference block from the
// preferences API. Preferred entries seed weight 1.0 in the stored profile.
type ExplicitPreferences struct {
	PreferredCategories []string        `json:"preferred_categories,omitempty"`
	PreferredTags       []string        `json:"preferred_tags,omitempty"`
	PreferredAuthors    []string        `json:"preferred_authors,omitempty"`
	ExcludeCategories   []string        `json:"exclude_categories,omitempty"`
	ExcludeTags         []string        `json:"exclude_tags,omitempty"`
	MinRating           float64         `json:"min_rating,omitempty"`
	WordCount           *WordCountRange `json:"word_count,omitempty"`
}

// IsZero reports whether the patch would change nothing.
func (p *Patch) IsZero() bool {
	return len(p.CategoryDeltas) == 0 && len(p.TagDeltas) == 0 &&
		len(p.AuthorDeltas) == 0 && len(p.ExcludeItems) == 0 && p.Explicit == nil
}

// PreferenceStore persists the stored half of a preference profile: explicit
// preferences plus accumulated feedback adjustments. Behavioral weights are
// derived fresh per request and never stored.
type PreferenceStore interface {
	// Get returns the stored profile, or ErrProfileNotFound.
	Get(ctx context.Context, userID string) (*Profile, error)

	// Apply folds a patch into the stored profile, creating it if absent.
	// The read-modify-write is atomic per user; concurrent patches are
	// last-writer-wins.
	Apply(ctx context.Context, userID string, patch *Patch) error
}

// FeedbackLog is an append-only record of feedback events.
type FeedbackLog interface {
	// Append stores one event.
	Append(ctx context.Context, ev *FeedbackEvent) error

	// ListByUser returns up to limit of the user's most recent events,
	// newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]FeedbackEvent, error)
}
