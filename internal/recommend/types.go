// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

// Package recommend implements the hybrid novel recommendation engine:
// preference profiles derived from reader behavior, content-based and
// collaborative scoring signals, popularity fallback, weighted merging with
// diversity re-ranking, feedback processing, and recommendation explanations.
package recommend

import (
	"errors"
	"fmt"
	"time"

	"github.com/mliang5/novelrec/internal/catalog"
)

// Sentinel errors returned by engine operations. Handlers map these to
// machine-readable API error codes.
var (
	ErrInvalidRequest  = errors.New("recommend: invalid request")
	ErrInvalidFeedback = errors.New("recommend: invalid feedback type")
	ErrItemNotFound    = errors.New("recommend: item not found")
)

// Algorithm identifies which ranking strategy produced a recommendation.
type Algorithm string

const (
	AlgorithmHybrid        Algorithm = "hybrid"
	AlgorithmContentBased  Algorithm = "content_based"
	AlgorithmCollaborative Algorithm = "collaborative"
	AlgorithmPopularity    Algorithm = "popularity"
	AlgorithmColdStart     Algorithm = "cold_start"
)

// ParseAlgorithm validates a client-supplied algorithm name. The empty string
// selects the hybrid default.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case "":
		return AlgorithmHybrid, nil
	case AlgorithmHybrid, AlgorithmContentBased, AlgorithmCollaborative, AlgorithmPopularity:
		return Algorithm(s), nil
	default:
		return "", fmt.Errorf("%w: unknown algorithm %q", ErrInvalidRequest, s)
	}
}

// FeedbackType classifies explicit reader feedback on a recommendation.
type FeedbackType string

const (
	FeedbackLike          FeedbackType = "like"
	FeedbackDislike       FeedbackType = "dislike"
	FeedbackNotInterested FeedbackType = "not_interested"
	FeedbackInappropriate FeedbackType = "inappropriate"
)

// ParseFeedbackType validates a client-supplied feedback type.
func ParseFeedbackType(s string) (FeedbackType, error) {
	switch FeedbackType(s) {
	case FeedbackLike, FeedbackDislike, FeedbackNotInterested, FeedbackInappropriate:
		return FeedbackType(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFeedback, s)
	}
}

// FeedbackEvent is an immutable record of one feedback submission. Events are
// appended to the feedback log and, for inappropriate reports, forwarded to
// moderation.
type FeedbackEvent struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	ItemID    string       `json:"item_id"`
	Type      FeedbackType `json:"type"`
	Reason    string       `json:"reason,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// WordCountRange bounds preferred novel length. Zero Max means unbounded.
type WordCountRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether wc falls inside the range.
func (r *WordCountRange) Contains(wc int) bool {
	if r == nil {
		return true
	}
	if wc < r.Min {
		return false
	}
	if r.Max > 0 && wc > r.Max {
		return false
	}
	return true
}

// Profile is a reader's preference profile. Weight maps accumulate interaction
// weights per category, tag and author; explicit fields come from preference
// updates and feedback. A zero-value Profile means the reader is unknown
// (cold start).
type Profile struct {
	UserID          string             `json:"user_id"`
	CategoryWeights map[string]float64 `json:"category_weights,omitempty"`
	TagWeights      map[string]float64 `json:"tag_weights,omitempty"`
	AuthorWeights   map[string]float64 `json:"author_weights,omitempty"`

	// Explicit preferences, set via the preferences API.
	ExcludeCategories []string        `json:"exclude_categories,omitempty"`
	ExcludeTags       []string        `json:"exclude_tags,omitempty"`
	MinRating         float64         `json:"min_rating,omitempty"`
	WordCount         *WordCountRange `json:"word_count,omitempty"`

	// ExcludedItems holds novels soft-excluded by dislike or
	// not-interested feedback.
	ExcludedItems []string `json:"excluded_items,omitempty"`

	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// IsEmpty reports whether the profile carries no behavioral signal at all,
// which routes the request down the cold-start path.
func (p *Profile) IsEmpty() bool {
	if p == nil {
		return true
	}
	return len(p.CategoryWeights) == 0 && len(p.TagWeights) == 0 && len(p.AuthorWeights) == 0
}

// Excludes reports whether the novel is filtered out by the profile's
// exclusion rules.
func (p *Profile) Excludes(n *catalog.Novel) bool {
	if p == nil {
		return false
	}
	for _, id := range p.ExcludedItems {
		if id == n.ID {
			return true
		}
	}
	for _, c := range p.ExcludeCategories {
		if c == n.Category {
			return true
		}
	}
	for _, t := range p.ExcludeTags {
		if n.HasTag(t) {
			return true
		}
	}
	if p.MinRating > 0 && n.Rating < p.MinRating {
		return true
	}
	return !p.WordCount.Contains(n.WordCount)
}

// ContentWeights are the component weights of the content-based score.
type ContentWeights struct {
	Category float64 `koanf:"category" json:"category"`
	Tags     float64 `koanf:"tags" json:"tags"`
	Author   float64 `koanf:"author" json:"author"`
	Rating   float64 `koanf:"rating" json:"rating"`
}

// DefaultContentWeights returns the standard content score weighting.
func DefaultContentWeights() ContentWeights {
	return ContentWeights{Category: 0.4, Tags: 0.3, Author: 0.2, Rating: 0.1}
}

// Request describes one recommendation query after parameter parsing.
type Request struct {
	UserID    string    `json:"user_id"`
	Algorithm Algorithm `json:"algorithm"`
	Limit     int       `json:"limit"`

	ExcludeRead      bool `json:"exclude_read"`
	ExcludeBookshelf bool `json:"exclude_bookshelf"`

	// MinSimilarity filters collaborative scores below the threshold.
	MinSimilarity float64 `json:"min_similarity"`

	// ContentWeights overrides the default content score weighting when
	// set (the content_based endpoint exposes the knobs).
	ContentWeights *ContentWeights `json:"content_weights,omitempty"`

	// DiversityFactor in [0,1] controls category diversity re-ranking.
	// Zero disables it.
	DiversityFactor float64 `json:"diversity_factor"`

	// Category restricts candidates to one category (hot/category endpoints).
	Category string `json:"category,omitempty"`

	RequestID string `json:"request_id,omitempty"`
}

// ScoredItem is one ranked recommendation.
type ScoredItem struct {
	Item      catalog.Novel      `json:"item"`
	Score     float64            `json:"score"`
	Rank      int                `json:"rank"`
	Algorithm Algorithm          `json:"algorithm"`
	Reasons   []string           `json:"reasons,omitempty"`
	Signals   map[string]float64 `json:"signals,omitempty"`
}

// Metadata describes how a response was produced.
type Metadata struct {
	RequestID   string    `json:"request_id"`
	UserID      string    `json:"user_id"`
	Algorithm   Algorithm `json:"algorithm"`
	SignalsUsed []string  `json:"signals_used,omitempty"`
	CacheHit    bool      `json:"cache_hit"`
	LatencyMS   int64     `json:"latency_ms"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Response is a complete recommendation result.
type Response struct {
	Items           []ScoredItem `json:"items"`
	TotalCandidates int          `json:"total_candidates"`
	Metadata        Metadata     `json:"metadata"`
}

// Explanation answers "why was this novel recommended to me".
type Explanation struct {
	ItemID  string   `json:"item_id"`
	UserID  string   `json:"user_id"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}
