// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

// Package catalog defines the read-side view of the novel library that the
// recommendation engine consumes. The engine never writes catalog data; in
// production these interfaces are adapters over the platform database, and the
// in-memory implementations back standalone deployments and tests.
package catalog

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a novel ID does not exist in the catalog.
var ErrNotFound = errors.New("catalog: novel not found")

// Novel is the catalog view of a single work. Counters are denormalized
// aggregates maintained by the upstream platform.
type Novel struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Category      string    `json:"category"`
	Tags          []string  `json:"tags"`
	Rating        float64   `json:"rating"` // average rating, 0-5
	ViewCount     int64     `json:"view_count"`
	FavoriteCount int64     `json:"favorite_count"`
	WordCount     int       `json:"word_count"`
	Status        string    `json:"status"` // ongoing | completed | hiatus
	CreatedAt     time.Time `json:"created_at"`
}

// HasTag reports whether the novel carries the given tag.
func (n *Novel) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Interaction is a single reader-novel touchpoint from the reading history.
// Progress is a completion fraction in [0,1]; Rating is nil unless the reader
// left an explicit rating.
type Interaction struct {
	ItemID    string    `json:"item_id"`
	Progress  float64   `json:"progress"`
	Rating    *float64  `json:"rating,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Catalog provides read access to the novel library.
type Catalog interface {
	// Get returns the novel with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Novel, error)

	// List returns all novels eligible as recommendation candidates.
	List(ctx context.Context) ([]Novel, error)
}

// InteractionStore provides read access to per-user behavioral data.
type InteractionStore interface {
	// Favorites returns the IDs of novels the user has bookshelved,
	// in no particular order.
	Favorites(ctx context.Context, userID string) ([]string, error)

	// History returns the user's reading history.
	History(ctx context.Context, userID string) ([]Interaction, error)

	// FavoritedBy returns the IDs of users who have favorited the novel.
	// Used by collaborative filtering to find neighbor readers.
	FavoritedBy(ctx context.Context, itemID string) ([]string, error)
}
