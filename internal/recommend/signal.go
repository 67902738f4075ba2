// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package recommend

import (
	"context"

	"github.com/mliang5/novelrec/internal/catalog"
)

// SignalRequest is the scoring input the engine assembles for each signal.
// Candidates arrive pre-filtered: exclusions from the profile, reading
// history and bookshelf have already been applied.
type SignalRequest struct {
	UserID        string
	Profile       *Profile
	Candidates    []catalog.Novel
	Weights       ContentWeights
	MinSimilarity float64
}

// Signal scores candidates for one ranking strategy. Implementations must be
// safe for concurrent use; the engine fans out to all signals in parallel
// with a per-signal timeout. A signal that cannot score a user returns an
// empty slice, not an error.
type Signal interface {
	// Name is a stable identifier used in logs, metrics and response
	// metadata.
	Name() string

	// Algorithm tags items produced by this signal.
	Algorithm() Algorithm

	// Score returns scored candidates in [0,1], sorted by score descending
	// with deterministic tie-breaking.
	Score(ctx context.Context, req *SignalRequest) ([]ScoredItem, error)
}
