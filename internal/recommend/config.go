// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package recommend

import (
	"fmt"
	"time"
)

// Config contains all configuration for the recommendation engine.
type Config struct {
	// Hybrid defines the relative contribution of the personalized
	// signals when merging.
	Hybrid HybridWeights `koanf:"hybrid" json:"hybrid"`

	// Content is the default content-score component weighting. Requests
	// may override it per call.
	Content ContentWeights `koanf:"content" json:"content"`

	// SignalTimeout bounds each signal's scoring pass during fan-out.
	SignalTimeout time.Duration `koanf:"signal_timeout" json:"signal_timeout"`

	// DefaultLimit is the list size when the request does not specify one.
	DefaultLimit int `koanf:"default_limit" json:"default_limit"`

	// MaxLimit caps the per-request list size.
	MaxLimit int `koanf:"max_limit" json:"max_limit"`

	// MinSimilarity is the default collaborative score floor.
	MinSimilarity float64 `koanf:"min_similarity" json:"min_similarity"`

	// NeighborCap bounds the collaborative neighbor set per user.
	NeighborCap int `koanf:"neighbor_cap" json:"neighbor_cap"`

	// CacheTTL is how long computed recommendation lists stay cached.
	CacheTTL time.Duration `koanf:"cache_ttl" json:"cache_ttl"`
}

// HybridWeights defines the merge weights of the personalized signals.
// The weights are fixed at merge time: a signal that fails or returns
// nothing is dropped without redistributing its weight, so a thin
// collaborative signal cannot inflate content scores.
type HybridWeights struct {
	// Content is the weight of the content-based signal.
	Content float64 `koanf:"content" json:"content"`

	// Collaborative is the weight of the collaborative signal.
	Collaborative float64 `koanf:"collaborative" json:"collaborative"`
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		Hybrid: HybridWeights{
			Content:       0.6,
			Collaborative: 0.4,
		},
		Content:       DefaultContentWeights(),
		SignalTimeout: 250 * time.Millisecond,
		DefaultLimit:  10,
		MaxLimit:      100,
		MinSimilarity: 0.1,
		NeighborCap:   50,
		CacheTTL:      5 * time.Minute,
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Hybrid.Content < 0 || c.Hybrid.Collaborative < 0 {
		return fmt.Errorf("hybrid weights must be non-negative")
	}
	if c.Hybrid.Content+c.Hybrid.Collaborative <= 0 {
		return fmt.Errorf("hybrid weights must not all be zero")
	}
	if err := validateContentWeights(c.Content); err != nil {
		return err
	}
	if c.SignalTimeout <= 0 {
		return fmt.Errorf("signal_timeout must be positive, got %s", c.SignalTimeout)
	}
	if c.DefaultLimit <= 0 {
		return fmt.Errorf("default_limit must be positive, got %d", c.DefaultLimit)
	}
	if c.MaxLimit < c.DefaultLimit {
		return fmt.Errorf("max_limit %d must be >= default_limit %d", c.MaxLimit, c.DefaultLimit)
	}
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		return fmt.Errorf("min_similarity must be in [0,1], got %f", c.MinSimilarity)
	}
	if c.NeighborCap <= 0 {
		return fmt.Errorf("neighbor_cap must be positive, got %d", c.NeighborCap)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive, got %s", c.CacheTTL)
	}
	return nil
}

func validateContentWeights(w ContentWeights) error {
	if w.Category < 0 || w.Tags < 0 || w.Author < 0 || w.Rating < 0 {
		return fmt.Errorf("content weights must be non-negative")
	}
	if w.Category+w.Tags+w.Author+w.Rating <= 0 {
		return fmt.Errorf("content weights must not all be zero")
	}
	return nil
}
