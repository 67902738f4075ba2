// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package signals

import (
	"context"
	"testing"
	"time"

	"github.com/mliang5/novelrec/internal/catalog"
	"github.com/mliang5/novelrec/internal/recommend"
)

func TestPopularity_Score(t *testing.T) {
	candidates := []catalog.Novel{
		{ID: "top", ViewCount: 1000, FavoriteCount: 100, Rating: 5},
		{ID: "mid", ViewCount: 500, FavoriteCount: 50, Rating: 2.5},
		{ID: "low", ViewCount: 0, FavoriteCount: 0, Rating: 0},
	}

	sig := NewPopularity()
	items, err := sig.Score(context.Background(), &recommend.SignalRequest{Candidates: candidates})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}

	// top: 0.5*1 + 0.3*1 + 0.2*1 = 1.0
	if items[0].Item.ID != "top" || !almostEqual(items[0].Score, 1.0) {
		t.Errorf("items[0] = %s score %f, want top score 1.0", items[0].Item.ID, items[0].Score)
	}
	// mid: 0.5*0.5 + 0.3*0.5 + 0.2*0.5 = 0.5
	if items[1].Item.ID != "mid" || !almostEqual(items[1].Score, 0.5) {
		t.Errorf("items[1] = %s score %f, want mid score 0.5", items[1].Item.ID, items[1].Score)
	}
	if items[2].Item.ID != "low" || !almostEqual(items[2].Score, 0) {
		t.Errorf("items[2] = %s score %f, want low score 0", items[2].Item.ID, items[2].Score)
	}

	if items[0].Reasons[0] != "most viewed right now" {
		t.Errorf("top reason = %q, want \"most viewed right now\"", items[0].Reasons[0])
	}
	if items[1].Reasons[0] != "popular with readers" {
		t.Errorf("mid reason = %q, want \"popular with readers\"", items[1].Reasons[0])
	}
}

func TestPopularity_ScoreEmptyPool(t *testing.T) {
	sig := NewPopularity()
	items, err := sig.Score(context.Background(), &recommend.SignalRequest{})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("len(items) = %d, want 0", len(items))
	}
}

func TestPopularity_TopSince(t *testing.T) {
	now := time.Now()
	candidates := []catalog.Novel{
		{ID: "old", ViewCount: 9999, CreatedAt: now.Add(-30 * 24 * time.Hour)},
		{ID: "fresh", ViewCount: 10, CreatedAt: now.Add(-time.Hour)},
		{ID: "fresher", ViewCount: 20, CreatedAt: now.Add(-time.Minute)},
	}

	sig := NewPopularity()
	items, err := sig.TopSince(context.Background(), candidates, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("TopSince() error = %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2 (old novel outside the window)", len(items))
	}
	if items[0].Item.ID != "fresher" {
		t.Errorf("items[0].ID = %q, want fresher", items[0].Item.ID)
	}

	// The window also rescopes normalization: the fresher novel is the
	// most viewed within the cutoff.
	if items[0].Reasons[0] != "most viewed right now" {
		t.Errorf("items[0] reason = %q, want \"most viewed right now\"", items[0].Reasons[0])
	}
}

func TestPopularity_ZeroCutoffRanksAll(t *testing.T) {
	candidates := []catalog.Novel{
		{ID: "a", ViewCount: 5},
		{ID: "b", ViewCount: 10},
	}

	sig := NewPopularity()
	items, err := sig.TopSince(context.Background(), candidates, time.Time{})
	if err != nil {
		t.Fatalf("TopSince() error = %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len(items) = %d, want 2", len(items))
	}
}
