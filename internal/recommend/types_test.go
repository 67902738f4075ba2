// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package recommend

import (
	"errors"
	"testing"

	"github.com/mliang5/novelrec/internal/catalog"
)

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"", AlgorithmHybrid, false},
		{"hybrid", AlgorithmHybrid, false},
		{"content_based", AlgorithmContentBased, false},
		{"collaborative", AlgorithmCollaborative, false},
		{"popularity", AlgorithmPopularity, false},
		{"cold_start", "", true}, // not client-selectable
		{"magic", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAlgorithm(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAlgorithm(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil {
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("ParseAlgorithm(%q) error = %v, want ErrInvalidRequest", tt.in, err)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAlgorithm(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseFeedbackType(t *testing.T) {
	valid := []string{"like", "dislike", "not_interested", "inappropriate"}
	for _, s := range valid {
		if _, err := ParseFeedbackType(s); err != nil {
			t.Errorf("ParseFeedbackType(%q) error = %v", s, err)
		}
	}
	for _, s := range []string{"", "LIKE", "love"} {
		if _, err := ParseFeedbackType(s); !errors.Is(err, ErrInvalidFeedback) {
			t.Errorf("ParseFeedbackType(%q) error = %v, want ErrInvalidFeedback", s, err)
		}
	}
}

func TestWordCountRangeContains(t *testing.T) {
	tests := []struct {
		name string
		r    *WordCountRange
		wc   int
		want bool
	}{
		{"nil range", nil, 123, true},
		{"inside", &WordCountRange{Min: 100, Max: 200}, 150, true},
		{"below min", &WordCountRange{Min: 100, Max: 200}, 99, false},
		{"above max", &WordCountRange{Min: 100, Max: 200}, 201, false},
		{"at bounds", &WordCountRange{Min: 100, Max: 200}, 100, true},
		{"unbounded max", &WordCountRange{Min: 100}, 1000000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Contains(tt.wc); got != tt.want {
				t.Errorf("Contains(%d) = %v, want %v", tt.wc, got, tt.want)
			}
		})
	}
}

func TestProfileIsEmpty(t *testing.T) {
	var nilProfile *Profile
	if !nilProfile.IsEmpty() {
		t.Error("nil profile should be empty")
	}
	if !(&Profile{UserID: "u1", ExcludedItems: []string{"n1"}}).IsEmpty() {
		t.Error("profile with only exclusions should still count as empty")
	}
	if (&Profile{TagWeights: map[string]float64{"dragons": 0.5}}).IsEmpty() {
		t.Error("profile with tag weights should not be empty")
	}
}

func TestProfileExcludes(t *testing.T) {
	n := catalog.Novel{
		ID:        "n1",
		Category:  "horror",
		Tags:      []string{"gore"},
		Rating:    3.0,
		WordCount: 80000,
	}

	tests := []struct {
		name string
		p    *Profile
		want bool
	}{
		{"nil profile", nil, false},
		{"empty profile", &Profile{}, false},
		{"excluded item", &Profile{ExcludedItems: []string{"n1"}}, true},
		{"excluded category", &Profile{ExcludeCategories: []string{"horror"}}, true},
		{"excluded tag", &Profile{ExcludeTags: []string{"gore"}}, true},
		{"min rating above", &Profile{MinRating: 3.5}, true},
		{"min rating below", &Profile{MinRating: 2.5}, false},
		{"word count outside", &Profile{WordCount: &WordCountRange{Min: 100000}}, true},
		{"word count inside", &Profile{WordCount: &WordCountRange{Min: 1000, Max: 100000}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Excludes(&n); got != tt.want {
				t.Errorf("Excludes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPatchIsZero(t *testing.T) {
	if !(&Patch{}).IsZero() {
		t.Error("empty patch should be zero")
	}
	if (&Patch{ExcludeItems: []string{"n1"}}).IsZero() {
		t.Error("patch with exclusions should not be zero")
	}
	if (&Patch{Explicit: &ExplicitPreferences{}}).IsZero() {
		t.Error("patch with an explicit block should not be zero")
	}
}
