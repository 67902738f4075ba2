// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mliang5/novelrec/internal/logging"
	"github.com/mliang5/novelrec/internal/recommend"
)

// buildRequest assembles a recommendation request from query parameters.
// Unknown values fail fast with a descriptive error.
func buildRequest(r *http.Request) (*recommend.Request, error) {
	algo, err := recommend.ParseAlgorithm(r.URL.Query().Get("algorithm"))
	if err != nil {
		return nil, err
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		return nil, err
	}
	excludeRead, err := queryBool(r, "exclude_read", true)
	if err != nil {
		return nil, err
	}
	excludeBookshelf, err := queryBool(r, "exclude_bookshelf", true)
	if err != nil {
		return nil, err
	}
	minSim, err := queryFloat(r, "min_similarity", 0)
	if err != nil {
		return nil, err
	}
	diversity, err := queryFloat(r, "diversity", 0)
	if err != nil {
		return nil, err
	}

	return &recommend.Request{
		UserID:           resolveUser(r),
		Algorithm:        algo,
		Limit:            limit,
		ExcludeRead:      excludeRead,
		ExcludeBookshelf: excludeBookshelf,
		MinSimilarity:    minSim,
		DiversityFactor:  diversity,
		RequestID:        logging.RequestIDFromContext(r.Context()),
	}, nil
}

// Recommendations handles GET /recommendations. The algorithm parameter
// selects the strategy; the default is the hybrid ranker.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	req, err := buildRequest(r)
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	resp, err := h.engine.Recommend(r.Context(), req)
	if err != nil {
		writeRecommendError(w, r, err)
		return
	}
	WriteSuccess(w, r, resp)
}

// Collaborative handles GET /recommendations/collaborative.
func (h *Handler) Collaborative(w http.ResponseWriter, r *http.Request) {
	req, err := buildRequest(r)
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}
	req.Algorithm = recommend.AlgorithmCollaborative

	resp, err := h.engine.Recommend(r.Context(), req)
	if err != nil {
		writeRecommendError(w, r, err)
		return
	}
	WriteSuccess(w, r, resp)
}

// ContentBased handles GET /recommendations/content_based. The component
// weights can be overridden per call via w_category, w_tags, w_author and
// w_rating.
func (h *Handler) ContentBased(w http.ResponseWriter, r *http.Request) {
	req, err := buildRequest(r)
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}
	req.Algorithm = recommend.AlgorithmContentBased

	weights, override, err := contentWeightOverride(r)
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}
	if override {
		req.ContentWeights = weights
	}

	resp, err := h.engine.Recommend(r.Context(), req)
	if err != nil {
		writeRecommendError(w, r, err)
		return
	}
	WriteSuccess(w, r, resp)
}

// Diversity handles GET /recommendations/diversity: hybrid recommendations
// with category diversity re-ranking enabled. The factor defaults to 0.5
// when not supplied.
func (h *Handler) Diversity(w http.ResponseWriter, r *http.Request) {
	req, err := buildRequest(r)
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}
	if req.DiversityFactor == 0 {
		req.DiversityFactor = 0.5
	}
	if req.DiversityFactor < 0 || req.DiversityFactor > 1 {
		WriteBadRequest(w, r, "diversity must be in [0,1]")
		return
	}

	resp, err := h.engine.Recommend(r.Context(), req)
	if err != nil {
		writeRecommendError(w, r, err)
		return
	}
	WriteSuccess(w, r, resp)
}

// ColdStart handles GET /recommendations/cold_start: the anonymous
// popularity path, usable without any user identity.
func (h *Handler) ColdStart(w http.ResponseWriter, r *http.Request) {
	req, err := buildRequest(r)
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}
	req.Algorithm = recommend.AlgorithmColdStart

	resp, err := h.engine.Recommend(r.Context(), req)
	if err != nil {
		writeRecommendError(w, r, err)
		return
	}
	WriteSuccess(w, r, resp)
}

// Similar handles GET /similar/{id}: item-to-item recommendations for a
// novel detail page.
func (h *Handler) Similar(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	resp, err := h.engine.Similar(r.Context(), itemID, limit)
	if err != nil {
		writeRecommendError(w, r, err)
		return
	}
	WriteSuccess(w, r, resp)
}

// Hot handles GET /hot: popularity-ranked novels, optionally restricted to
// one category.
func (h *Handler) Hot(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	resp, err := h.engine.Hot(r.Context(), r.URL.Query().Get("category"), limit)
	if err != nil {
		writeRecommendError(w, r, err)
		return
	}
	WriteSuccess(w, r, resp)
}

// HotByCategory handles GET /category/{category}: popularity ranking within
// one category.
func (h *Handler) HotByCategory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	resp, err := h.engine.Hot(r.Context(), chi.URLParam(r, "category"), limit)
	if err != nil {
		writeRecommendError(w, r, err)
		return
	}
	WriteSuccess(w, r, resp)
}

// Trending handles GET /trending. The period parameter accepts day, week or
// month and defaults to week.
func (h *Handler) Trending(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	resp, err := h.engine.Trending(r.Context(), r.URL.Query().Get("period"), limit)
	if err != nil {
		writeRecommendError(w, r, err)
		return
	}
	WriteSuccess(w, r, resp)
}

// NewArrivals handles GET /new: recently added novels, newest first.
func (h *Handler) NewArrivals(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	resp, err := h.engine.NewArrivals(r.Context(), limit)
	if err != nil {
		writeRecommendError(w, r, err)
		return
	}
	WriteSuccess(w, r, resp)
}

// ByAuthor handles GET /author/{author}: other novels by the same author.
func (h *Handler) ByAuthor(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	resp, err := h.engine.ByAuthor(r.Context(), chi.URLParam(r, "author"), limit)
	if err != nil {
		writeRecommendError(w, r, err)
		return
	}
	WriteSuccess(w, r, resp)
}

// Reasons handles GET /reasons/{id}: explains why a novel was (or would be)
// recommended to the caller.
func (h *Handler) Reasons(w http.ResponseWriter, r *http.Request) {
	userID := resolveUser(r)
	if userID == "" {
		WriteError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "User identity required")
		return
	}

	expl, err := h.explainer.Explain(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeRecommendError(w, r, err)
		return
	}
	WriteSuccess(w, r, expl)
}

// contentWeightOverride parses the optional w_* weight parameters. The
// second return reports whether any override was supplied; partial overrides
// fill the remaining components from the defaults.
func contentWeightOverride(r *http.Request) (*recommend.ContentWeights, bool, error) {
	q := r.URL.Query()
	if q.Get("w_category") == "" && q.Get("w_tags") == "" &&
		q.Get("w_author") == "" && q.Get("w_rating") == "" {
		return nil, false, nil
	}

	def := recommend.DefaultContentWeights()
	category, err := queryFloat(r, "w_category", def.Category)
	if err != nil {
		return nil, false, err
	}
	tags, err := queryFloat(r, "w_tags", def.Tags)
	if err != nil {
		return nil, false, err
	}
	author, err := queryFloat(r, "w_author", def.Author)
	if err != nil {
		return nil, false, err
	}
	rating, err := queryFloat(r, "w_rating", def.Rating)
	if err != nil {
		return nil, false, err
	}

	for name, w := range map[string]float64{
		"w_category": category,
		"w_tags":     tags,
		"w_author":   author,
		"w_rating":   rating,
	} {
		if w < 0 || w > 1 {
			return nil, false, fmt.Errorf("%s must be in [0,1]", name)
		}
	}

	return &recommend.ContentWeights{
		Category: category,
		Tags:     tags,
		Author:   author,
		Rating:   rating,
	}, true, nil
}
