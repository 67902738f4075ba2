// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/mliang5/novelrec/internal/recommend"
)

// feedbackRequest is the POST /feedback body.
type feedbackRequest struct {
	ItemID string `json:"item_id" validate:"required"`
	Type   string `json:"type" validate:"required,oneof=like dislike not_interested inappropriate"`
	Reason string `json:"reason" validate:"max=500"`
}

// preferencesRequest is the PUT /preferences body. It replaces the explicit
// preference block wholesale; accumulated behavioral weights are untouched.
type preferencesRequest struct {
	PreferredCategories []string `json:"preferred_categories" validate:"max=50"`
	PreferredTags       []string `json:"preferred_tags" validate:"max=100"`
	PreferredAuthors    []string `json:"preferred_authors" validate:"max=50"`
	ExcludeCategories   []string `json:"exclude_categories" validate:"max=50"`
	ExcludeTags         []string `json:"exclude_tags" validate:"max=100"`
	MinRating           float64  `json:"min_rating" validate:"gte=0,lte=5"`

	WordCount *wordCountRequest `json:"word_count"`
}

type wordCountRequest struct {
	Min int `json:"min" validate:"gte=0"`
	Max int `json:"max" validate:"gte=0"`
}

// SubmitFeedback handles POST /feedback. Likes boost the matching profile
// weights; dislikes and not-interested exclude the novel; inappropriate
// additionally files a moderation report.
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	userID := resolveUser(r)
	if userID == "" {
		WriteError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "User identity required")
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, r, "Invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		NewResponseWriter(w, r).ValidationError("Invalid feedback", err.Error())
		return
	}

	ftype, err := recommend.ParseFeedbackType(req.Type)
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	ev, err := h.processor.Submit(r.Context(), userID, req.ItemID, ftype, req.Reason)
	if err != nil {
		writeRecommendError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(ev)
}

// FeedbackHistory handles GET /feedback: the caller's most recent feedback
// events, newest first.
func (h *Handler) FeedbackHistory(w http.ResponseWriter, r *http.Request) {
	userID := resolveUser(r)
	if userID == "" {
		WriteError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "User identity required")
		return
	}

	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	events, err := h.feedback.ListByUser(r.Context(), userID, limit)
	if err != nil {
		writeRecommendError(w, r, err)
		return
	}
	WriteSuccess(w, r, events)
}

// GetPreferences handles GET /preferences: the caller's stored profile. A
// user with no stored profile gets an empty one rather than a 404.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := resolveUser(r)
	if userID == "" {
		WriteError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "User identity required")
		return
	}

	profile, err := h.prefs.Get(r.Context(), userID)
	if errors.Is(err, recommend.ErrProfileNotFound) {
		profile = &recommend.Profile{UserID: userID}
	} else if err != nil {
		writeRecommendError(w, r, err)
		return
	}
	WriteSuccess(w, r, profile)
}

// PutPreferences handles PUT /preferences. The explicit block is replaced
// and the user's cached recommendations are invalidated.
func (h *Handler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	userID := resolveUser(r)
	if userID == "" {
		WriteError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "User identity required")
		return
	}

	var req preferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, r, "Invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		NewResponseWriter(w, r).ValidationError("Invalid preferences", err.Error())
		return
	}
	if req.WordCount != nil && req.WordCount.Max > 0 && req.WordCount.Min > req.WordCount.Max {
		WriteBadRequest(w, r, "word_count.min must not exceed word_count.max")
		return
	}

	explicit := &recommend.ExplicitPreferences{
		PreferredCategories: req.PreferredCategories,
		PreferredTags:       req.PreferredTags,
		PreferredAuthors:    req.PreferredAuthors,
		ExcludeCategories:   req.ExcludeCategories,
		ExcludeTags:         req.ExcludeTags,
		MinRating:           req.MinRating,
	}
	if req.WordCount != nil {
		explicit.WordCount = &recommend.WordCountRange{
			Min: req.WordCount.Min,
			Max: req.WordCount.Max,
		}
	}

	if err := h.prefs.Apply(r.Context(), userID, &recommend.Patch{Explicit: explicit}); err != nil {
		writeRecommendError(w, r, err)
		return
	}
	h.engine.InvalidateUser(userID)

	profile, err := h.prefs.Get(r.Context(), userID)
	if err != nil {
		writeRecommendError(w, r, err)
		return
	}
	WriteSuccess(w, r, profile)
}

// Refresh handles POST /refresh: drops the caller's cached recommendation
// lists so the next request recomputes them.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	userID := resolveUser(r)
	if userID == "" {
		WriteError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "User identity required")
		return
	}

	invalidated := h.engine.InvalidateUser(userID)
	WriteSuccess(w, r, map[string]interface{}{
		"invalidated": invalidated,
	})
}
