// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mliang5/novelrec/internal/catalog"
	"github.com/mliang5/novelrec/internal/logging"
	"github.com/mliang5/novelrec/internal/recommend"
)

// Handler holds the service dependencies shared by all endpoint handlers.
type Handler struct {
	engine    *recommend.Engine
	processor *recommend.Processor
	explainer *recommend.Explainer
	prefs     recommend.PreferenceStore
	feedback  recommend.FeedbackLog
	catalog   catalog.Catalog
	validate  *validator.Validate
	startTime time.Time
}

// NewHandler creates the endpoint handler set.
func NewHandler(
	engine *recommend.Engine,
	processor *recommend.Processor,
	explainer *recommend.Explainer,
	prefs recommend.PreferenceStore,
	feedback recommend.FeedbackLog,
	cat catalog.Catalog,
) *Handler {
	return &Handler{
		engine:    engine,
		processor: processor,
		explainer: explainer,
		prefs:     prefs,
		feedback:  feedback,
		catalog:   cat,
		validate:  validator.New(),
		startTime: time.Now(),
	}
}

// resolveUser returns the caller's user ID: the authenticated identity when
// present, otherwise the user_id query parameter. Empty means anonymous.
func resolveUser(r *http.Request) string {
	if id := UserIDFromContext(r.Context()); id != "" {
		return id
	}
	return r.URL.Query().Get("user_id")
}

// queryInt parses an integer query parameter, returning def when absent.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	return v, nil
}

// queryFloat parses a float query parameter, returning def when absent.
func queryFloat(r *http.Request, key string, def float64) (float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New(key + " must be a number")
	}
	return v, nil
}

// queryBool parses a boolean query parameter, returning def when absent.
func queryBool(r *http.Request, key string, def bool) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.New(key + " must be a boolean")
	}
	return v, nil
}

// writeRecommendError maps engine errors to HTTP responses.
func writeRecommendError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, recommend.ErrInvalidRequest), errors.Is(err, recommend.ErrInvalidFeedback):
		WriteBadRequest(w, r, err.Error())
	case errors.Is(err, recommend.ErrItemNotFound):
		WriteNotFound(w, r, "Novel not found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Client went away; nothing useful to write.
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		WriteInternalError(w, r, "Internal server error")
	}
}
