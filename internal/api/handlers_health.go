// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package api

import (
	"net/http"
	"time"
)

// healthStatus is the health endpoint payload.
type healthStatus struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version,omitempty"`
}

// statsResponse is the GET /stats payload.
type statsResponse struct {
	Uptime       string  `json:"uptime"`
	CatalogSize  int     `json:"catalog_size"`
	CacheEntries int64   `json:"cache_entries"`
	CacheHits    int64   `json:"cache_hits"`
	CacheMisses  int64   `json:"cache_misses"`
	CacheHitRate float64 `json:"cache_hit_rate"`
}

// HealthLive handles GET /health/live: process liveness only.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, healthStatus{
		Status: "ok",
		Uptime: time.Since(h.startTime).Round(time.Second).String(),
	})
}

// HealthReady handles GET /health/ready: the service can answer
// recommendation requests. An empty catalog is not ready; every strategy
// would return nothing.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	novels, err := h.catalog.List(r.Context())
	if err != nil {
		NewResponseWriter(w, r).ServiceUnavailable("Catalog unavailable")
		return
	}
	if len(novels) == 0 {
		NewResponseWriter(w, r).ServiceUnavailable("Catalog is empty")
		return
	}

	WriteSuccess(w, r, healthStatus{
		Status: "ready",
		Uptime: time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Stats handles GET /stats: operational counters for dashboards.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	novels, err := h.catalog.List(r.Context())
	if err != nil {
		writeRecommendError(w, r, err)
		return
	}

	cs := h.engine.CacheStats()
	total := cs.Hits + cs.Misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(cs.Hits) / float64(total)
	}

	WriteSuccess(w, r, statsResponse{
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		CatalogSize:  len(novels),
		CacheEntries: cs.TotalKeys,
		CacheHits:    cs.Hits,
		CacheMisses:  cs.Misses,
		CacheHitRate: hitRate,
	})
}
