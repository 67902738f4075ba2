// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires the endpoint handlers into a chi mux.
type Router struct {
	handler    *Handler
	middleware *Middleware
}

// NewRouter creates a router from the handler set and middleware stack.
func NewRouter(handler *Handler, mw *Middleware) *Router {
	if mw == nil {
		mw = NewMiddleware(nil)
	}
	return &Router{
		handler:    handler,
		middleware: mw,
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.middleware.CORS())
	r.Use(SecurityHeaders())

	// Health endpoints stay outside rate limiting so monitoring probes
	// never get throttled.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// Prometheus scrape endpoint.
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.middleware.RateLimit())
		r.Use(PrometheusMetrics())
		r.Use(router.middleware.Identity())

		// Recommendation strategies.
		r.Route("/recommendations", func(r chi.Router) {
			r.Get("/", router.handler.Recommendations)
			r.Get("/collaborative", router.handler.Collaborative)
			r.Get("/content_based", router.handler.ContentBased)
			r.Get("/diversity", router.handler.Diversity)
			r.Get("/cold_start", router.handler.ColdStart)
		})

		// Contextual discovery lists.
		r.Get("/similar/{id}", router.handler.Similar)
		r.Get("/hot", router.handler.Hot)
		r.Get("/trending", router.handler.Trending)
		r.Get("/new", router.handler.NewArrivals)
		r.Get("/category/{category}", router.handler.HotByCategory)
		r.Get("/author/{author}", router.handler.ByAuthor)

		r.Get("/reasons/{id}", router.handler.Reasons)
		r.Get("/stats", router.handler.Stats)

		// Per-user state.
		r.Group(func(r chi.Router) {
			r.Use(RequireUser)
			r.Post("/feedback", router.handler.SubmitFeedback)
			r.Get("/feedback", router.handler.FeedbackHistory)
			r.Get("/preferences", router.handler.GetPreferences)
			r.Put("/preferences", router.handler.PutPreferences)
			r.Post("/refresh", router.handler.Refresh)
		})
	})

	return r
}

// routePattern returns the chi routing pattern for metrics labels, falling
// back to the raw path outside chi routing.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
