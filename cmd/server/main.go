// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

// Package main is the entry point for the novelrec server.
//
// Novelrec serves personalized novel recommendations over a REST API. It
// combines a content-based signal (category, tag, author and rating match
// against the reader's preference profile), a collaborative signal (novels
// favorited by readers with overlapping favorites) and a popularity fallback
// for unknown readers, merged by a hybrid ranker with optional category
// diversity re-ranking.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered defaults, YAML file and NOVELREC_ env vars (Koanf v2)
//  2. Preference store: BadgerDB for profiles and the feedback log
//  3. Catalog: JSON seed fixture loaded into memory (standalone mode)
//  4. Moderation: in-process pub/sub with a webhook dispatcher
//  5. Recommendation engine, feedback processor and explainer
//  6. HTTP server: chi router under a suture supervision tree
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority
// wins): NOVELREC_ environment variables, then a config file (config.yaml or
// NOVELREC_CONFIG_PATH), then built-in defaults.
//
// Minimal standalone run:
//
//	export NOVELREC_CATALOG__SEED_PATH=./seed.json
//	export NOVELREC_STORE__PATH=./data
//	./novelrec
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: it stops accepting
// connections, waits for in-flight requests up to the shutdown timeout, then
// closes the preference store.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/mliang5/novelrec/internal/api"
	"github.com/mliang5/novelrec/internal/cache"
	"github.com/mliang5/novelrec/internal/catalog"
	"github.com/mliang5/novelrec/internal/config"
	"github.com/mliang5/novelrec/internal/logging"
	"github.com/mliang5/novelrec/internal/moderation"
	"github.com/mliang5/novelrec/internal/recommend"
	"github.com/mliang5/novelrec/internal/recommend/reranking"
	"github.com/mliang5/novelrec/internal/recommend/signals"
	"github.com/mliang5/novelrec/internal/store"
	"github.com/mliang5/novelrec/internal/supervisor"
	"github.com/mliang5/novelrec/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config not yet available, use the default logger.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("store_path", cfg.Store.Path).
		Str("seed_path", cfg.Catalog.SeedPath).
		Msg("Starting novelrec")

	prefStore, err := store.Open(cfg.Store.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open preference store")
	}
	defer func() {
		if err := prefStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing preference store")
		}
	}()

	var (
		cat          catalog.Catalog
		interactions catalog.InteractionStore
	)
	if cfg.Catalog.SeedPath != "" {
		seedCat, seedInter, err := catalog.LoadSeed(cfg.Catalog.SeedPath)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Catalog.SeedPath).Msg("Failed to load catalog seed")
		}
		cat, interactions = seedCat, seedInter
		novels, _ := seedCat.List(context.Background())
		logging.Info().Int("novels", len(novels)).Msg("Catalog seeded")
	} else {
		cat = catalog.NewMemoryCatalog(nil)
		interactions = catalog.NewMemoryInteractions()
		logging.Warn().Msg("No catalog seed configured, starting with an empty catalog")
	}

	// Moderation pipeline: feedback marks novels inappropriate, the
	// dispatcher forwards reports to the configured webhook.
	pubsub := moderation.NewPubSub()
	defer func() {
		if err := pubsub.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing moderation pubsub")
		}
	}()
	notifier := moderation.NewNotifier(pubsub)
	dispatcher := moderation.NewDispatcher(cfg.Moderation, pubsub)
	if cfg.Moderation.WebhookURL == "" {
		logging.Info().Msg("Moderation webhook not configured, reports are logged only")
	}

	recCache := cache.New(cfg.Engine.CacheTTL)
	defer recCache.Close()

	profiles := recommend.NewProfileBuilder(cat, interactions, prefStore)

	engine, err := recommend.NewEngine(recommend.Options{
		Config:        cfg.Engine,
		Catalog:       cat,
		Profiles:      profiles,
		Content:       signals.NewContentBased(),
		Collaborative: signals.NewCollaborative(interactions, cfg.Engine.NeighborCap),
		Popularity:    signals.NewPopularity(),
		Reranker:      reranking.NewDiversity(),
		Loader:        cache.NewLoader(recCache),
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build recommendation engine")
	}

	processor := recommend.NewProcessor(cat, prefStore, prefStore, engine, notifier)
	explainer := recommend.NewExplainer(cat, profiles, signals.NewContentBased(), signals.NewPopularity(), cfg.Engine.Content)

	handler := api.NewHandler(engine, processor, explainer, prefStore, prefStore, cat)
	router := api.NewRouter(handler, api.NewMiddleware(&api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		RateLimitRequests:  cfg.RateLimit.RequestsPerMinute,
		JWTSecret:          cfg.Auth.JWTSecret,
	}))

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Bridge zerolog to slog for sutureslog.
	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	if cfg.Store.Path != "" {
		tree.AddStoreService(services.NewStoreGCService(prefStore, cfg.Store.GCInterval))
	}
	tree.AddMessagingService(dispatcher)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	// ServeBackground delivers exactly one error and never closes the
	// channel, so each branch receives it exactly once.
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for supervisor to finish")
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}
