// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mliang5/novelrec/internal/cache"
	"github.com/mliang5/novelrec/internal/catalog"
	"github.com/mliang5/novelrec/internal/logging"
	"github.com/mliang5/novelrec/internal/metrics"
)

// Reranker reorders an already-scored list without recomputing scores.
type Reranker interface {
	Name() string
	Rerank(items []ScoredItem, factor float64) []ScoredItem
}

// SimilarityScorer ranks candidates by item-to-item similarity with a target
// novel. The content-based signal implements it.
type SimilarityScorer interface {
	SimilarTo(ctx context.Context, target *catalog.Novel, candidates []catalog.Novel, w ContentWeights) ([]ScoredItem, error)
}

// TrendingScorer ranks candidates restricted to a creation-time cutoff. The
// popularity signal implements it.
type TrendingScorer interface {
	TopSince(ctx context.Context, candidates []catalog.Novel, cutoff time.Time) ([]ScoredItem, error)
}

// Options wires an Engine. Reranker and Loader are optional; everything else
// is required.
type Options struct {
	Config        Config
	Catalog       catalog.Catalog
	Profiles      *ProfileBuilder
	Content       Signal
	Collaborative Signal
	Popularity    Signal
	Reranker      Reranker
	Loader        *cache.Loader
}

// Engine produces recommendation lists. Personalized requests fan out to the
// content-based and collaborative signals in parallel, merge their scores
// with fixed weights, optionally rerank for category diversity, and fall back
// to popularity for unknown readers and short lists. Results are cached per
// user with single-flight recomputation. Safe for concurrent use.
type Engine struct {
	cfg        Config
	catalog    catalog.Catalog
	profiles   *ProfileBuilder
	content    Signal
	collab     Signal
	popularity Signal
	similarity SimilarityScorer
	trending   TrendingScorer
	reranker   Reranker
	loader     *cache.Loader
	logger     zerolog.Logger
}

// NewEngine validates options and builds an Engine.
func NewEngine(opts Options) (*Engine, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if opts.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if opts.Profiles == nil {
		return nil, fmt.Errorf("profile builder is required")
	}
	if opts.Content == nil || opts.Collaborative == nil || opts.Popularity == nil {
		return nil, fmt.Errorf("all three signals are required")
	}

	e := &Engine{
		cfg:        opts.Config,
		catalog:    opts.Catalog,
		profiles:   opts.Profiles,
		content:    opts.Content,
		collab:     opts.Collaborative,
		popularity: opts.Popularity,
		reranker:   opts.Reranker,
		loader:     opts.Loader,
		logger:     logging.With().Str("component", "recommend").Logger(),
	}
	if s, ok := opts.Content.(SimilarityScorer); ok {
		e.similarity = s
	}
	if t, ok := opts.Popularity.(TrendingScorer); ok {
		e.trending = t
	}
	return e, nil
}

// Recommend produces a ranked list for the request. Results are cached per
// user; concurrent identical requests share one computation, and a client
// disconnect does not discard the computed list.
func (e *Engine) Recommend(ctx context.Context, req *Request) (*Response, error) {
	e.normalize(req)
	start := time.Now()

	key := cache.Key([]string{"rec", req.UserID, string(req.Algorithm)}, req)
	resp, err := e.cached(ctx, key, func(ctx context.Context) (*Response, error) {
		return e.compute(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	resp.Metadata.RequestID = req.RequestID
	resp.Metadata.LatencyMS = time.Since(start).Milliseconds()
	metrics.RecommendationRequests.WithLabelValues(string(resp.Metadata.Algorithm), strconv.FormatBool(resp.Metadata.CacheHit)).Inc()
	metrics.RecommendationLatency.WithLabelValues(string(resp.Metadata.Algorithm)).Observe(time.Since(start).Seconds())
	return resp, nil
}

// Similar returns novels resembling the target by category, tags and author.
func (e *Engine) Similar(ctx context.Context, itemID string, limit int) (*Response, error) {
	limit = e.clampLimit(limit)
	if e.similarity == nil {
		return nil, fmt.Errorf("similarity scoring not available")
	}

	key := cache.Key([]string{"sim", itemID}, limit)
	return e.cached(ctx, key, func(ctx context.Context) (*Response, error) {
		target, err := e.catalog.Get(ctx, itemID)
		if err != nil {
			return nil, wrapCatalogErr(itemID, err)
		}
		pool, err := e.catalog.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list candidates: %w", err)
		}
		items, err := e.similarity.SimilarTo(ctx, target, pool, e.cfg.Content)
		if err != nil {
			return nil, err
		}
		return e.finish(items, len(pool), AlgorithmContentBased, "", limit, 0), nil
	})
}

// Hot returns the most popular novels, optionally within one category.
func (e *Engine) Hot(ctx context.Context, category string, limit int) (*Response, error) {
	limit = e.clampLimit(limit)

	key := cache.Key([]string{"hot", category}, limit)
	return e.cached(ctx, key, func(ctx context.Context) (*Response, error) {
		pool, err := e.listFiltered(ctx, category, "")
		if err != nil {
			return nil, err
		}
		items, err := e.popularity.Score(ctx, &SignalRequest{Candidates: pool})
		if err != nil {
			return nil, err
		}
		return e.finish(items, len(pool), AlgorithmPopularity, "", limit, 0), nil
	})
}

// Trending returns popular novels created within the period (day, week or
// month; week is the default).
func (e *Engine) Trending(ctx context.Context, period string, limit int) (*Response, error) {
	limit = e.clampLimit(limit)
	if e.trending == nil {
		return nil, fmt.Errorf("trending scoring not available")
	}

	key := cache.Key([]string{"trending", period}, limit)
	return e.cached(ctx, key, func(ctx context.Context) (*Response, error) {
		pool, err := e.catalog.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list candidates: %w", err)
		}
		items, err := e.trending.TopSince(ctx, pool, time.Now().Add(-periodDuration(period)))
		if err != nil {
			return nil, err
		}
		return e.finish(items, len(pool), AlgorithmPopularity, "", limit, 0), nil
	})
}

// NewArrivals returns the newest novels, most recent first. Scores carry the
// popularity composite for display, but ordering is pure recency.
func (e *Engine) NewArrivals(ctx context.Context, limit int) (*Response, error) {
	limit = e.clampLimit(limit)

	key := cache.Key([]string{"new"}, limit)
	return e.cached(ctx, key, func(ctx context.Context) (*Response, error) {
		pool, err := e.catalog.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list candidates: %w", err)
		}
		items, err := e.popularity.Score(ctx, &SignalRequest{Candidates: pool})
		if err != nil {
			return nil, err
		}
		sort.SliceStable(items, func(i, j int) bool {
			a, b := items[i].Item, items[j].Item
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID < b.ID
		})
		for i := range items {
			items[i].Reasons = []string{"recently added"}
		}
		return e.finish(items, len(pool), AlgorithmPopularity, "", limit, 0), nil
	})
}

// ByAuthor returns an author's novels ranked by popularity.
func (e *Engine) ByAuthor(ctx context.Context, author string, limit int) (*Response, error) {
	limit = e.clampLimit(limit)

	key := cache.Key([]string{"author", author}, limit)
	return e.cached(ctx, key, func(ctx context.Context) (*Response, error) {
		pool, err := e.listFiltered(ctx, "", author)
		if err != nil {
			return nil, err
		}
		items, err := e.popularity.Score(ctx, &SignalRequest{Candidates: pool})
		if err != nil {
			return nil, err
		}
		return e.finish(items, len(pool), AlgorithmPopularity, "", limit, 0), nil
	})
}

// InvalidateUser drops every cached list belonging to the user and returns
// the number of entries removed. In-flight computations for the user are
// abandoned first so one racing this call cannot re-cache a stale list.
func (e *Engine) InvalidateUser(userID string) int {
	if e.loader == nil {
		return 0
	}
	prefix := "rec:" + userID + ":"
	e.loader.ForgetPrefix(prefix)
	return e.loader.Cache().DeletePrefix(prefix)
}

// CacheStats exposes cache counters for the stats endpoint.
func (e *Engine) CacheStats() cache.Stats {
	if e.loader == nil {
		return cache.Stats{}
	}
	return e.loader.Cache().GetStats()
}

// normalize applies request defaults and caps.
func (e *Engine) normalize(req *Request) {
	req.Limit = e.clampLimit(req.Limit)
	if req.Algorithm == "" {
		req.Algorithm = AlgorithmHybrid
	}
	if req.MinSimilarity <= 0 {
		req.MinSimilarity = e.cfg.MinSimilarity
	}
}

func (e *Engine) clampLimit(limit int) int {
	if limit <= 0 {
		return e.cfg.DefaultLimit
	}
	if limit > e.cfg.MaxLimit {
		return e.cfg.MaxLimit
	}
	return limit
}

// cached runs compute through the single-flight loader, or directly when no
// loader is wired (tests). Cache hits are returned as shallow copies so
// metadata updates never race.
func (e *Engine) cached(ctx context.Context, key string, compute func(ctx context.Context) (*Response, error)) (*Response, error) {
	if e.loader == nil {
		return compute(ctx)
	}

	v, hit, err := e.loader.GetOrCompute(ctx, key, e.cfg.CacheTTL, func(ctx context.Context) (interface{}, error) {
		return compute(ctx)
	})
	if err != nil {
		return nil, err
	}
	if hit {
		metrics.CacheHits.Inc()
	} else {
		metrics.CacheMisses.Inc()
	}

	resp := v.(*Response)
	out := *resp
	out.Metadata.CacheHit = hit
	return &out, nil
}

// compute produces a response without consulting the cache.
func (e *Engine) compute(ctx context.Context, req *Request) (*Response, error) {
	data, err := e.profiles.Build(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("build profile: %w", err)
	}

	pool, err := e.candidates(ctx, req, data)
	if err != nil {
		return nil, err
	}

	sreq := &SignalRequest{
		UserID:        req.UserID,
		Profile:       data.Profile,
		Candidates:    pool,
		Weights:       e.contentWeights(req),
		MinSimilarity: req.MinSimilarity,
	}

	algorithm := req.Algorithm
	var items []ScoredItem
	var used []string

	switch {
	case algorithm == AlgorithmPopularity || algorithm == AlgorithmColdStart:
		items, err = e.popularity.Score(ctx, sreq)
		used = append(used, e.popularity.Name())

	case data.Profile.IsEmpty():
		// Unknown reader: every personalized algorithm degrades to the
		// cold-start popularity list.
		algorithm = AlgorithmColdStart
		items, err = e.popularity.Score(ctx, sreq)
		used = append(used, e.popularity.Name())

	case algorithm == AlgorithmContentBased:
		items, err = e.runOne(ctx, e.content, sreq)
		used = append(used, e.content.Name())

	case algorithm == AlgorithmCollaborative:
		items, err = e.runOne(ctx, e.collab, sreq)
		used = append(used, e.collab.Name())

	default: // hybrid
		items, used = e.hybrid(ctx, sreq)
	}
	if err != nil {
		return nil, err
	}

	if algorithm == AlgorithmColdStart {
		relabel(items, AlgorithmColdStart)
	}

	// Short lists are topped up from popularity so a sparse profile still
	// fills the page.
	if len(items) < req.Limit {
		filled, fillUsed := e.fillGaps(ctx, sreq, items, req.Limit)
		items = filled
		if fillUsed {
			used = appendUnique(used, e.popularity.Name())
		}
	}

	resp := e.finish(items, len(pool), algorithm, req.UserID, req.Limit, req.DiversityFactor)
	resp.Metadata.SignalsUsed = used
	return resp, nil
}

// hybrid fans out to the personalized signals in parallel and merges their
// scores with the configured fixed weights. A signal that errors, times out
// or returns nothing is dropped; its weight is not redistributed.
func (e *Engine) hybrid(ctx context.Context, sreq *SignalRequest) ([]ScoredItem, []string) {
	type result struct {
		name   string
		algo   Algorithm
		weight float64
		items  []ScoredItem
	}

	signals := []struct {
		sig    Signal
		weight float64
	}{
		{e.content, e.cfg.Hybrid.Content},
		{e.collab, e.cfg.Hybrid.Collaborative},
	}

	var (
		mu      sync.Mutex
		results []result
		wg      sync.WaitGroup
	)
	for _, s := range signals {
		if s.weight <= 0 {
			continue
		}
		wg.Add(1)
		go func(sig Signal, weight float64) {
			defer wg.Done()

			sctx, cancel := context.WithTimeout(ctx, e.cfg.SignalTimeout)
			defer cancel()

			start := time.Now()
			items, err := sig.Score(sctx, sreq)
			metrics.SignalLatency.WithLabelValues(sig.Name()).Observe(time.Since(start).Seconds())
			if err != nil {
				metrics.SignalErrors.WithLabelValues(sig.Name()).Inc()
				e.logger.Warn().
					Err(err).
					Str("signal", sig.Name()).
					Msg("signal failed, dropping from merge")
				return
			}
			if len(items) == 0 {
				return
			}

			mu.Lock()
			results = append(results, result{
				name:   sig.Name(),
				algo:   sig.Algorithm(),
				weight: weight,
				items:  items,
			})
			mu.Unlock()
		}(s.sig, s.weight)
	}
	wg.Wait()

	// Deterministic merge order regardless of goroutine completion order.
	sort.Slice(results, func(i, j int) bool { return results[i].name < results[j].name })

	merged := make(map[string]*ScoredItem)
	dominant := make(map[string]float64)
	used := make([]string, 0, len(results))
	for _, r := range results {
		used = append(used, r.name)
		for i := range r.items {
			it := &r.items[i]
			contribution := r.weight * it.Score

			entry, ok := merged[it.Item.ID]
			if !ok {
				clone := *it
				clone.Score = contribution
				clone.Algorithm = r.algo
				clone.Signals = map[string]float64{r.name: it.Score}
				clone.Reasons = append([]string(nil), it.Reasons...)
				merged[it.Item.ID] = &clone
				dominant[it.Item.ID] = contribution
				continue
			}

			entry.Score += contribution
			entry.Signals[r.name] = it.Score
			entry.Reasons = append(entry.Reasons, it.Reasons...)
			if contribution > dominant[it.Item.ID] {
				dominant[it.Item.ID] = contribution
				entry.Algorithm = r.algo
			}
		}
	}

	items := make([]ScoredItem, 0, len(merged))
	for _, it := range merged {
		items = append(items, *it)
	}
	sortItems(items)
	return items, used
}

// runOne executes a single signal with the fan-out timeout.
func (e *Engine) runOne(ctx context.Context, sig Signal, sreq *SignalRequest) ([]ScoredItem, error) {
	sctx, cancel := context.WithTimeout(ctx, e.cfg.SignalTimeout)
	defer cancel()

	start := time.Now()
	items, err := sig.Score(sctx, sreq)
	metrics.SignalLatency.WithLabelValues(sig.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SignalErrors.WithLabelValues(sig.Name()).Inc()
		return nil, fmt.Errorf("signal %s: %w", sig.Name(), err)
	}
	return items, nil
}

// fillGaps appends popularity-ranked novels not already present. Fill scores
// are scaled under the current tail score so the final list stays
// non-increasing.
func (e *Engine) fillGaps(ctx context.Context, sreq *SignalRequest, items []ScoredItem, limit int) ([]ScoredItem, bool) {
	present := make(map[string]struct{}, len(items))
	for i := range items {
		present[items[i].Item.ID] = struct{}{}
	}

	pop, err := e.popularity.Score(ctx, sreq)
	if err != nil {
		e.logger.Warn().Err(err).Msg("gap fill failed, returning short list")
		return items, false
	}

	tail := 1.0
	if len(items) > 0 {
		tail = items[len(items)-1].Score
	}

	filled := false
	for i := range pop {
		if len(items) >= limit {
			break
		}
		it := pop[i]
		if _, ok := present[it.Item.ID]; ok {
			continue
		}
		it.Score *= tail
		items = append(items, it)
		present[it.Item.ID] = struct{}{}
		filled = true
	}
	return items, filled
}

// candidates builds the filtered candidate pool for a personalized request.
func (e *Engine) candidates(ctx context.Context, req *Request, data *UserData) ([]catalog.Novel, error) {
	all, err := e.listFiltered(ctx, req.Category, "")
	if err != nil {
		return nil, err
	}

	pool := make([]catalog.Novel, 0, len(all))
	for i := range all {
		n := &all[i]
		if data.Profile.Excludes(n) {
			continue
		}
		if req.ExcludeRead {
			if _, ok := data.Read[n.ID]; ok {
				continue
			}
		}
		if req.ExcludeBookshelf {
			if _, ok := data.Favorites[n.ID]; ok {
				continue
			}
		}
		pool = append(pool, *n)
	}
	return pool, nil
}

func (e *Engine) listFiltered(ctx context.Context, category, author string) ([]catalog.Novel, error) {
	all, err := e.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	if category == "" && author == "" {
		return all, nil
	}
	out := make([]catalog.Novel, 0, len(all))
	for i := range all {
		n := &all[i]
		if category != "" && n.Category != category {
			continue
		}
		if author != "" && n.Author != author {
			continue
		}
		out = append(out, *n)
	}
	return out, nil
}

func (e *Engine) contentWeights(req *Request) ContentWeights {
	if req.ContentWeights != nil {
		return *req.ContentWeights
	}
	return e.cfg.Content
}

// finish applies diversity reranking, truncation and rank assignment, and
// wraps the list in a Response.
func (e *Engine) finish(items []ScoredItem, totalCandidates int, algorithm Algorithm, userID string, limit int, diversityFactor float64) *Response {
	if diversityFactor > 0 && e.reranker != nil {
		items = e.reranker.Rerank(items, diversityFactor)
	}
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]ScoredItem, len(items))
	copy(out, items)
	for i := range out {
		out[i].Rank = i + 1
		out[i].Reasons = dedupe(out[i].Reasons)
	}

	return &Response{
		Items:           out,
		TotalCandidates: totalCandidates,
		Metadata: Metadata{
			UserID:      userID,
			Algorithm:   algorithm,
			GeneratedAt: time.Now().UTC(),
		},
	}
}

// sortItems orders by score descending with view count and ID tie-breaks,
// making the ordering total.
func sortItems(items []ScoredItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		if items[i].Item.ViewCount != items[j].Item.ViewCount {
			return items[i].Item.ViewCount > items[j].Item.ViewCount
		}
		return items[i].Item.ID < items[j].Item.ID
	})
}

func relabel(items []ScoredItem, algo Algorithm) {
	for i := range items {
		items[i].Algorithm = algo
	}
}

func dedupe(in []string) []string {
	if len(in) < 2 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func appendUnique(in []string, s string) []string {
	for _, v := range in {
		if v == s {
			return in
		}
	}
	return append(in, s)
}

func periodDuration(period string) time.Duration {
	switch period {
	case "day":
		return 24 * time.Hour
	case "month":
		return 30 * 24 * time.Hour
	default: // week
		return 7 * 24 * time.Hour
	}
}

func wrapCatalogErr(itemID string, err error) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	return fmt.Errorf("load novel %s: %w", itemID, err)
}
