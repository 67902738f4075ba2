// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/mliang5/novelrec/internal/cache"
	"github.com/mliang5/novelrec/internal/catalog"
	"github.com/mliang5/novelrec/internal/recommend"
	"github.com/mliang5/novelrec/internal/recommend/reranking"
	"github.com/mliang5/novelrec/internal/recommend/signals"
	"github.com/mliang5/novelrec/internal/store"
)

// envelope mirrors APIResponse with raw data for per-test decoding.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func testNovels() []catalog.Novel {
	now := time.Now()
	return []catalog.Novel{
		{ID: "n1", Title: "Dragon Court", Author: "alice", Category: "fantasy",
			Tags: []string{"dragons", "politics"}, Rating: 4.5, ViewCount: 1000, FavoriteCount: 100,
			WordCount: 120000, Status: "ongoing", CreatedAt: now.Add(-72 * time.Hour)},
		{ID: "n2", Title: "Ember Isles", Author: "alice", Category: "fantasy",
			Tags: []string{"dragons"}, Rating: 4.0, ViewCount: 500, FavoriteCount: 60,
			WordCount: 90000, Status: "completed", CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "n3", Title: "Void Relay", Author: "bob", Category: "scifi",
			Tags: []string{"space"}, Rating: 4.2, ViewCount: 2000, FavoriteCount: 80,
			WordCount: 150000, Status: "ongoing", CreatedAt: now.Add(-time.Hour)},
		{ID: "n4", Title: "Letters Home", Author: "carol", Category: "romance",
			Tags: []string{"slice_of_life"}, Rating: 3.8, ViewCount: 300, FavoriteCount: 20,
			WordCount: 60000, Status: "ongoing", CreatedAt: now.Add(-24 * time.Hour)},
	}
}

type testAPI struct {
	mux http.Handler
}

func newTestAPI(t *testing.T, mwCfg *MiddlewareConfig) *testAPI {
	t.Helper()

	cat := catalog.NewMemoryCatalog(testNovels())
	inter := catalog.NewMemoryInteractions()
	inter.AddFavorite("u1", "n1")
	inter.AddFavorite("u2", "n1")
	inter.AddFavorite("u2", "n3")
	inter.AddHistory("u1", catalog.Interaction{ItemID: "n2", Progress: 0.95})

	st, err := store.Open("")
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	c := cache.New(time.Minute)
	t.Cleanup(c.Close)

	cfg := recommend.DefaultConfig()
	profiles := recommend.NewProfileBuilder(cat, inter, st)

	engine, err := recommend.NewEngine(recommend.Options{
		Config:        cfg,
		Catalog:       cat,
		Profiles:      profiles,
		Content:       signals.NewContentBased(),
		Collaborative: signals.NewCollaborative(inter, cfg.NeighborCap),
		Popularity:    signals.NewPopularity(),
		Reranker:      reranking.NewDiversity(),
		Loader:        cache.NewLoader(c),
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	processor := recommend.NewProcessor(cat, st, st, engine, nil)
	explainer := recommend.NewExplainer(cat, profiles, signals.NewContentBased(), signals.NewPopularity(), cfg.Content)

	if mwCfg == nil {
		mwCfg = &MiddlewareConfig{}
	}
	handler := NewHandler(engine, processor, explainer, st, st, cat)
	return &testAPI{mux: NewRouter(handler, NewMiddleware(mwCfg)).Setup()}
}

func (a *testAPI) do(t *testing.T, method, target, body string, header http.Header) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func TestAPI_Recommendations(t *testing.T) {
	a := newTestAPI(t, nil)

	rec, env := a.do(t, http.MethodGet, "/api/v1/recommendations?user_id=u1&limit=3", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if !env.Success {
		t.Fatalf("success = false: %+v", env.Error)
	}

	var resp recommend.Response
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if resp.Metadata.Algorithm != recommend.AlgorithmHybrid {
		t.Errorf("algorithm = %v, want hybrid", resp.Metadata.Algorithm)
	}
	if len(resp.Items) == 0 || len(resp.Items) > 3 {
		t.Errorf("len(items) = %d, want 1..3", len(resp.Items))
	}
	for _, it := range resp.Items {
		// u1 favorited n1 and read n2; both are excluded by default.
		if it.Item.ID == "n1" || it.Item.ID == "n2" {
			t.Errorf("item %s should be excluded for u1", it.Item.ID)
		}
	}
}

func TestAPI_RecommendationsAnonymous(t *testing.T) {
	a := newTestAPI(t, nil)

	rec, env := a.do(t, http.MethodGet, "/api/v1/recommendations", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp recommend.Response
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if resp.Metadata.Algorithm != recommend.AlgorithmColdStart {
		t.Errorf("algorithm = %v, want cold_start for anonymous callers", resp.Metadata.Algorithm)
	}
}

func TestAPI_RecommendationsBadParams(t *testing.T) {
	a := newTestAPI(t, nil)

	tests := []struct {
		name   string
		target string
	}{
		{"bad limit", "/api/v1/recommendations?limit=abc"},
		{"bad algorithm", "/api/v1/recommendations?algorithm=magic"},
		{"bad exclude_read", "/api/v1/recommendations?exclude_read=maybe"},
		{"bad diversity", "/api/v1/recommendations/diversity?diversity=1.5"},
		{"bad weight", "/api/v1/recommendations/content_based?w_category=heavy"},
		{"negative weight", "/api/v1/recommendations/content_based?w_category=-3"},
		{"oversized weight", "/api/v1/recommendations/content_based?w_rating=100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := a.do(t, http.MethodGet, tt.target, "", nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if env.Error == nil || env.Error.Code != ErrCodeBadRequest {
				t.Errorf("error = %+v, want BAD_REQUEST", env.Error)
			}
		})
	}
}

func TestAPI_SimilarNotFound(t *testing.T) {
	a := newTestAPI(t, nil)

	rec, env := a.do(t, http.MethodGet, "/api/v1/similar/ghost", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Errorf("error = %+v, want NOT_FOUND", env.Error)
	}
}

func TestAPI_Similar(t *testing.T) {
	a := newTestAPI(t, nil)

	rec, env := a.do(t, http.MethodGet, "/api/v1/similar/n1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp recommend.Response
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	for _, it := range resp.Items {
		if it.Item.ID == "n1" {
			t.Error("similar list contains the target itself")
		}
	}
}

func TestAPI_HotByCategory(t *testing.T) {
	a := newTestAPI(t, nil)

	rec, env := a.do(t, http.MethodGet, "/api/v1/category/fantasy", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp recommend.Response
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(resp.Items) == 0 {
		t.Fatal("no fantasy items returned")
	}
	for _, it := range resp.Items {
		if it.Item.Category != "fantasy" {
			t.Errorf("item %s category = %s, want fantasy", it.Item.ID, it.Item.Category)
		}
	}
}

func TestAPI_NewArrivals(t *testing.T) {
	a := newTestAPI(t, nil)

	rec, env := a.do(t, http.MethodGet, "/api/v1/new?limit=2", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp recommend.Response
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(resp.Items) != 2 || resp.Items[0].Item.ID != "n3" {
		ids := make([]string, len(resp.Items))
		for i, it := range resp.Items {
			ids[i] = it.Item.ID
		}
		t.Errorf("items = %v, want [n3 n4]", ids)
	}
}

func TestAPI_SubmitFeedback(t *testing.T) {
	a := newTestAPI(t, nil)

	rec, env := a.do(t, http.MethodPost, "/api/v1/feedback?user_id=u1",
		`{"item_id": "n3", "type": "like"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var ev recommend.FeedbackEvent
	if err := json.Unmarshal(env.Data, &ev); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if ev.ID == "" || ev.Type != recommend.FeedbackLike {
		t.Errorf("event = %+v, want a stored like", ev)
	}

	rec, env = a.do(t, http.MethodGet, "/api/v1/feedback?user_id=u1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d, want 200", rec.Code)
	}
	var events []recommend.FeedbackEvent
	if err := json.Unmarshal(env.Data, &events); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(events) != 1 || events[0].ID != ev.ID {
		t.Errorf("history = %v, want the submitted event", events)
	}
}

func TestAPI_SubmitFeedbackErrors(t *testing.T) {
	a := newTestAPI(t, nil)

	tests := []struct {
		name     string
		target   string
		body     string
		wantCode int
		wantErr  string
	}{
		{"anonymous", "/api/v1/feedback", `{"item_id": "n1", "type": "like"}`,
			http.StatusUnauthorized, ErrCodeUnauthorized},
		{"invalid json", "/api/v1/feedback?user_id=u1", `{not json`,
			http.StatusBadRequest, ErrCodeBadRequest},
		{"invalid type", "/api/v1/feedback?user_id=u1", `{"item_id": "n1", "type": "meh"}`,
			http.StatusBadRequest, ErrCodeValidationFailed},
		{"missing item", "/api/v1/feedback?user_id=u1", `{"type": "like"}`,
			http.StatusBadRequest, ErrCodeValidationFailed},
		{"unknown item", "/api/v1/feedback?user_id=u1", `{"item_id": "ghost", "type": "like"}`,
			http.StatusNotFound, ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := a.do(t, http.MethodPost, tt.target, tt.body, nil)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if env.Error == nil || env.Error.Code != tt.wantErr {
				t.Errorf("error = %+v, want %s", env.Error, tt.wantErr)
			}
		})
	}
}

func TestAPI_Preferences(t *testing.T) {
	a := newTestAPI(t, nil)

	// A user with no stored profile gets an empty one, not a 404.
	rec, env := a.do(t, http.MethodGet, "/api/v1/preferences?user_id=fresh", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var profile recommend.Profile
	if err := json.Unmarshal(env.Data, &profile); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if profile.UserID != "fresh" || !profile.IsEmpty() {
		t.Errorf("profile = %+v, want empty for fresh", profile)
	}

	rec, env = a.do(t, http.MethodPut, "/api/v1/preferences?user_id=u1", `{
		"preferred_categories": ["fantasy"],
		"exclude_categories": ["horror"],
		"min_rating": 3.5,
		"word_count": {"min": 50000, "max": 200000}
	}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(env.Data, &profile); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if profile.CategoryWeights["fantasy"] != 1.0 {
		t.Errorf("fantasy weight = %v, want seeded 1.0", profile.CategoryWeights["fantasy"])
	}
	if len(profile.ExcludeCategories) != 1 || profile.ExcludeCategories[0] != "horror" {
		t.Errorf("exclude categories = %v, want [horror]", profile.ExcludeCategories)
	}
	if profile.WordCount == nil || profile.WordCount.Min != 50000 {
		t.Errorf("word count = %+v, want min 50000", profile.WordCount)
	}
}

func TestAPI_PreferencesErrors(t *testing.T) {
	a := newTestAPI(t, nil)

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"rating above five", `{"min_rating": 9}`, http.StatusBadRequest},
		{"inverted word count", `{"word_count": {"min": 1000, "max": 10}}`, http.StatusBadRequest},
		{"invalid json", `oops`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := a.do(t, http.MethodPut, "/api/v1/preferences?user_id=u1", tt.body, nil)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}
}

func TestAPI_Refresh(t *testing.T) {
	a := newTestAPI(t, nil)

	// Warm the cache, then refresh drops the user's entries.
	if rec, _ := a.do(t, http.MethodGet, "/api/v1/recommendations?user_id=u1", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("warmup status = %d", rec.Code)
	}

	rec, env := a.do(t, http.MethodPost, "/api/v1/refresh?user_id=u1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var out map[string]int
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if out["invalidated"] == 0 {
		t.Error("invalidated = 0, want at least one cached list dropped")
	}

	if rec, _ := a.do(t, http.MethodPost, "/api/v1/refresh", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous refresh status = %d, want 401", rec.Code)
	}
}

func TestAPI_Reasons(t *testing.T) {
	a := newTestAPI(t, nil)

	rec, env := a.do(t, http.MethodGet, "/api/v1/reasons/n2?user_id=u1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var expl recommend.Explanation
	if err := json.Unmarshal(env.Data, &expl); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if expl.ItemID != "n2" || len(expl.Reasons) == 0 {
		t.Errorf("explanation = %+v, want reasons for n2", expl)
	}

	if rec, _ := a.do(t, http.MethodGet, "/api/v1/reasons/n2", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous reasons status = %d, want 401", rec.Code)
	}
}

func TestAPI_Health(t *testing.T) {
	a := newTestAPI(t, nil)

	rec, env := a.do(t, http.MethodGet, "/api/v1/health/live", "", nil)
	if rec.Code != http.StatusOK || !env.Success {
		t.Errorf("live status = %d success = %v, want 200 true", rec.Code, env.Success)
	}

	rec, env = a.do(t, http.MethodGet, "/api/v1/health/ready", "", nil)
	if rec.Code != http.StatusOK || !env.Success {
		t.Errorf("ready status = %d success = %v, want 200 true", rec.Code, env.Success)
	}
}

func TestAPI_Stats(t *testing.T) {
	a := newTestAPI(t, nil)

	rec, env := a.do(t, http.MethodGet, "/api/v1/stats", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var stats statsResponse
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if stats.CatalogSize != 4 {
		t.Errorf("catalog size = %d, want 4", stats.CatalogSize)
	}
}

func TestAPI_RequestIDAndSecurityHeaders(t *testing.T) {
	a := newTestAPI(t, nil)

	rec, _ := a.do(t, http.MethodGet, "/api/v1/health/live", "", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("X-Content-Type-Options header missing")
	}

	header := http.Header{}
	header.Set("X-Request-ID", "req-fixed-123")
	rec, _ = a.do(t, http.MethodGet, "/api/v1/health/live", "", header)
	if got := rec.Header().Get("X-Request-ID"); got != "req-fixed-123" {
		t.Errorf("X-Request-ID = %q, want the caller's ID echoed", got)
	}
}
