// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package recommend

import (
	"context"
	"sync"
	"time"

	"github.com/mliang5/novelrec/internal/catalog"
)

// memPrefs is an in-memory PreferenceStore mirroring the badger store's patch
// semantics.
type memPrefs struct {
	mu       sync.Mutex
	profiles map[string]*Profile
}

func newMemPrefs() *memPrefs {
	return &memPrefs{profiles: make(map[string]*Profile)}
}

func (m *memPrefs) put(p *Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = p
}

func (m *memPrefs) Get(_ context.Context, userID string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return cloneProfile(p), nil
}

func (m *memPrefs) Apply(_ context.Context, userID string, patch *Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if patch == nil || patch.IsZero() {
		return nil
	}
	p, ok := m.profiles[userID]
	if !ok {
		p = &Profile{UserID: userID}
		m.profiles[userID] = p
	}
	p.CategoryWeights = mergeDeltas(p.CategoryWeights, patch.CategoryDeltas)
	p.TagWeights = mergeDeltas(p.TagWeights, patch.TagDeltas)
	p.AuthorWeights = mergeDeltas(p.AuthorWeights, patch.AuthorDeltas)
	for _, id := range patch.ExcludeItems {
		present := false
		for _, v := range p.ExcludedItems {
			if v == id {
				present = true
				break
			}
		}
		if !present {
			p.ExcludedItems = append(p.ExcludedItems, id)
		}
	}
	if patch.Explicit != nil {
		ApplyExplicit(p, patch.Explicit, time.Now().UTC())
	}
	return nil
}

func mergeDeltas(weights, deltas map[string]float64) map[string]float64 {
	if len(deltas) == 0 {
		return weights
	}
	if weights == nil {
		weights = make(map[string]float64, len(deltas))
	}
	for k, d := range deltas {
		v := weights[k] + d
		if v <= 0 {
			delete(weights, k)
			continue
		}
		weights[k] = v
	}
	return weights
}

// memLog is an in-memory FeedbackLog, newest first like the badger log.
type memLog struct {
	mu     sync.Mutex
	events []FeedbackEvent
	err    error
}

func (l *memLog) Append(_ context.Context, ev *FeedbackEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return l.err
	}
	l.events = append([]FeedbackEvent{*ev}, l.events...)
	return nil
}

func (l *memLog) ListByUser(_ context.Context, userID string, limit int) ([]FeedbackEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]FeedbackEvent, 0, limit)
	for _, ev := range l.events {
		if ev.UserID != userID {
			continue
		}
		out = append(out, ev)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// stubSignal returns a fixed item list, or a fixed error, and records the last
// request it saw.
type stubSignal struct {
	name  string
	algo  Algorithm
	items []ScoredItem
	err   error

	mu     sync.Mutex
	gotReq *SignalRequest
}

func (s *stubSignal) Name() string         { return s.name }
func (s *stubSignal) Algorithm() Algorithm { return s.algo }

func (s *stubSignal) Score(_ context.Context, req *SignalRequest) ([]ScoredItem, error) {
	s.mu.Lock()
	s.gotReq = req
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	out := make([]ScoredItem, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *stubSignal) lastReq() *SignalRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gotReq
}

// echoSignal scores every candidate it receives, in pool order.
type echoSignal struct {
	stubSignal
}

func (s *echoSignal) Score(_ context.Context, req *SignalRequest) ([]ScoredItem, error) {
	s.mu.Lock()
	s.gotReq = req
	s.mu.Unlock()

	out := make([]ScoredItem, 0, len(req.Candidates))
	for i, n := range req.Candidates {
		out = append(out, ScoredItem{
			Item:      n,
			Score:     1 - float64(i)*0.01,
			Algorithm: s.algo,
		})
	}
	return out, nil
}

// stubSimilarity adds item-to-item similarity to a stub content signal.
type stubSimilarity struct {
	stubSignal
	simItems []ScoredItem

	simMu     sync.Mutex
	gotTarget *catalog.Novel
}

func (s *stubSimilarity) SimilarTo(_ context.Context, target *catalog.Novel, _ []catalog.Novel, _ ContentWeights) ([]ScoredItem, error) {
	s.simMu.Lock()
	s.gotTarget = target
	s.simMu.Unlock()

	out := make([]ScoredItem, len(s.simItems))
	copy(out, s.simItems)
	return out, nil
}

// stubTrending adds cutoff-aware scoring to a stub popularity signal.
type stubTrending struct {
	stubSignal

	cutMu     sync.Mutex
	gotCutoff time.Time
}

func (s *stubTrending) TopSince(_ context.Context, _ []catalog.Novel, cutoff time.Time) ([]ScoredItem, error) {
	s.cutMu.Lock()
	s.gotCutoff = cutoff
	s.cutMu.Unlock()

	out := make([]ScoredItem, len(s.items))
	copy(out, s.items)
	return out, nil
}

func novel(id, category, author string, views int64) catalog.Novel {
	return catalog.Novel{
		ID:        id,
		Title:     "Novel " + id,
		Author:    author,
		Category:  category,
		Tags:      []string{category},
		Rating:    4.0,
		ViewCount: views,
	}
}

func scored(n catalog.Novel, score float64, algo Algorithm, reasons ...string) ScoredItem {
	return ScoredItem{Item: n, Score: score, Algorithm: algo, Reasons: reasons}
}

func testCatalog() (*catalog.MemoryCatalog, *catalog.MemoryInteractions, []catalog.Novel) {
	novels := []catalog.Novel{
		novel("n1", "fantasy", "alice", 100),
		novel("n2", "fantasy", "alice", 50),
		novel("n3", "scifi", "bob", 200),
		novel("n4", "romance", "carol", 10),
	}
	cat := catalog.NewMemoryCatalog(novels)
	inter := catalog.NewMemoryInteractions()
	return cat, inter, novels
}
