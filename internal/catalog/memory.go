// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package catalog

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/goccy/go-json"
)

// MemoryCatalog is an in-memory Catalog for standalone mode and tests.
type MemoryCatalog struct {
	mu     sync.RWMutex
	novels map[string]Novel
	order  []string
}

// NewMemoryCatalog creates a catalog holding the given novels.
func NewMemoryCatalog(novels []Novel) *MemoryCatalog {
	c := &MemoryCatalog{
		novels: make(map[string]Novel, len(novels)),
		order:  make([]string, 0, len(novels)),
	}
	for _, n := range novels {
		if _, ok := c.novels[n.ID]; !ok {
			c.order = append(c.order, n.ID)
		}
		c.novels[n.ID] = n
	}
	return c
}

// Get implements Catalog.
func (c *MemoryCatalog) Get(_ context.Context, id string) (*Novel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n, ok := c.novels[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &n, nil
}

// List implements Catalog. Novels are returned in insertion order so that
// downstream tie-breaking stays deterministic.
func (c *MemoryCatalog) List(_ context.Context) ([]Novel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Novel, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.novels[id])
	}
	return out, nil
}

// Upsert adds or replaces a novel.
func (c *MemoryCatalog) Upsert(n Novel) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.novels[n.ID]; !ok {
		c.order = append(c.order, n.ID)
	}
	c.novels[n.ID] = n
}

// MemoryInteractions is an in-memory InteractionStore.
type MemoryInteractions struct {
	mu        sync.RWMutex
	favorites map[string][]string     // userID -> itemIDs
	history   map[string][]Interaction // userID -> interactions
	favUsers  map[string][]string     // itemID -> userIDs
}

// NewMemoryInteractions creates an empty interaction store.
func NewMemoryInteractions() *MemoryInteractions {
	return &MemoryInteractions{
		favorites: make(map[string][]string),
		history:   make(map[string][]Interaction),
		favUsers:  make(map[string][]string),
	}
}

// AddFavorite records that userID favorited itemID.
func (s *MemoryInteractions) AddFavorite(userID, itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.favorites[userID] {
		if id == itemID {
			return
		}
	}
	s.favorites[userID] = append(s.favorites[userID], itemID)
	s.favUsers[itemID] = append(s.favUsers[itemID], userID)
}

// AddHistory appends a reading-history entry for userID.
func (s *MemoryInteractions) AddHistory(userID string, it Interaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[userID] = append(s.history[userID], it)
}

// Favorites implements InteractionStore.
func (s *MemoryInteractions) Favorites(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.favorites[userID]))
	copy(out, s.favorites[userID])
	return out, nil
}

// History implements InteractionStore.
func (s *MemoryInteractions) History(_ context.Context, userID string) ([]Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Interaction, len(s.history[userID]))
	copy(out, s.history[userID])
	return out, nil
}

// FavoritedBy implements InteractionStore.
func (s *MemoryInteractions) FavoritedBy(_ context.Context, itemID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.favUsers[itemID]))
	copy(out, s.favUsers[itemID])
	return out, nil
}

// Seed is the JSON schema of a standalone-mode fixture file.
type Seed struct {
	Novels    []Novel `json:"novels"`
	Favorites []struct {
		UserID string `json:"user_id"`
		ItemID string `json:"item_id"`
	} `json:"favorites"`
	History []struct {
		UserID      string      `json:"user_id"`
		Interaction Interaction `json:"interaction"`
	} `json:"history"`
}

// LoadSeed reads a fixture file and builds in-memory stores from it.
func LoadSeed(path string) (*MemoryCatalog, *MemoryInteractions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, nil, fmt.Errorf("parse seed file: %w", err)
	}

	cat := NewMemoryCatalog(seed.Novels)
	inter := NewMemoryInteractions()
	for _, f := range seed.Favorites {
		inter.AddFavorite(f.UserID, f.ItemID)
	}
	for _, h := range seed.History {
		inter.AddHistory(h.UserID, h.Interaction)
	}
	return cat, inter, nil
}
