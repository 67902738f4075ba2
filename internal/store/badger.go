// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

// Package store persists the service's own durable state in BadgerDB: stored
// preference profiles and the append-only feedback log. Catalog data is never
// stored here; it belongs to the upstream platform.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/mliang5/novelrec/internal/logging"
	"github.com/mliang5/novelrec/internal/recommend"
)

// Key prefixes. Profiles are one key per user; feedback events are keyed by
// user plus an inverted timestamp so prefix iteration yields newest first.
const (
	profilePrefix  = "profile:"
	feedbackPrefix = "feedback:"
)

// Store implements recommend.PreferenceStore and recommend.FeedbackLog on a
// shared BadgerDB instance.
type Store struct {
	db     *badger.DB
	logger zerolog.Logger
}

// Compile-time interface compliance checks.
var (
	_ recommend.PreferenceStore = (*Store)(nil)
	_ recommend.FeedbackLog     = (*Store)(nil)
)

// Open opens (or creates) the store at path. An empty path opens an
// in-memory instance, used by tests and ephemeral deployments.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Suppress BadgerDB logs
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logging.WithComponent("store"),
	}
	s.logger.Info().Str("path", path).Bool("in_memory", path == "").Msg("preference store opened")
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunGC triggers one value-log garbage collection cycle. Callers run it
// periodically; badger.ErrNoRewrite (nothing to collect) is not an error.
func (s *Store) RunGC() error {
	err := s.db.RunValueLogGC(0.5)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		return fmt.Errorf("badger gc: %w", err)
	}
	return nil
}

// Get implements recommend.PreferenceStore.
func (s *Store) Get(_ context.Context, userID string) (*recommend.Profile, error) {
	var profile recommend.Profile

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(profileKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &profile)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, recommend.ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &profile, nil
}

// Apply implements recommend.PreferenceStore. The read-modify-write runs in
// one transaction, so concurrent patches to the same user serialize through
// badger's conflict detection.
func (s *Store) Apply(_ context.Context, userID string, patch *recommend.Patch) error {
	if patch == nil || patch.IsZero() {
		return nil
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		profile := recommend.Profile{UserID: userID}

		item, err := txn.Get(profileKey(userID))
		switch {
		case err == nil:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &profile)
			}); err != nil {
				return fmt.Errorf("decode profile: %w", err)
			}
		case errors.Is(err, badger.ErrKeyNotFound):
			// First write for this user.
		default:
			return err
		}

		applyPatch(&profile, patch)
		profile.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(&profile)
		if err != nil {
			return fmt.Errorf("encode profile: %w", err)
		}
		return txn.Set(profileKey(userID), data)
	})
	if err != nil {
		return fmt.Errorf("apply profile patch: %w", err)
	}
	return nil
}

// Append implements recommend.FeedbackLog.
func (s *Store) Append(_ context.Context, ev *recommend.FeedbackEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode feedback event: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(feedbackKey(ev), data)
	})
	if err != nil {
		return fmt.Errorf("append feedback event: %w", err)
	}
	return nil
}

// ListByUser implements recommend.FeedbackLog. Events come back newest first.
func (s *Store) ListByUser(_ context.Context, userID string, limit int) ([]recommend.FeedbackEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	prefix := []byte(feedbackPrefix + userID + ":")
	out := make([]recommend.FeedbackEvent, 0, limit)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			var ev recommend.FeedbackEvent
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ev)
			}); err != nil {
				return err
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list feedback events: %w", err)
	}
	return out, nil
}

// applyPatch folds a patch into a stored profile. Weight deltas clamp at
// zero; excluded items append without duplicates; the explicit block replaces
// wholesale.
func applyPatch(p *recommend.Profile, patch *recommend.Patch) {
	p.CategoryWeights = addDeltas(p.CategoryWeights, patch.CategoryDeltas)
	p.TagWeights = addDeltas(p.TagWeights, patch.TagDeltas)
	p.AuthorWeights = addDeltas(p.AuthorWeights, patch.AuthorDeltas)

	for _, id := range patch.ExcludeItems {
		if !containsStr(p.ExcludedItems, id) {
			p.ExcludedItems = append(p.ExcludedItems, id)
		}
	}

	if patch.Explicit != nil {
		recommend.ApplyExplicit(p, patch.Explicit, time.Now().UTC())
	}
}

func addDeltas(weights, deltas map[string]float64) map[string]float64 {
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

func containsStr(in []string, s string) bool {
	for _, v := range in {
		if v == s {
			return true
		}
	}
	return false
}

func profileKey(userID string) []byte {
	return []byte(profilePrefix + userID)
}

// feedbackKey inverts the timestamp so lexicographic prefix order is newest
// first, then appends the event ID for uniqueness.
func feedbackKey(ev *recommend.FeedbackEvent) []byte {
	inverted := ^uint64(0) - uint64(ev.CreatedAt.UnixNano())
	return []byte(fmt.Sprintf("%s%s:%020d:%s", feedbackPrefix, ev.UserID, inverted, ev.ID))
}
