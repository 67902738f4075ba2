// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package services

import (
	"context"
	"time"

	"github.com/mliang5/novelrec/internal/logging"
)

// GCStore is the maintenance surface of the preference store.
type GCStore interface {
	RunGC() error
}

// StoreGCService periodically runs BadgerDB value-log garbage collection.
// GC failures are logged and retried on the next tick rather than crashing
// the service.
type StoreGCService struct {
	store    GCStore
	interval time.Duration
}

// NewStoreGCService creates the garbage collection service.
func NewStoreGCService(store GCStore, interval time.Duration) *StoreGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &StoreGCService{
		store:    store,
		interval: interval,
	}
}

// Serve implements suture.Service.
func (s *StoreGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.store.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("Store garbage collection failed")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// String implements fmt.Stringer; suture uses it in log messages.
func (s *StoreGCService) String() string {
	return "store-gc"
}
