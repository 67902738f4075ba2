// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader wraps a Cache with single-flight recomputation: concurrent requests
// for the same key share one compute, and the computed value is stored even
// if the originating request is cancelled mid-flight.
type Loader struct {
	cache *Cache
	group singleflight.Group

	mu      sync.Mutex
	flights map[string]*flightState
}

// flightState tracks computations in progress for one key. gen is bumped
// when the key is forgotten, so a compute started before the forget resolves
// as stale and skips the cache write.
type flightState struct {
	active int
	gen    int
}

// NewLoader creates a Loader over the given cache.
func NewLoader(c *Cache) *Loader {
	return &Loader{
		cache:   c,
		flights: make(map[string]*flightState),
	}
}

// Cache returns the underlying cache.
func (l *Loader) Cache() *Cache { return l.cache }

// GetOrCompute returns the cached value for key, or runs compute exactly once
// across concurrent callers and caches the result with the given TTL.
//
// The compute function receives a context detached from the caller's
// cancellation: a client disconnect must not waste work other waiters or the
// cache could use. The caller's context is still honored while waiting, so a
// cancelled caller returns early without cancelling the shared compute.
//
// The boolean result reports whether the value came from cache.
func (l *Loader) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) (interface{}, error)) (interface{}, bool, error) {
	if v, ok := l.cache.Get(key); ok {
		return v, true, nil
	}

	ch := l.group.DoChan(key, func() (interface{}, error) {
		gen := l.beginFlight(key)
		v, err := compute(context.WithoutCancel(ctx))
		l.endFlight(key, gen, func() {
			if err == nil {
				l.cache.SetWithTTL(key, v, ttl)
			}
		})
		return v, err
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Forget drops any in-flight compute for key so the next request recomputes.
// Current waiters still receive the in-flight result, but it is not cached.
func (l *Loader) Forget(key string) {
	l.mu.Lock()
	if fs, ok := l.flights[key]; ok {
		fs.gen++
	}
	l.mu.Unlock()
	l.group.Forget(key)
}

// ForgetPrefix abandons every in-flight compute whose key starts with prefix
// and returns the number of flights abandoned. Used on invalidation so a
// computation racing the invalidating write cannot re-cache a stale list.
func (l *Loader) ForgetPrefix(prefix string) int {
	l.mu.Lock()
	var keys []string
	for k, fs := range l.flights {
		if strings.HasPrefix(k, prefix) {
			fs.gen++
			keys = append(keys, k)
		}
	}
	l.mu.Unlock()

	for _, k := range keys {
		l.group.Forget(k)
	}
	return len(keys)
}

func (l *Loader) beginFlight(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	fs, ok := l.flights[key]
	if !ok {
		fs = &flightState{}
		l.flights[key] = fs
	}
	fs.active++
	return fs.gen
}

// endFlight runs store while the flight is still registered as fresh, then
// drops the tracking entry once the last compute for the key finishes. The
// store runs under the loader lock so a concurrent forget-then-delete cannot
// interleave between the freshness check and the cache write.
func (l *Loader) endFlight(key string, gen int, store func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fs, ok := l.flights[key]
	if !ok {
		return
	}
	fs.active--
	if fs.gen == gen {
		store()
	}
	if fs.active <= 0 {
		delete(l.flights, key)
	}
}
