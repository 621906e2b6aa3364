// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reconstruct

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AxiomTrace/services/trace/cache"
	"github.com/AleutianAI/AxiomTrace/services/trace/quant"
)

// DefaultCacheSize is the number of results kept by a Cache.
const DefaultCacheSize = 512

// ResultFunc produces a result on a cache miss.
type ResultFunc func(ctx context.Context) (*Result, error)

// Cache memoizes reconstruction results by key.
//
// Description:
//
//	Concurrent misses for the same key share one computation. Errors are
//	not cached. Keys must identify both the term graph and the
//	instantiation, for example "<scenario digest>/<instantiation id>".
//
// Thread Safety: Safe for concurrent use.
type Cache struct {
	lru    *cache.LRU[string, *Result]
	flight singleflight.Group
}

// NewCache creates a result cache. Non-positive size means DefaultCacheSize.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{lru: cache.NewLRU[string, *Result](size)}
}

// Key builds the cache key of inst within the trace identified by traceKey.
func Key(traceKey string, inst *quant.Instantiation) string {
	return fmt.Sprintf("%s/%d", traceKey, inst.ID)
}

// GetOrCompute returns the cached result for key or computes it with fn.
func (c *Cache) GetOrCompute(ctx context.Context, key string, fn ResultFunc) (*Result, error) {
	if res, ok := c.lru.Get(key); ok {
		cacheLookups.WithLabelValues("hit").Inc()
		return res, nil
	}

	v, err, shared := c.flight.Do(key, func() (interface{}, error) {
		start := time.Now()
		res, err := fn(ctx)
		if err != nil {
			searchDuration.WithLabelValues(statusError).Observe(time.Since(start).Seconds())
			return nil, err
		}
		status := statusAccepted
		if len(res.Hypotheses) == 0 {
			status = statusRejected
		}
		searchDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
		if c.lru.Add(key, res) {
			cacheEvictions.Inc()
		}
		return res, nil
	})
	if shared {
		cacheLookups.WithLabelValues("shared").Inc()
	} else {
		cacheLookups.WithLabelValues("miss").Inc()
	}
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// Reconstruct is GetOrCompute around r.Reconstruct.
func (c *Cache) Reconstruct(ctx context.Context, r *Reconstructor, traceKey string, inst *quant.Instantiation) (*Result, error) {
	if inst == nil {
		return nil, ErrNilInstantiation
	}
	return c.GetOrCompute(ctx, Key(traceKey, inst), func(ctx context.Context) (*Result, error) {
		return r.Reconstruct(ctx, inst)
	})
}

// Invalidate drops the cached result for key.
func (c *Cache) Invalidate(key string) bool {
	return c.lru.Remove(key)
}

// Purge drops every cached result.
func (c *Cache) Purge() {
	c.lru.Purge()
}

// Stats returns the cache counters.
func (c *Cache) Stats() cache.Stats {
	return c.lru.Stats()
}
