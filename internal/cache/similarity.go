// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package cache

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/eventrec/internal/logging"
	"github.com/tomtom215/eventrec/internal/metrics"
	"github.com/tomtom215/eventrec/internal/models"
)

// SimilarityStore is the subset of the similarity store the cache wraps.
type SimilarityStore interface {
	SimilaritiesByEvent(ctx context.Context, eventID int64) ([]models.EventSimilarity, error)
	UpsertSimilarity(ctx context.Context, s models.EventSimilarity) (bool, error)
}

// generationStripes is the number of invalidation counters events hash onto.
const generationStripes = 256

// SimilarityCache is a read-through cache of per-event similarity lists.
// Backend failures are logged and fall through to the store.
//
// Every invalidation bumps the event's generation. A reader only caches a
// list loaded under an unchanged generation, so a load racing an upsert
// cannot leave the pre-upsert list behind for a full TTL.
type SimilarityCache struct {
	store   SimilarityStore
	backend Backend
	ttl     time.Duration
	prefix  string

	generations [generationStripes]atomic.Uint64
}

// NewSimilarityCache wraps store with backend.
func NewSimilarityCache(store SimilarityStore, backend Backend, ttl time.Duration, prefix string) *SimilarityCache {
	return &SimilarityCache{store: store, backend: backend, ttl: ttl, prefix: prefix}
}

func (c *SimilarityCache) key(eventID int64) string {
	return c.prefix + "sim:" + strconv.FormatInt(eventID, 10)
}

func (c *SimilarityCache) generation(eventID int64) *atomic.Uint64 {
	return &c.generations[uint64(eventID)%generationStripes]
}

// SimilaritiesByEvent returns the cached list for eventID, loading it from
// the store on a miss.
func (c *SimilarityCache) SimilaritiesByEvent(ctx context.Context, eventID int64) ([]models.EventSimilarity, error) {
	key := c.key(eventID)
	gen := c.generation(eventID)
	seen := gen.Load()

	data, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("backend", c.backend.Name()).Str("key", key).Msg("cache get failed")
	}
	if ok {
		var sims []models.EventSimilarity
		if err := json.Unmarshal(data, &sims); err == nil {
			metrics.RecordCacheLookup(c.backend.Name(), true)
			return sims, nil
		}
		logging.Ctx(ctx).Warn().Str("key", key).Msg("discarding undecodable cache entry")
	}
	metrics.RecordCacheLookup(c.backend.Name(), false)

	sims, err := c.store.SimilaritiesByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	c.fill(ctx, key, gen, seen, sims)
	return sims, nil
}

// fill caches sims unless key was invalidated after generation seen was
// read. An invalidation between the check and the Set is caught by the
// second check.
func (c *SimilarityCache) fill(ctx context.Context, key string, gen *atomic.Uint64, seen uint64, sims []models.EventSimilarity) {
	if gen.Load() != seen {
		return
	}
	data, err := json.Marshal(sims)
	if err != nil {
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("backend", c.backend.Name()).Str("key", key).Msg("cache set failed")
		return
	}
	if gen.Load() != seen {
		if err := c.backend.Delete(ctx, key); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("backend", c.backend.Name()).Str("key", key).Msg("cache invalidation failed")
		}
	}
}

// UpsertSimilarity writes through to the store and invalidates both endpoints.
func (c *SimilarityCache) UpsertSimilarity(ctx context.Context, s models.EventSimilarity) (bool, error) {
	written, err := c.store.UpsertSimilarity(ctx, s)
	if err != nil || !written {
		return written, err
	}
	c.Invalidate(ctx, s.EventA, s.EventB)
	return true, nil
}

// Invalidate drops the cached lists of the given events.
func (c *SimilarityCache) Invalidate(ctx context.Context, eventIDs ...int64) {
	keys := make([]string, 0, len(eventIDs))
	for _, id := range eventIDs {
		c.generation(id).Add(1)
		keys = append(keys, c.key(id))
	}
	if err := c.backend.Delete(ctx, keys...); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("backend", c.backend.Name()).Msg("cache invalidation failed")
	}
}
