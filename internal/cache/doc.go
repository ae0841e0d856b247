// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

// Package cache provides the read-through cache in front of the similarity store.
//
// Two backends implement Backend:
//
//   - MemoryBackend: a process-local LRU with TTL
//   - RedisBackend: a shared go-redis cache, for several query replicas
//
// SimilarityCache wraps a store and caches the per-event similarity lists
// that every recommendation query reads. Writes through SimilarityCache
// invalidate both endpoints of the pair.
//
//	backend := cache.NewMemoryBackend(10000, time.Minute)
//	sims := cache.NewSimilarityCache(db, backend, time.Minute, "eventrec:")
//	list, err := sims.SimilaritiesByEvent(ctx, 42)
package cache
