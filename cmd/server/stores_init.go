// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/eventrec/internal/aggregator"
	"github.com/tomtom215/eventrec/internal/cache"
	"github.com/tomtom215/eventrec/internal/config"
	"github.com/tomtom215/eventrec/internal/database"
	"github.com/tomtom215/eventrec/internal/eventprocessor"
	"github.com/tomtom215/eventrec/internal/logging"
	"github.com/tomtom215/eventrec/internal/metrics"
	"github.com/tomtom215/eventrec/internal/recommend"
	"github.com/tomtom215/eventrec/internal/state"
)

// StoreComponents holds the data layer: the DuckDB stores, the optional
// Badger state store, the accumulator and the similarity read path.
type StoreComponents struct {
	db          *database.DB
	state       *state.Store
	accumulator *aggregator.Accumulator
	simCache    *cache.SimilarityCache
	backend     cache.Backend
}

// initStores opens every store and restores the accumulator. On error
// anything already opened is closed.
func initStores(ctx context.Context, cfg *config.Config) (*StoreComponents, error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	c := &StoreComponents{
		db:          db,
		accumulator: aggregator.NewAccumulator(logging.WithComponent("accumulator")),
	}

	if cfg.State.Enabled {
		store, err := state.Open(stateConfig(cfg.State))
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("open state store: %w", err)
		}
		c.state = store

		snap, err := store.Load(ctx)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("load accumulator state: %w", err)
		}
		c.accumulator.Restore(snap)
		stats := c.accumulator.Stats()
		metrics.RecordAccumulatorSize(stats.Events, stats.Pairs)
		logging.Info().
			Int("events", stats.Events).
			Int("users", stats.Users).
			Int("pairs", stats.Pairs).
			Msg("accumulator restored")
	} else {
		logging.Info().Msg("State store disabled (STATE_ENABLED=false), accumulator starts empty")
	}

	backend, err := newCacheBackend(ctx, cfg.Cache)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	if backend != nil {
		c.backend = backend
		c.simCache = cache.NewSimilarityCache(db, backend, cfg.Cache.TTL, cfg.Cache.KeyPrefix)
		logging.Info().
			Str("backend", backend.Name()).
			Dur("ttl", cfg.Cache.TTL).
			Msg("Similarity cache enabled")
	}

	return c, nil
}

func stateConfig(cfg config.StateConfig) state.Config {
	return state.Config{
		Path:       cfg.Path,
		SyncWrites: cfg.SyncWrites,
		GCInterval: cfg.GCInterval,
		GCRatio:    cfg.GCRatio,
	}
}

// newCacheBackend returns nil for the none backend.
func newCacheBackend(ctx context.Context, cfg config.CacheConfig) (cache.Backend, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "none":
		return nil, nil
	case "memory":
		return cache.NewMemoryBackend(cfg.Capacity, cfg.TTL), nil
	case "redis":
		rb, err := cache.NewRedisBackend(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect cache: %w", err)
		}
		return rb, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// similarityStore is the read path used by queries and the write path used
// by the analyzer. With a cache both go through it so upserts invalidate.
func (c *StoreComponents) similarityStore() cache.SimilarityStore {
	if c.simCache != nil {
		return c.simCache
	}
	return c.db
}

// pipelineDeps returns the pipeline's stores. State is left unset when the
// state store is disabled so the handler sees a nil interface.
func (c *StoreComponents) pipelineDeps() eventprocessor.PipelineDeps {
	deps := eventprocessor.PipelineDeps{
		Accumulator:  c.accumulator,
		Actions:      c.db,
		Similarities: c.similarityStore(),
	}
	if c.state != nil {
		deps.State = c.state
	}
	return deps
}

// newEngine builds the recommendation engine over the stores.
func (c *StoreComponents) newEngine(cfg *config.Config) (*recommend.Engine, error) {
	engineCfg := recommend.DefaultConfig()
	if cfg.Recommend.MaxResultsLimit > 0 {
		engineCfg.MaxResultsLimit = cfg.Recommend.MaxResultsLimit
	}
	if cfg.Recommend.MaxEventIDs > 0 {
		engineCfg.MaxEventIDs = cfg.Recommend.MaxEventIDs
	}
	if cfg.Recommend.QueryTimeout > 0 {
		engineCfg.QueryTimeout = cfg.Recommend.QueryTimeout
	}

	engine, err := recommend.NewEngine(engineCfg, c.db, c.similarityStore(), logging.WithComponent("recommend"))
	if err != nil {
		return nil, fmt.Errorf("create recommendation engine: %w", err)
	}
	logging.Info().
		Int("max_results_limit", engineCfg.MaxResultsLimit).
		Int("max_event_ids", engineCfg.MaxEventIDs).
		Dur("query_timeout", engineCfg.QueryTimeout).
		Msg("Recommendation engine initialized")
	return engine, nil
}

// Close releases every opened store.
func (c *StoreComponents) Close() error {
	var errs []error
	if c.backend != nil {
		if err := c.backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if c.state != nil {
		if err := c.state.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close state store: %w", err))
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
