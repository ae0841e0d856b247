// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package state

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/eventrec/internal/logging"
)

// Compactor periodically runs Badger value log GC on a Store.
type Compactor struct {
	store    *Store
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	lastRun time.Time
}

// NewCompactor creates a compactor using the store's GC interval.
func NewCompactor(store *Store) *Compactor {
	return &Compactor{store: store, interval: store.config.GCInterval}
}

// Start begins the background loop.
func (c *Compactor) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.running = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run()

	logging.Info().Dur("interval", c.interval).Msg("state compactor started")
	return nil
}

// Stop stops the loop and waits for it to exit.
func (c *Compactor) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.cancel()
	c.running = false
	c.mu.Unlock()

	c.wg.Wait()
	logging.Info().Msg("state compactor stopped")
}

// IsRunning reports whether the loop is active.
func (c *Compactor) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// LastRun returns when GC last completed, or the zero time.
func (c *Compactor) LastRun() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRun
}

func (c *Compactor) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.compact()
		}
	}
}

func (c *Compactor) compact() {
	start := time.Now()
	if err := c.store.RunGC(); err != nil {
		logging.Error().Err(err).Msg("state compaction GC error")
		return
	}
	c.mu.Lock()
	c.lastRun = time.Now()
	c.mu.Unlock()
	logging.Debug().Dur("duration", time.Since(start)).Msg("state compaction completed")
}
