// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package recommend

import (
	"fmt"
	"time"
)

// Config bounds query shapes and duration.
type Config struct {
	// MaxResultsLimit is the largest accepted maxResults.
	MaxResultsLimit int `json:"max_results_limit"`

	// MaxEventIDs is the largest accepted GetInteractionsCount request.
	MaxEventIDs int `json:"max_event_ids"`

	// QueryTimeout caps each query. Zero leaves the caller's deadline alone.
	QueryTimeout time.Duration `json:"query_timeout"`

	// Concurrency bounds parallel store lookups within one query.
	Concurrency int `json:"concurrency"`
}

// DefaultConfig returns the default query limits.
func DefaultConfig() *Config {
	return &Config{
		MaxResultsLimit: 100,
		MaxEventIDs:     1000,
		QueryTimeout:    10 * time.Second,
		Concurrency:     8,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxResultsLimit < 1 {
		return fmt.Errorf("max_results_limit must be positive, got %d", c.MaxResultsLimit)
	}
	if c.MaxEventIDs < 1 {
		return fmt.Errorf("max_event_ids must be positive, got %d", c.MaxEventIDs)
	}
	if c.QueryTimeout < 0 {
		return fmt.Errorf("query_timeout must be non-negative, got %v", c.QueryTimeout)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	return nil
}
