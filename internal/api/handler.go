// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/eventrec/internal/aggregator"
	"github.com/tomtom215/eventrec/internal/eventprocessor"
	"github.com/tomtom215/eventrec/internal/models"
)

// Recommender answers recommendation queries. Implemented by recommend.Engine.
type Recommender interface {
	GetSimilarEvents(ctx context.Context, eventID, userID int64, maxResults int) ([]models.RecommendedEvent, error)
	GetInteractionsCount(ctx context.Context, eventIDs []int64) ([]models.RecommendedEvent, error)
	GetRecommendationsForUser(ctx context.Context, userID int64, maxResults int) ([]models.RecommendedEvent, error)
}

// ActionCollector publishes collected actions. Implemented by
// eventprocessor.Pipeline.
type ActionCollector interface {
	PublishAction(ctx context.Context, action models.UserAction) (models.UserAction, error)
}

// ModelInspector exposes the accumulator for diagnostics. Implemented by
// aggregator.Accumulator.
type ModelInspector interface {
	Similarity(eventA, eventB int64) float64
	Stats() aggregator.Stats
}

// PipelineInspector reports handler progress. Implemented by
// eventprocessor.Pipeline.
type PipelineInspector interface {
	IsRunning() bool
	Stats() map[string]eventprocessor.HandlerStats
}

// SimilarityFeed streams similarity updates over a WebSocket. Implemented by
// websocket.Hub.
type SimilarityFeed interface {
	Serve(w http.ResponseWriter, r *http.Request, eventIDs []int64) error
}

// HealthChecker is a dependency the health endpoint pings.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Deps wires a Handler. Only Recommender is required; a nil Collector
// disables POST /api/v1/actions, a nil Model disables the diagnostics
// endpoints and a nil Feed disables the similarity stream.
type Deps struct {
	Recommender Recommender
	Collector   ActionCollector
	Model       ModelInspector
	Pipeline    PipelineInspector
	Feed        SimilarityFeed

	// HealthChecks are pinged by the health endpoint, keyed by component.
	HealthChecks map[string]HealthChecker

	Version string
}

// Handler holds the HTTP handlers.
type Handler struct {
	recommender  Recommender
	collector    ActionCollector
	model        ModelInspector
	pipeline     PipelineInspector
	feed         SimilarityFeed
	healthChecks map[string]HealthChecker
	version      string

	startTime time.Time
	now       func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(deps Deps) (*Handler, error) {
	if deps.Recommender == nil {
		return nil, ErrRecommenderRequired
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	return &Handler{
		recommender:  deps.Recommender,
		collector:    deps.Collector,
		model:        deps.Model,
		pipeline:     deps.Pipeline,
		feed:         deps.Feed,
		healthChecks: deps.HealthChecks,
		version:      version,
		startTime:    time.Now(),
		now:          time.Now,
	}, nil
}
