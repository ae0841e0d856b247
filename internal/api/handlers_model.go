// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/eventrec/internal/aggregator"
	"github.com/tomtom215/eventrec/internal/eventprocessor"
	"github.com/tomtom215/eventrec/internal/logging"
	"github.com/tomtom215/eventrec/internal/models"
)

// PairSimilarity is the body of GET /api/v1/similarity/{eventA}/{eventB}.
type PairSimilarity struct {
	EventA int64   `json:"event_a"`
	EventB int64   `json:"event_b"`
	Score  float64 `json:"score"`
}

// ModelStats is the body of GET /api/v1/model/stats.
type ModelStats struct {
	Accumulator     aggregator.Stats                        `json:"accumulator"`
	PipelineRunning bool                                    `json:"pipeline_running"`
	Handlers        map[string]eventprocessor.HandlerStats `json:"handlers,omitempty"`
}

// Similarity handles GET /api/v1/similarity/{eventA}/{eventB}. The pair is
// reported in canonical order and an unknown pair scores 0.
func (h *Handler) Similarity(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if h.model == nil {
		respondError(w, r, http.StatusNotImplemented, CodeNotImplemented, "similarity model is not available", nil)
		return
	}

	a, err := pathInt64(r, "eventA")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeInvalidParameter, err.Error(), nil)
		return
	}
	b, err := pathInt64(r, "eventB")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeInvalidParameter, err.Error(), nil)
		return
	}

	pair := models.CanonicalPair(a, b)
	respondData(w, http.StatusOK, PairSimilarity{
		EventA: pair.A,
		EventB: pair.B,
		Score:  h.model.Similarity(a, b),
	}, start)
}

// ModelStats handles GET /api/v1/model/stats.
func (h *Handler) ModelStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if h.model == nil {
		respondError(w, r, http.StatusNotImplemented, CodeNotImplemented, "similarity model is not available", nil)
		return
	}

	stats := ModelStats{Accumulator: h.model.Stats()}
	if h.pipeline != nil {
		stats.PipelineRunning = h.pipeline.IsRunning()
		stats.Handlers = h.pipeline.Stats()
	}
	respondData(w, http.StatusOK, stats, start)
}

// SimilarityStream handles GET /api/v1/similarities/stream. The optional
// event_ids parameter restricts the feed to pairs touching those events.
func (h *Handler) SimilarityStream(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		respondError(w, r, http.StatusNotImplemented, CodeNotImplemented, "similarity feed is not available", nil)
		return
	}

	var eventIDs []int64
	if _, ok := r.URL.Query()["event_ids"]; ok {
		ids, err := parseCommaSeparatedInt64s(r, "event_ids")
		if err != nil {
			respondError(w, r, http.StatusBadRequest, CodeInvalidParameter, err.Error(), nil)
			return
		}
		eventIDs = ids
	}

	if err := h.feed.Serve(w, r, eventIDs); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("similarity stream ended")
	}
}
