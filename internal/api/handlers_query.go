// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/eventrec/internal/metrics"
	"github.com/tomtom215/eventrec/internal/models"
	"github.com/tomtom215/eventrec/internal/recommend"
)

const transportLabel = "http"

// SimilarEvents handles GET /api/v1/events/{eventID}/similar.
func (h *Handler) SimilarEvents(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	eventID, err := pathInt64(r, "eventID")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeInvalidParameter, err.Error(), nil)
		return
	}
	userID, err := queryInt64(r, "user_id")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeInvalidParameter, err.Error(), nil)
		return
	}
	maxResults, err := queryInt(r, "max_results", defaultMaxResults)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeInvalidParameter, err.Error(), nil)
		return
	}

	recs, err := h.recommender.GetSimilarEvents(r.Context(), eventID, userID, maxResults)
	h.respondQuery(w, r, "GetSimilarEvents", start, recs, err)
}

// InteractionsCount handles GET /api/v1/events/interactions.
func (h *Handler) InteractionsCount(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	eventIDs, err := parseCommaSeparatedInt64s(r, "event_ids")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeInvalidParameter, err.Error(), nil)
		return
	}

	recs, err := h.recommender.GetInteractionsCount(r.Context(), eventIDs)
	h.respondQuery(w, r, "GetInteractionsCount", start, recs, err)
}

// UserRecommendations handles GET /api/v1/users/{userID}/recommendations.
func (h *Handler) UserRecommendations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	userID, err := pathInt64(r, "userID")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeInvalidParameter, err.Error(), nil)
		return
	}
	maxResults, err := queryInt(r, "max_results", defaultMaxResults)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeInvalidParameter, err.Error(), nil)
		return
	}

	recs, err := h.recommender.GetRecommendationsForUser(r.Context(), userID, maxResults)
	h.respondQuery(w, r, "GetRecommendationsForUser", start, recs, err)
}

func (h *Handler) respondQuery(w http.ResponseWriter, r *http.Request, op string, start time.Time, recs []models.RecommendedEvent, err error) {
	class := recommend.ErrorClass(err)
	metrics.RecordQuery(op, transportLabel, len(recs), time.Since(start), class)

	switch class {
	case "":
	case recommend.ClassInvalidArgument:
		respondError(w, r, http.StatusBadRequest, CodeInvalidArgument, err.Error(), nil)
		return
	default:
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "query failed", err)
		return
	}

	if recs == nil {
		recs = []models.RecommendedEvent{}
	}
	count := len(recs)
	respondJSON(w, http.StatusOK, &APIResponse{
		Status: "success",
		Data:   recs,
		Metadata: Metadata{
			Timestamp:   h.now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
			Count:       &count,
		},
	})
}
