// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package grpcapi

import (
	"time"

	"github.com/tomtom215/eventrec/internal/models"
)

// SimilarEventsRequest asks for events similar to EventID that UserID has
// not interacted with.
type SimilarEventsRequest struct {
	EventID    int64 `json:"event_id"`
	UserID     int64 `json:"user_id"`
	MaxResults int   `json:"max_results"`
}

// InteractionsCountRequest asks for the summed action weight of each event.
type InteractionsCountRequest struct {
	EventIDs []int64 `json:"event_ids"`
}

// UserPredictionsRequest asks for personalized recommendations.
type UserPredictionsRequest struct {
	UserID     int64 `json:"user_id"`
	MaxResults int   `json:"max_results"`
}

// RecommendedEvent is one streamed result.
type RecommendedEvent = models.RecommendedEvent

// CollectUserActionRequest submits a user action to the ingest topic.
// Timestamp defaults to the receive time.
type CollectUserActionRequest struct {
	UserID     int64     `json:"user_id" validate:"gt=0"`
	EventID    int64     `json:"event_id" validate:"gt=0"`
	ActionType string    `json:"action_type" validate:"required,action_kind"`
	Timestamp  time.Time `json:"timestamp"`
}

// CollectUserActionResponse returns the id assigned to the collected action.
type CollectUserActionResponse struct {
	ActionID string `json:"action_id"`
}
