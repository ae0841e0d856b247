// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/eventrec/internal/models"
	"github.com/tomtom215/eventrec/internal/validation"
)

// maxActionBodyBytes bounds a collected action body.
const maxActionBodyBytes = 64 << 10

// CollectActionRequest is the body of POST /api/v1/actions. Timestamp
// defaults to the receive time.
type CollectActionRequest struct {
	UserID     int64     `json:"user_id" validate:"gt=0"`
	EventID    int64     `json:"event_id" validate:"gt=0"`
	ActionType string    `json:"action_type" validate:"required,action_kind"`
	Timestamp  time.Time `json:"timestamp"`
}

// CollectAction handles POST /api/v1/actions. It answers 202 once the action
// is on the ingest topic; the similarity model updates asynchronously.
func (h *Handler) CollectAction(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if h.collector == nil {
		respondError(w, r, http.StatusNotImplemented, CodeNotImplemented, "action collection is disabled", nil)
		return
	}

	var req CollectActionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxActionBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeInvalidJSON, "request body must be a JSON user action", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, r, verr)
		return
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = h.now()
	}

	action, err := h.collector.PublishAction(r.Context(), models.UserAction{
		UserID:    req.UserID,
		EventID:   req.EventID,
		Kind:      models.ParseActionKind(req.ActionType),
		Timestamp: ts.UTC(),
	})
	if err != nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "action could not be published", err)
		return
	}

	respondData(w, http.StatusAccepted, action, start)
}
