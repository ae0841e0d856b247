// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is shared by the HTTP API, the gRPC service and
// the event pipeline so request bodies, query parameters and wire payloads
// are checked by the same rules. Field names in errors are taken from json
// tags, so messages read "user_id is required" rather than "UserID is required".
//
// Custom tags:
//   - action_kind: VIEW, REGISTER or LIKE, case-insensitive
//
// Example usage:
//
//	type CollectRequest struct {
//	    UserID     int64  `json:"user_id" validate:"gt=0"`
//	    EventID    int64  `json:"event_id" validate:"gt=0"`
//	    ActionType string `json:"action_type" validate:"required,action_kind"`
//	}
//
//	if err := validation.ValidateStruct(&req); err != nil {
//	    apiErr := err.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
//	    return
//	}
package validation
