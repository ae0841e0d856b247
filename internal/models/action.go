// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// ActionKind is the category of a user interaction with an event.
type ActionKind uint8

const (
	// ActionUnknown is the sentinel for any value outside the known kinds.
	// It weighs 0 and never fails ingestion.
	ActionUnknown ActionKind = iota
	ActionView
	ActionRegister
	ActionLike
)

// Action weights.
const (
	WeightLike     = 1.0
	WeightRegister = 0.8
	WeightView     = 0.4
)

// Weight returns the importance weight of the kind. Unknown kinds weigh 0.
func (k ActionKind) Weight() float64 {
	switch k {
	case ActionLike:
		return WeightLike
	case ActionRegister:
		return WeightRegister
	case ActionView:
		return WeightView
	case ActionUnknown:
		return 0
	}
	return 0
}

// Known reports whether k is one of VIEW, REGISTER or LIKE.
func (k ActionKind) Known() bool {
	return k == ActionView || k == ActionRegister || k == ActionLike
}

// String returns the wire name of the kind.
func (k ActionKind) String() string {
	switch k {
	case ActionView:
		return "VIEW"
	case ActionRegister:
		return "REGISTER"
	case ActionLike:
		return "LIKE"
	case ActionUnknown:
		return "UNKNOWN"
	}
	return "UNKNOWN"
}

// ParseActionKind maps a wire name to its kind, case-insensitively.
// Anything unrecognised yields ActionUnknown.
func ParseActionKind(s string) ActionKind {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "VIEW":
		return ActionView
	case "REGISTER":
		return ActionRegister
	case "LIKE":
		return ActionLike
	default:
		return ActionUnknown
	}
}

// MarshalJSON encodes the kind by name.
func (k ActionKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind name. Unknown names decode to ActionUnknown
// rather than failing, so the weighting layer decides what to do with them.
func (k *ActionKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("action kind must be a string: %w", err)
	}
	*k = ParseActionKind(s)
	return nil
}

// UserAction is a single observed (user, event, kind, timestamp) tuple.
type UserAction struct {
	ID        string     `json:"id,omitempty"`
	UserID    int64      `json:"user_id"`
	EventID   int64      `json:"event_id"`
	Kind      ActionKind `json:"action_type"`
	Timestamp time.Time  `json:"timestamp"`
}

// Weight is shorthand for a.Kind.Weight().
func (a UserAction) Weight() float64 {
	return a.Kind.Weight()
}
