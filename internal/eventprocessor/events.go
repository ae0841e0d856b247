// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package eventprocessor

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/eventrec/internal/models"
	"github.com/tomtom215/eventrec/internal/validation"
)

// SchemaVersion is the current wire schema version.
// Increment when making breaking changes to the event structures.
const SchemaVersion = 1

// UserActionEvent is the wire form of a user action on the actions topic.
type UserActionEvent struct {
	SchemaVersion int `json:"schema_version,omitempty"`

	// ActionID identifies the action across redeliveries. It becomes the
	// message UUID, the Nats-Msg-Id and the stored row id.
	ActionID string `json:"action_id" validate:"required,uuid"`

	UserID     int64     `json:"user_id" validate:"gt=0"`
	EventID    int64     `json:"event_id" validate:"gt=0"`
	ActionType string    `json:"action_type" validate:"required"`
	Timestamp  time.Time `json:"timestamp" validate:"required"`
}

// NewUserActionEvent builds the wire form of a, assigning an id when a has none.
func NewUserActionEvent(a models.UserAction) *UserActionEvent {
	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &UserActionEvent{
		SchemaVersion: SchemaVersion,
		ActionID:      id,
		UserID:        a.UserID,
		EventID:       a.EventID,
		ActionType:    a.Kind.String(),
		Timestamp:     a.Timestamp.UTC(),
	}
}

// GetSchemaVersion returns the schema version, defaulting to 1 for events
// written before the field existed.
func (e *UserActionEvent) GetSchemaVersion() int {
	if e.SchemaVersion == 0 {
		return 1
	}
	return e.SchemaVersion
}

// EnsureSchemaVersion sets the schema version if not already set.
func (e *UserActionEvent) EnsureSchemaVersion() {
	if e.SchemaVersion == 0 {
		e.SchemaVersion = SchemaVersion
	}
}

// Validate checks required fields. An unrecognized action type is valid on
// the wire; it is weighted as zero downstream.
func (e *UserActionEvent) Validate() error {
	if err := validation.ValidateStruct(e); err != nil {
		return err
	}
	return nil
}

// Action converts the event to the domain model.
func (e *UserActionEvent) Action() models.UserAction {
	return models.UserAction{
		ID:        e.ActionID,
		UserID:    e.UserID,
		EventID:   e.EventID,
		Kind:      models.ParseActionKind(e.ActionType),
		Timestamp: e.Timestamp,
	}
}

// SimilarityEvent is the wire form of an emitted pair similarity.
type SimilarityEvent struct {
	SchemaVersion int `json:"schema_version,omitempty"`

	EventA    int64     `json:"event_a" validate:"gt=0"`
	EventB    int64     `json:"event_b" validate:"gt=0"`
	Score     float64   `json:"score" validate:"gte=0"`
	Timestamp time.Time `json:"timestamp" validate:"required"`
}

// NewSimilarityEvent builds the wire form of s.
func NewSimilarityEvent(s models.EventSimilarity) *SimilarityEvent {
	return &SimilarityEvent{
		SchemaVersion: SchemaVersion,
		EventA:        s.EventA,
		EventB:        s.EventB,
		Score:         s.Score,
		Timestamp:     s.Timestamp.UTC(),
	}
}

// GetSchemaVersion returns the schema version, defaulting to 1.
func (e *SimilarityEvent) GetSchemaVersion() int {
	if e.SchemaVersion == 0 {
		return 1
	}
	return e.SchemaVersion
}

// EnsureSchemaVersion sets the schema version if not already set.
func (e *SimilarityEvent) EnsureSchemaVersion() {
	if e.SchemaVersion == 0 {
		e.SchemaVersion = SchemaVersion
	}
}

// Validate checks field ranges and canonical ordering.
func (e *SimilarityEvent) Validate() error {
	if err := validation.ValidateStruct(e); err != nil {
		return err
	}
	if e.EventA >= e.EventB {
		return fmt.Errorf("%w: (%d, %d)", ErrNonCanonicalPair, e.EventA, e.EventB)
	}
	return nil
}

// Similarity converts the event to the domain model.
func (e *SimilarityEvent) Similarity() models.EventSimilarity {
	return models.EventSimilarity{
		EventA:    e.EventA,
		EventB:    e.EventB,
		Score:     e.Score,
		Timestamp: e.Timestamp,
	}
}
