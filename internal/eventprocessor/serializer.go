// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package eventprocessor

import (
	"fmt"
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
)

// Message metadata keys.
const (
	MetadataSchemaVersion = "schema_version"
	MetadataUserID        = "user_id"
	MetadataEventID       = "event_id"
)

// Serializer handles wire encoding and decoding for pipeline messages.
// Decoding failures are permanent errors.
type Serializer struct{}

// NewSerializer creates a new serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// MarshalAction validates and encodes a user action event.
func (s *Serializer) MarshalAction(event *UserActionEvent) ([]byte, error) {
	event.EnsureSchemaVersion()
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate action: %w", err)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal action: %w", err)
	}
	return data, nil
}

// UnmarshalAction decodes and validates a user action event.
func (s *Serializer) UnmarshalAction(data []byte) (*UserActionEvent, error) {
	var event UserActionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, NewPermanentError("unmarshal action", err)
	}
	if err := event.Validate(); err != nil {
		return nil, NewPermanentError("validate action", err)
	}
	return &event, nil
}

// MarshalSimilarity validates and encodes a similarity event.
func (s *Serializer) MarshalSimilarity(event *SimilarityEvent) ([]byte, error) {
	event.EnsureSchemaVersion()
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate similarity: %w", err)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal similarity: %w", err)
	}
	return data, nil
}

// UnmarshalSimilarity decodes and validates a similarity event.
func (s *Serializer) UnmarshalSimilarity(data []byte) (*SimilarityEvent, error) {
	var event SimilarityEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, NewPermanentError("unmarshal similarity", err)
	}
	if err := event.Validate(); err != nil {
		return nil, NewPermanentError("validate similarity", err)
	}
	return &event, nil
}

// ActionMessage wraps an action event in a Watermill message. The action id
// is the message UUID so JetStream drops duplicate publishes of one action.
func (s *Serializer) ActionMessage(event *UserActionEvent) (*message.Message, error) {
	data, err := s.MarshalAction(event)
	if err != nil {
		return nil, err
	}
	msg := message.NewMessage(event.ActionID, data)
	msg.Metadata.Set(natsgo.MsgIdHdr, event.ActionID)
	msg.Metadata.Set(MetadataSchemaVersion, strconv.Itoa(event.GetSchemaVersion()))
	msg.Metadata.Set(MetadataUserID, strconv.FormatInt(event.UserID, 10))
	msg.Metadata.Set(MetadataEventID, strconv.FormatInt(event.EventID, 10))
	return msg, nil
}

// SimilarityMessage wraps a similarity event in a Watermill message.
func (s *Serializer) SimilarityMessage(event *SimilarityEvent) (*message.Message, error) {
	data, err := s.MarshalSimilarity(event)
	if err != nil {
		return nil, err
	}
	msg := message.NewMessage(uuid.NewString(), data)
	msg.Metadata.Set(MetadataSchemaVersion, strconv.Itoa(event.GetSchemaVersion()))
	return msg, nil
}
