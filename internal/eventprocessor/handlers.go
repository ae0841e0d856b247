// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package eventprocessor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/eventrec/internal/aggregator"
	"github.com/tomtom215/eventrec/internal/models"
)

// Ingester applies actions to the similarity model.
type Ingester interface {
	Ingest(action models.UserAction) aggregator.Update
}

// StateWriter persists accumulator updates.
type StateWriter interface {
	Apply(ctx context.Context, u aggregator.Update) error
}

// ActionAppender stores user actions. inserted is false for an action id
// that was already stored.
type ActionAppender interface {
	AppendUserAction(ctx context.Context, a *models.UserAction) (inserted bool, err error)
}

// SimilarityWriter stores the latest score of a pair.
type SimilarityWriter interface {
	UpsertSimilarity(ctx context.Context, s models.EventSimilarity) (written bool, err error)
}

// HandlerStats counts messages seen by a handler.
type HandlerStats struct {
	Received        int64     `json:"received"`
	Processed       int64     `json:"processed"`
	Skipped         int64     `json:"skipped"`
	Failed          int64     `json:"failed"`
	LastMessageTime time.Time `json:"last_message_time"`
}

type handlerCounters struct {
	received  atomic.Int64
	processed atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
	lastMsg   atomic.Int64 // unix nanos
}

func (c *handlerCounters) receive() {
	c.received.Add(1)
	c.lastMsg.Store(time.Now().UnixNano())
}

func (c *handlerCounters) stats() HandlerStats {
	s := HandlerStats{
		Received:  c.received.Load(),
		Processed: c.processed.Load(),
		Skipped:   c.skipped.Load(),
		Failed:    c.failed.Load(),
	}
	if ns := c.lastMsg.Load(); ns != 0 {
		s.LastMessageTime = time.Unix(0, ns)
	}
	return s
}

// AggregatorHandler feeds user actions into the accumulator and emits one
// similarity message per affected pair.
type AggregatorHandler struct {
	acc        Ingester
	state      StateWriter
	serializer *Serializer
	logger     zerolog.Logger
	counters   handlerCounters
}

// NewAggregatorHandler creates the aggregator handler. state may be nil.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewAggregatorHandler(acc Ingester, state StateWriter, logger zerolog.Logger) (*AggregatorHandler, error) {
	if acc == nil {
		return nil, fmt.Errorf("%w: accumulator is required", ErrInvalidConfig)
	}
	return &AggregatorHandler{
		acc:        acc,
		state:      state,
		serializer: NewSerializer(),
		logger:     logger.With().Str("handler", "aggregator").Logger(),
	}, nil
}

// Handle implements message.HandlerFunc. Replaying an action is harmless:
// the stored minimum cannot drop further and the emitted pairs carry the
// same scores.
func (h *AggregatorHandler) Handle(msg *message.Message) ([]*message.Message, error) {
	h.counters.receive()

	event, err := h.serializer.UnmarshalAction(msg.Payload)
	if err != nil {
		h.counters.failed.Add(1)
		return nil, err
	}

	update := h.acc.Ingest(event.Action())

	if h.state != nil {
		if err := h.state.Apply(msg.Context(), update); err != nil {
			// The in-memory model stays authoritative; the next update of
			// the same keys rewrites them.
			h.logger.Error().Err(err).
				Str("action_id", event.ActionID).
				Msg("state store write failed")
		}
	}

	out := make([]*message.Message, 0, len(update.Similarities))
	for _, s := range update.Similarities {
		m, err := h.serializer.SimilarityMessage(NewSimilarityEvent(s))
		if err != nil {
			h.counters.failed.Add(1)
			return nil, NewPermanentError("encode similarity", err)
		}
		out = append(out, m)
	}

	h.counters.processed.Add(1)
	h.logger.Debug().
		Str("action_id", event.ActionID).
		Int64("user_id", event.UserID).
		Int64("event_id", event.EventID).
		Int("similarities", len(out)).
		Msg("action aggregated")
	return out, nil
}

// Stats returns handler counters.
func (h *AggregatorHandler) Stats() HandlerStats {
	return h.counters.stats()
}

// ActionHandler appends user actions to the action store.
type ActionHandler struct {
	store      ActionAppender
	serializer *Serializer
	logger     zerolog.Logger
	counters   handlerCounters
}

// NewActionHandler creates the action persistence handler.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewActionHandler(store ActionAppender, logger zerolog.Logger) (*ActionHandler, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: action store is required", ErrInvalidConfig)
	}
	return &ActionHandler{
		store:      store,
		serializer: NewSerializer(),
		logger:     logger.With().Str("handler", "analyzer-actions").Logger(),
	}, nil
}

// Handle implements message.NoPublishHandlerFunc.
func (h *ActionHandler) Handle(msg *message.Message) error {
	h.counters.receive()

	event, err := h.serializer.UnmarshalAction(msg.Payload)
	if err != nil {
		h.counters.failed.Add(1)
		return err
	}

	action := event.Action()
	inserted, err := h.store.AppendUserAction(msg.Context(), &action)
	if err != nil {
		h.counters.failed.Add(1)
		return NewRetryableError("append user action", err)
	}
	if !inserted {
		h.counters.skipped.Add(1)
		h.logger.Debug().Str("action_id", action.ID).Msg("duplicate action skipped")
		return nil
	}

	h.counters.processed.Add(1)
	return nil
}

// Stats returns handler counters.
func (h *ActionHandler) Stats() HandlerStats {
	return h.counters.stats()
}

// SimilarityObserver is notified of every similarity the store accepted.
// It must not block.
type SimilarityObserver interface {
	ObserveSimilarity(s models.EventSimilarity)
}

// SimilarityHandler upserts similarity records into the similarity store.
type SimilarityHandler struct {
	store      SimilarityWriter
	observer   SimilarityObserver
	serializer *Serializer
	logger     zerolog.Logger
	counters   handlerCounters
}

// NewSimilarityHandler creates the similarity persistence handler.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewSimilarityHandler(store SimilarityWriter, logger zerolog.Logger) (*SimilarityHandler, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: similarity store is required", ErrInvalidConfig)
	}
	return &SimilarityHandler{
		store:      store,
		serializer: NewSerializer(),
		logger:     logger.With().Str("handler", "analyzer-similarities").Logger(),
	}, nil
}

// Handle implements message.NoPublishHandlerFunc. Records are applied in
// arrival order; a store that declines a write counts as skipped.
func (h *SimilarityHandler) Handle(msg *message.Message) error {
	h.counters.receive()

	event, err := h.serializer.UnmarshalSimilarity(msg.Payload)
	if err != nil {
		h.counters.failed.Add(1)
		return err
	}

	sim := event.Similarity()
	written, err := h.store.UpsertSimilarity(msg.Context(), sim)
	if err != nil {
		h.counters.failed.Add(1)
		return NewRetryableError("upsert similarity", err)
	}
	if !written {
		h.counters.skipped.Add(1)
		h.logger.Debug().
			Int64("event_a", event.EventA).
			Int64("event_b", event.EventB).
			Msg("similarity write skipped")
		return nil
	}

	h.counters.processed.Add(1)
	if h.observer != nil {
		h.observer.ObserveSimilarity(sim)
	}
	return nil
}

// Stats returns handler counters.
func (h *SimilarityHandler) Stats() HandlerStats {
	return h.counters.stats()
}
