// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

// Package aggregator maintains the incremental event-similarity model.
//
// For every event the Accumulator keeps the minimum weight each user has
// given it, the sum of those minima, and a symmetric table holding the latest
// similarity of every event pair that shares at least one user. Each ingested
// action updates the model and returns the similarity records it produced.
//
// The model grows monotonically for the life of the process. Nothing is
// evicted, because evicting an event would reset its per-user minima.
package aggregator

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/eventrec/internal/metrics"
	"github.com/tomtom215/eventrec/internal/models"
)

// Accumulator is the in-memory similarity model. It is safe for concurrent
// use: Ingest calls are serialized by a single writer lock and readers see
// the state before or after a whole ingest, never part of one.
type Accumulator struct {
	mu sync.RWMutex

	// event -> user -> minimum weight observed
	eventWeight map[int64]map[int64]float64

	// event -> sum of eventWeight[event]
	eventWeightSum map[int64]float64

	// canonical pair -> latest similarity
	minWeightsSum map[models.Pair]float64

	// user -> events the user acted on. Inverted index over eventWeight so
	// step 4 of Ingest does not scan every event.
	userEvents map[int64]map[int64]struct{}

	logger zerolog.Logger
}

// NewAccumulator creates an empty accumulator.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewAccumulator(logger zerolog.Logger) *Accumulator {
	return &Accumulator{
		eventWeight:    make(map[int64]map[int64]float64),
		eventWeightSum: make(map[int64]float64),
		minWeightsSum:  make(map[models.Pair]float64),
		userEvents:     make(map[int64]map[int64]struct{}),
		logger:         logger.With().Str("component", "aggregator").Logger(),
	}
}

// Update describes the effect of one ingested action.
type Update struct {
	Action models.UserAction

	// UserWeight is the stored minimum for (Action.EventID, Action.UserID)
	// after the ingest.
	UserWeight float64

	// WeightChanged is false when the action did not lower the stored minimum.
	WeightChanged bool

	// EventWeightSum is the recomputed sum for Action.EventID.
	EventWeightSum float64

	// Similarities holds one record per other event the user has acted on,
	// ordered by the other event id.
	Similarities []models.EventSimilarity
}

// Ingest applies one action to the model.
//
// The (event, user) weight only ever decreases: a repeated or weaker signal
// keeps min(existing, w). Every other event the user touched gets its pair
// overwritten with the min of the two user weights, and a similarity record
// stamped with the action timestamp is returned for it.
func (a *Accumulator) Ingest(action models.UserAction) Update {
	start := time.Now()

	w := action.Kind.Weight()
	if !action.Kind.Known() {
		metrics.UnknownActionKinds.Inc()
		a.logger.Warn().
			Int64("user_id", action.UserID).
			Int64("event_id", action.EventID).
			Str("action_type", action.Kind.String()).
			Msg("unknown action kind, weighting as zero")
	}

	a.mu.Lock()

	users, ok := a.eventWeight[action.EventID]
	if !ok {
		users = make(map[int64]float64)
		a.eventWeight[action.EventID] = users
	}

	stored := w
	changed := true
	if existing, seen := users[action.UserID]; seen {
		stored = min(existing, w)
		changed = stored != existing
	}
	users[action.UserID] = stored

	sum := 0.0
	for _, uw := range users {
		sum += uw
	}
	a.eventWeightSum[action.EventID] = sum

	events, ok := a.userEvents[action.UserID]
	if !ok {
		events = make(map[int64]struct{})
		a.userEvents[action.UserID] = events
	}
	events[action.EventID] = struct{}{}

	others := make([]int64, 0, len(events)-1)
	for e2 := range events {
		if e2 != action.EventID {
			others = append(others, e2)
		}
	}
	sort.Slice(others, func(i, j int) bool { return others[i] < others[j] })

	sims := make([]models.EventSimilarity, 0, len(others))
	for _, e2 := range others {
		m := min(a.eventWeight[e2][action.UserID], stored)
		pair := models.CanonicalPair(action.EventID, e2)
		a.minWeightsSum[pair] = m
		sims = append(sims, models.EventSimilarity{
			EventA:    pair.A,
			EventB:    pair.B,
			Score:     m,
			Timestamp: action.Timestamp,
		})
	}

	nEvents, nPairs := len(a.eventWeight), len(a.minWeightsSum)
	a.mu.Unlock()

	metrics.RecordIngest(action.Kind.String(), len(sims), time.Since(start))
	metrics.RecordAccumulatorSize(nEvents, nPairs)

	return Update{
		Action:         action,
		UserWeight:     stored,
		WeightChanged:  changed,
		EventWeightSum: sum,
		Similarities:   sims,
	}
}

// Similarity returns the current value for the pair (a, b) in either order,
// or 0 when the events share no user.
func (a *Accumulator) Similarity(eventA, eventB int64) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.minWeightsSum[models.CanonicalPair(eventA, eventB)]
}

// UserWeight returns the stored minimum weight of user on event.
func (a *Accumulator) UserWeight(eventID, userID int64) (float64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	w, ok := a.eventWeight[eventID][userID]
	return w, ok
}

// EventWeightSum returns the sum of per-user minima for event, or 0.
func (a *Accumulator) EventWeightSum(eventID int64) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.eventWeightSum[eventID]
}

// Stats summarizes the model size.
type Stats struct {
	Events int `json:"events"`
	Users  int `json:"users"`
	Pairs  int `json:"pairs"`
}

// Stats returns the current model size.
func (a *Accumulator) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Stats{
		Events: len(a.eventWeight),
		Users:  len(a.userEvents),
		Pairs:  len(a.minWeightsSum),
	}
}

// PairSimilarities returns every stored pair as a similarity record with a
// zero timestamp, ordered by (EventA, EventB).
func (a *Accumulator) PairSimilarities() []models.EventSimilarity {
	a.mu.RLock()
	out := make([]models.EventSimilarity, 0, len(a.minWeightsSum))
	for p, score := range a.minWeightsSum {
		out = append(out, models.EventSimilarity{EventA: p.A, EventB: p.B, Score: score})
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].EventA != out[j].EventA {
			return out[i].EventA < out[j].EventA
		}
		return out[i].EventB < out[j].EventB
	})
	return out
}
