// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package aggregator

import (
	"github.com/tomtom215/eventrec/internal/metrics"
	"github.com/tomtom215/eventrec/internal/models"
)

// UserWeight is one stored (event, user) minimum.
type UserWeight struct {
	EventID int64   `json:"event_id"`
	UserID  int64   `json:"user_id"`
	Weight  float64 `json:"weight"`
}

// PairWeight is one stored pair value.
type PairWeight struct {
	Pair  models.Pair `json:"pair"`
	Score float64     `json:"score"`
}

// Snapshot is the persistable part of the model. Weight sums are derived
// and recomputed on Restore. Pairs are stored explicitly because a pair
// holds the value of its latest overwrite, which the user weights alone
// cannot reproduce.
type Snapshot struct {
	UserWeights []UserWeight `json:"user_weights"`
	Pairs       []PairWeight `json:"pairs"`
}

// Restore replaces the model with snap.
func (a *Accumulator) Restore(snap Snapshot) {
	eventWeight := make(map[int64]map[int64]float64)
	userEvents := make(map[int64]map[int64]struct{})
	for _, uw := range snap.UserWeights {
		users, ok := eventWeight[uw.EventID]
		if !ok {
			users = make(map[int64]float64)
			eventWeight[uw.EventID] = users
		}
		users[uw.UserID] = uw.Weight

		events, ok := userEvents[uw.UserID]
		if !ok {
			events = make(map[int64]struct{})
			userEvents[uw.UserID] = events
		}
		events[uw.EventID] = struct{}{}
	}

	eventWeightSum := make(map[int64]float64, len(eventWeight))
	for event, users := range eventWeight {
		sum := 0.0
		for _, w := range users {
			sum += w
		}
		eventWeightSum[event] = sum
	}

	minWeightsSum := make(map[models.Pair]float64, len(snap.Pairs))
	for _, pw := range snap.Pairs {
		minWeightsSum[models.CanonicalPair(pw.Pair.A, pw.Pair.B)] = pw.Score
	}

	a.mu.Lock()
	a.eventWeight = eventWeight
	a.eventWeightSum = eventWeightSum
	a.minWeightsSum = minWeightsSum
	a.userEvents = userEvents
	nEvents, nPairs := len(eventWeight), len(minWeightsSum)
	a.mu.Unlock()

	metrics.RecordAccumulatorSize(nEvents, nPairs)
	a.logger.Info().
		Int("events", nEvents).
		Int("users", len(userEvents)).
		Int("pairs", nPairs).
		Msg("accumulator restored")
}

// Snapshot captures the current model.
func (a *Accumulator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snap := Snapshot{
		UserWeights: make([]UserWeight, 0, len(a.eventWeight)),
		Pairs:       make([]PairWeight, 0, len(a.minWeightsSum)),
	}
	for event, users := range a.eventWeight {
		for user, w := range users {
			snap.UserWeights = append(snap.UserWeights, UserWeight{EventID: event, UserID: user, Weight: w})
		}
	}
	for p, score := range a.minWeightsSum {
		snap.Pairs = append(snap.Pairs, PairWeight{Pair: p, Score: score})
	}
	return snap
}
