// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package models

import "time"

// Pair is an unordered event pair in canonical form (A < B).
type Pair struct {
	A int64
	B int64
}

// CanonicalPair orders a and b so the smaller id comes first.
func CanonicalPair(a, b int64) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Other returns the endpoint that is not id. For an id outside the pair it returns B.
func (p Pair) Other(id int64) int64 {
	if p.B == id {
		return p.A
	}
	return p.B
}

// Contains reports whether id is one of the pair's endpoints.
func (p Pair) Contains(id int64) bool {
	return p.A == id || p.B == id
}

// EventSimilarity is the latest score computed for a canonical event pair.
type EventSimilarity struct {
	EventA    int64     `json:"event_a"`
	EventB    int64     `json:"event_b"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEventSimilarity builds a similarity record in canonical order.
func NewEventSimilarity(a, b int64, score float64, ts time.Time) EventSimilarity {
	p := CanonicalPair(a, b)
	return EventSimilarity{EventA: p.A, EventB: p.B, Score: score, Timestamp: ts}
}

// Pair returns the record's endpoints.
func (s EventSimilarity) Pair() Pair {
	return Pair{A: s.EventA, B: s.EventB}
}

// Canonical reports whether EventA < EventB strictly.
func (s EventSimilarity) Canonical() bool {
	return s.EventA < s.EventB
}

// RecommendedEvent is an (event, score) result of a recommendation query.
type RecommendedEvent struct {
	EventID int64   `json:"event_id"`
	Score   float64 `json:"score"`
}
