// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordIngest(t *testing.T) {
	before := testutil.ToFloat64(ActionsIngested.WithLabelValues("LIKE"))
	emittedBefore := testutil.ToFloat64(SimilaritiesEmitted)

	RecordIngest("LIKE", 3, time.Millisecond)

	if got := testutil.ToFloat64(ActionsIngested.WithLabelValues("LIKE")) - before; got != 1 {
		t.Errorf("ActionsIngested delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(SimilaritiesEmitted) - emittedBefore; got != 3 {
		t.Errorf("SimilaritiesEmitted delta = %v, want 3", got)
	}
}

func TestRecordAccumulatorSize(t *testing.T) {
	RecordAccumulatorSize(4, 6)

	if got := testutil.ToFloat64(AccumulatorEvents); got != 4 {
		t.Errorf("AccumulatorEvents = %v, want 4", got)
	}
	if got := testutil.ToFloat64(AccumulatorPairs); got != 6 {
		t.Errorf("AccumulatorPairs = %v, want 6", got)
	}
}

func TestRecordStoreQuery(t *testing.T) {
	before := testutil.ToFloat64(StoreQueryErrors.WithLabelValues("insert", "user_actions"))

	RecordStoreQuery("insert", "user_actions", time.Millisecond, nil)
	RecordStoreQuery("insert", "user_actions", time.Millisecond, errors.New("disk full"))

	if got := testutil.ToFloat64(StoreQueryErrors.WithLabelValues("insert", "user_actions")) - before; got != 1 {
		t.Errorf("StoreQueryErrors delta = %v, want 1", got)
	}
}

func TestRecordQuery(t *testing.T) {
	tests := []struct {
		name      string
		class     string
		wantError float64
	}{
		{"success", "", 0},
		{"invalid argument", "invalid_argument", 1},
		{"internal", "internal", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label := tt.class
			if label == "" {
				label = "none"
			}
			before := testutil.ToFloat64(QueryErrors.WithLabelValues("similar_events", label))
			RecordQuery("similar_events", "grpc", 2, time.Millisecond, tt.class)
			got := testutil.ToFloat64(QueryErrors.WithLabelValues("similar_events", label)) - before
			if got != tt.wantError {
				t.Errorf("QueryErrors delta = %v, want %v", got, tt.wantError)
			}
		})
	}
}

func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(CacheHits.WithLabelValues("memory"))
	misses := testutil.ToFloat64(CacheMisses.WithLabelValues("memory"))

	RecordCacheLookup("memory", true)
	RecordCacheLookup("memory", false)
	RecordCacheLookup("memory", false)

	if got := testutil.ToFloat64(CacheHits.WithLabelValues("memory")) - hits; got != 1 {
		t.Errorf("hits delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(CacheMisses.WithLabelValues("memory")) - misses; got != 2 {
		t.Errorf("misses delta = %v, want 2", got)
	}
}

func TestRecordPublishAndHandled(t *testing.T) {
	ok := testutil.ToFloat64(MessagesPublished.WithLabelValues("stats.events-similarity.v1", "success"))
	failed := testutil.ToFloat64(MessagesHandled.WithLabelValues("analyzer-actions", "error"))

	RecordPublish("stats.events-similarity.v1", nil)
	RecordHandled("analyzer-actions", errors.New("boom"))

	if got := testutil.ToFloat64(MessagesPublished.WithLabelValues("stats.events-similarity.v1", "success")) - ok; got != 1 {
		t.Errorf("published delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(MessagesHandled.WithLabelValues("analyzer-actions", "error")) - failed; got != 1 {
		t.Errorf("handled error delta = %v, want 1", got)
	}
}

func TestRecordCircuitBreakerTransition(t *testing.T) {
	tests := []struct {
		to   string
		want float64
	}{
		{"open", 2},
		{"half-open", 1},
		{"closed", 0},
	}

	for _, tt := range tests {
		RecordCircuitBreakerTransition("publisher", "closed", tt.to)
		if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("publisher")); got != tt.want {
			t.Errorf("state after -> %s = %v, want %v", tt.to, got, tt.want)
		}
	}
}
