// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

// Package metrics holds the Prometheus collectors for Eventrec.
//
// Collectors are registered on the default registry through promauto and are
// exposed by the HTTP API at /metrics. Callers use the Record* helpers rather
// than touching the vectors directly so label sets stay consistent.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Aggregation

	ActionsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventrec_actions_ingested_total",
			Help: "User actions applied to the similarity accumulator, by action kind",
		},
		[]string{"kind"},
	)

	UnknownActionKinds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventrec_unknown_action_kinds_total",
			Help: "Actions whose kind was not recognized and weighted as zero",
		},
	)

	SimilaritiesEmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventrec_similarities_emitted_total",
			Help: "Event similarity updates emitted by the accumulator",
		},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eventrec_ingest_duration_seconds",
			Help:    "Time spent applying one action to the accumulator",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	AccumulatorEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventrec_accumulator_events",
			Help: "Events tracked by the accumulator",
		},
	)

	AccumulatorPairs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventrec_accumulator_pairs",
			Help: "Canonical event pairs tracked by the accumulator",
		},
	)

	StateStoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventrec_state_store_writes_total",
			Help: "Accumulator deltas written to the state store, by status",
		},
		[]string{"status"},
	)

	// Storage

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventrec_store_query_duration_seconds",
			Help:    "Duration of DuckDB store operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	StoreQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventrec_store_query_errors_total",
			Help: "Failed DuckDB store operations",
		},
		[]string{"operation", "table"},
	)

	// Queries

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventrec_query_duration_seconds",
			Help:    "Recommendation query latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "transport"},
	)

	QueryResults = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventrec_query_results",
			Help:    "Number of results returned per recommendation query",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
		[]string{"operation"},
	)

	QueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventrec_query_errors_total",
			Help: "Recommendation query failures by class (invalid_argument, internal)",
		},
		[]string{"operation", "class"},
	)

	// Cache

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventrec_similarity_cache_hits_total",
			Help: "Similarity cache hits",
		},
		[]string{"backend"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventrec_similarity_cache_misses_total",
			Help: "Similarity cache misses",
		},
		[]string{"backend"},
	)

	// Messaging

	MessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventrec_messages_published_total",
			Help: "Messages published to the event bus",
		},
		[]string{"topic", "status"},
	)

	MessagesHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventrec_messages_handled_total",
			Help: "Messages processed by pipeline handlers",
		},
		[]string{"handler", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "eventrec_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventrec_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	KafkaRecordsForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventrec_kafka_records_forwarded_total",
			Help: "Kafka records forwarded into the event bus, by status",
		},
		[]string{"status"},
	)

	// HTTP

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventrec_api_requests_total",
			Help: "HTTP API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventrec_api_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "eventrec_app_info",
			Help: "Build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordIngest records one accumulator update.
func RecordIngest(kind string, emitted int, duration time.Duration) {
	ActionsIngested.WithLabelValues(kind).Inc()
	SimilaritiesEmitted.Add(float64(emitted))
	IngestDuration.Observe(duration.Seconds())
}

// RecordAccumulatorSize publishes the current accumulator dimensions.
func RecordAccumulatorSize(events, pairs int) {
	AccumulatorEvents.Set(float64(events))
	AccumulatorPairs.Set(float64(pairs))
}

// RecordStoreQuery records a store operation and its outcome.
func RecordStoreQuery(operation, table string, duration time.Duration, err error) {
	StoreQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		StoreQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordQuery records a recommendation query. class is "" on success.
func RecordQuery(operation, transport string, results int, duration time.Duration, class string) {
	QueryDuration.WithLabelValues(operation, transport).Observe(duration.Seconds())
	if class != "" {
		QueryErrors.WithLabelValues(operation, class).Inc()
		return
	}
	QueryResults.WithLabelValues(operation).Observe(float64(results))
}

// RecordCacheLookup records a cache hit or miss for backend.
func RecordCacheLookup(backend string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(backend).Inc()
		return
	}
	CacheMisses.WithLabelValues(backend).Inc()
}

// RecordPublish records a publish attempt on topic.
func RecordPublish(topic string, err error) {
	MessagesPublished.WithLabelValues(topic, statusLabel(err)).Inc()
}

// RecordHandled records a handler outcome.
func RecordHandled(handler string, err error) {
	MessagesHandled.WithLabelValues(handler, statusLabel(err)).Inc()
}

// RecordStateWrite records a state store write.
func RecordStateWrite(err error) {
	StateStoreWrites.WithLabelValues(statusLabel(err)).Inc()
}

// RecordKafkaForward records Kafka records forwarded into the bus.
func RecordKafkaForward(n int, err error) {
	KafkaRecordsForwarded.WithLabelValues(statusLabel(err)).Add(float64(n))
}

// RecordCircuitBreakerTransition records a state change and updates the state gauge.
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
}

// RecordAPIRequest records an HTTP request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}
