// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

// Package eventprocessor runs the statistics pipeline on Watermill.
//
// Two consumer groups read the user actions topic independently:
//
//	┌──────────────┐     stats.user-actions.v1      ┌──────────────┐
//	│  producers   │ ─────────────┬───────────────► │  aggregator  │
//	│ (API, Kafka) │              │                 │ (accumulator)│
//	└──────────────┘              │                 └──────┬───────┘
//	                              │                        │ stats.events-similarity.v1
//	                              ▼                        ▼
//	                       ┌──────────────┐         ┌──────────────┐
//	                       │   analyzer   │         │   analyzer   │
//	                       │  (actions)   │         │(similarities)│
//	                       └──────┬───────┘         └──────┬───────┘
//	                              ▼                        ▼
//	                         user_actions          events_similarity
//
// The aggregator owns the in-memory similarity model and turns every action
// into one similarity record per other event the same user touched. The
// analyzer stores actions append-only (deduplicated by action id) and keeps
// the latest score of each pair.
//
// # Transports
//
// InProcessTransport uses a Go channel bus for single-process deployments
// and tests. NATSTransport uses JetStream with one durable consumer per
// handler, so a restarted consumer resumes where it stopped. The stream is
// created by StreamInitializer and may be served by EmbeddedServer.
//
// # Delivery
//
// Handlers return nil to ack. Decoding and validation failures are
// PermanentError values and go straight to the poison topic. Store failures
// are RetryableError values and are retried with exponential backoff before
// being poisoned. Publishing runs through a gobreaker circuit breaker.
//
// # Wire format
//
// Messages are JSON. UserActionEvent carries action_id, user_id, event_id,
// action_type and timestamp; the action id doubles as the JetStream message
// id so duplicate publishes inside the stream's duplicate window are dropped.
// SimilarityEvent carries event_a < event_b, score and timestamp.
package eventprocessor
