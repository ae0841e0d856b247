// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

// Package recommend answers similarity and recommendation queries from the
// persisted user actions and event similarities.
//
// # Queries
//
//   - GetSimilarEvents: the events most similar to one event, excluding
//     pairs the user has already engaged with on both sides
//   - GetInteractionsCount: the summed action weight recorded for each event
//   - GetRecommendationsForUser: candidates drawn from the user's most recent
//     actions, scored by a similarity-weighted average of the user's own
//     action weights
//
// # Errors
//
// Request-shape failures wrap ErrInvalidArgument. Every other failure is an
// internal error. Nothing is retried inside the engine.
//
// # Usage
//
//	engine, err := recommend.NewEngine(recommend.DefaultConfig(), db, simCache, logger)
//	if err != nil {
//	    return err
//	}
//	recs, err := engine.GetRecommendationsForUser(ctx, userID, 10)
//
// # Thread Safety
//
// The engine holds no mutable state and is safe for concurrent use. Results
// reflect whatever the stores return at query time; no isolation is provided
// against concurrent ingest.
package recommend
