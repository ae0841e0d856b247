// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

/*
Package models defines the domain types shared by the Eventrec pipeline,
stores and query transports.

Key Components:

  - ActionKind: closed enum of user interactions (VIEW, REGISTER, LIKE) and
    their fixed weights
  - UserAction: one observed interaction, append-only once stored
  - EventSimilarity: a canonical (EventA < EventB) pair with its latest score
  - RecommendedEvent: the (event, score) tuple every query returns

Event ids and user ids are opaque positive int64 keys. Nothing in this
package performs I/O.
*/
package models
