// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

/*
Package middleware provides the HTTP middleware shared by the query API.

Every middleware has the chi signature func(http.Handler) http.Handler and can
be passed directly to chi.Router.Use.

Key Components:

  - RequestID: propagates or generates X-Request-ID and seeds the logging
    context with request and correlation ids
  - AccessLog: one structured log line per request
  - PrometheusMetrics: request count and latency by route pattern
  - SecurityHeaders: conservative response headers for JSON endpoints

Middleware Stack:

The API router installs them in this order:

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.SecurityHeaders)

PrometheusMetrics labels requests with the chi route pattern rather than the
raw path, so /api/v1/events/7/similar and /api/v1/events/8/similar share one
series. Requests that match no route are labelled "unmatched".
*/
package middleware
