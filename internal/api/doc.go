// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

/*
Package api serves the recommendation queries and action collection over
HTTP with a chi router.

Endpoints:

	GET  /api/v1/health                                 store and pipeline health
	GET  /api/v1/events/{eventID}/similar               ?user_id=&max_results=
	GET  /api/v1/events/interactions                    ?event_ids=1,2,3
	GET  /api/v1/users/{userID}/recommendations         ?max_results=
	POST /api/v1/actions                                collect one user action
	GET  /api/v1/similarity/{eventA}/{eventB}           accumulator pair value
	GET  /api/v1/similarities/stream?event_ids=1,2      live similarity feed (WebSocket)
	GET  /api/v1/model/stats                            accumulator and handler counters
	GET  /metrics                                       Prometheus exposition

Every JSON response uses the APIResponse envelope:

	{"status":"success","data":[{"event_id":2,"score":1}],"metadata":{"timestamp":"..."}}
	{"status":"error","data":null,"metadata":{...},"error":{"code":"INVALID_ARGUMENT","message":"..."}}

Query failures classified as invalid argument map to 400, everything else to
500. Malformed path or query parameters are rejected with 400 before the
recommender is called.
*/
package api
