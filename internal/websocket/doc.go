// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

/*
Package websocket provides the live similarity feed.

The Hub receives every similarity update the analyzer accepts (it is wired as
the pipeline's SimilarityObserver) and broadcasts it to connected clients.
Clients may restrict the feed to updates that touch a set of events.

	┌───────────────────┐
	│ SimilarityHandler │ ObserveSimilarity (never blocks)
	└─────────┬─────────┘
	          ▼
	     ┌─────────┐
	     │   Hub   │ broadcast queue, register/unregister
	     └────┬────┘
	  ┌───────┼────────┐
	Client1 Client2 Client3   filtered by event id

Each client has two goroutines:
  - readPump: reads frames, answers {"type":"ping"} with {"type":"pong"}
  - writePump: writes queued messages and keepalive ping frames

Frames are JSON:

	{"type":"similarity","data":{"event_a":1,"event_b":2,"score":0.4,"timestamp":"2026-01-02T15:04:05Z"}}

Usage:

	hub := websocket.NewHub(cfg.Server.CORSOrigins)
	go hub.Run(ctx)

	http.HandleFunc("/api/v1/similarities/stream", func(w http.ResponseWriter, r *http.Request) {
	    _ = hub.Serve(w, r, []int64{1, 2})
	})

Thread Safety:

All Hub methods are safe for concurrent use. ObserveSimilarity drops updates
when the broadcast queue is full, and a client whose send buffer fills is
disconnected rather than slowing the hub.
*/
package websocket
