// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

/*
Package services adapts Eventrec components to suture.Service.

Each adapter turns one lifecycle shape into Serve(ctx) error and reports a
name through fmt.Stringer for supervisor logs:

  - HTTPServerService: ListenAndServe/Shutdown (the query API)
  - PipelineService: Start/Shutdown (the Watermill ingest pipeline)
  - LifecycleService: Start/Stop (the state compactor)
  - RunService: a blocking Run(ctx) (the Kafka bridge and the gRPC server)

A Serve that returns before ctx is canceled counts as a failure and is
restarted by the supervisor with backoff. After cancellation every adapter
returns ctx.Err().
*/
package services
