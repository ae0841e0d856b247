// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

// Package testinfra provides container fixtures for integration tests.
//
// It uses testcontainers-go to start the external services eventrec can
// talk to, so integration tests exercise real wire protocols instead of
// mocks:
//
//   - RedisContainer backs the similarity read cache
//   - KafkaContainer is a single-node Redpanda broker for the Kafka bridge
//
// NATS is not containerized because the server embeds nats-server and tests
// run it in-process.
//
// Example:
//
//	func TestRedisBackend_Integration(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    redisC, err := testinfra.NewRedisContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    t.Cleanup(func() { testinfra.CleanupContainer(t, ctx, redisC) })
//	    // connect to redisC.Addr
//	}
//
// All files carry the integration build tag:
//
//	go test -tags integration ./...
//
// Tests are skipped when Docker is unavailable.
package testinfra
