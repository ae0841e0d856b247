// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

// Package main is the entry point for the Eventrec server.
//
// Eventrec consumes a stream of user actions (views, likes, purchases),
// maintains pairwise event similarity in an in-memory accumulator, and
// answers recommendation queries over HTTP and gRPC.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: defaults, optional YAML file, environment (Koanf v2)
//  2. Stores: DuckDB action and similarity tables, optional Badger state
//     store restored into the accumulator, similarity cache (memory or Redis)
//  3. Event bus: embedded or external NATS JetStream, or an in-process
//     Watermill channel when NATS is disabled
//  4. Pipeline: aggregator and analyzer consumers on the actions topic
//  5. Kafka bridge (optional): forwards a Kafka topic onto the actions topic
//  6. Similarity feed: WebSocket hub fed by the analyzer
//  7. gRPC server (optional) and HTTP API
//
// Every long-running component runs as a suture service:
//
//	eventrec
//	├── data-layer       state-compactor
//	├── messaging-layer  ingest-pipeline, kafka-bridge, similarity-feed
//	└── api-layer        http-server, grpc-server
//
// # Configuration
//
// Common environment variables:
//   - HTTP_PORT, GRPC_ENABLED, GRPC_PORT
//   - DUCKDB_PATH, STATE_ENABLED, STATE_PATH
//   - NATS_ENABLED, NATS_EMBEDDED, NATS_URL
//   - KAFKA_ENABLED, KAFKA_BROKERS, KAFKA_TOPIC
//   - CACHE_BACKEND (none, memory, redis), REDIS_ADDR
//   - LOG_LEVEL, LOG_FORMAT
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the root context. The supervisor stops the API
// layer, the pipeline and the compactor, then the bus and stores are closed.
// Services that miss the shutdown timeout are reported.
//
// # Example Usage
//
// Single process with the in-process bus:
//
//	export NATS_ENABLED=false
//	export DUCKDB_PATH=./data/eventrec.duckdb
//	./eventrec
//
// Bridging an existing Kafka topic into an external NATS server:
//
//	export NATS_EMBEDDED=false
//	export NATS_URL=nats://nats:4222
//	export KAFKA_ENABLED=true
//	export KAFKA_BROKERS=kafka:9092
//	./eventrec
package main
