// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package main

import (
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/tomtom215/eventrec/internal/api"
	"github.com/tomtom215/eventrec/internal/config"
	"github.com/tomtom215/eventrec/internal/eventprocessor"
	"github.com/tomtom215/eventrec/internal/grpcapi"
	"github.com/tomtom215/eventrec/internal/kafkabridge"
	"github.com/tomtom215/eventrec/internal/logging"
	"github.com/tomtom215/eventrec/internal/recommend"
	"github.com/tomtom215/eventrec/internal/websocket"
)

func kafkaConfig(cfg config.KafkaConfig) kafkabridge.Config {
	return kafkabridge.Config{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		ClientID:       cfg.ClientID,
		MaxPollRecords: cfg.MaxPollRecords,
		ForwardRate:    cfg.ForwardRate,
	}
}

func grpcConfig(cfg config.GRPCConfig) grpcapi.Config {
	return grpcapi.Config{
		Addr:            net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		MaxRecvMsgSize:  cfg.MaxRecvMsgSize,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
}

// initKafkaBridge returns nil when the bridge is disabled.
func initKafkaBridge(cfg *config.Config, pipeline *eventprocessor.Pipeline) (*kafkabridge.Bridge, error) {
	if !cfg.Kafka.Enabled {
		logging.Info().Msg("Kafka bridge disabled (KAFKA_ENABLED=false)")
		return nil, nil
	}
	bridge, err := kafkabridge.New(kafkaConfig(cfg.Kafka), pipeline, logging.WithComponent("kafka-bridge"))
	if err != nil {
		return nil, fmt.Errorf("create kafka bridge: %w", err)
	}
	logging.Info().
		Strs("brokers", cfg.Kafka.Brokers).
		Str("topic", cfg.Kafka.Topic).
		Str("group", cfg.Kafka.GroupID).
		Msg("Kafka bridge configured")
	return bridge, nil
}

// initGRPC returns nil when the gRPC server is disabled.
func initGRPC(cfg *config.Config, engine *recommend.Engine, pipeline *eventprocessor.Pipeline) (*grpcapi.Server, error) {
	if !cfg.GRPC.Enabled {
		logging.Info().Msg("gRPC server disabled (GRPC_ENABLED=false)")
		return nil, nil
	}
	svc, err := grpcapi.NewService(engine, pipeline)
	if err != nil {
		return nil, fmt.Errorf("create gRPC service: %w", err)
	}
	return grpcapi.NewServer(grpcConfig(cfg.GRPC), svc, logging.WithComponent("grpc")), nil
}

// initHTTP builds the query API server.
func initHTTP(cfg *config.Config, engine *recommend.Engine, pipeline *eventprocessor.Pipeline, feed *websocket.Hub, stores *StoreComponents, bus *BusComponents) (*http.Server, error) {
	checks := map[string]api.HealthChecker{"database": stores.db}
	if bus.conn != nil {
		checks["nats"] = bus
	}

	handler, err := api.NewHandler(api.Deps{
		Recommender:  engine,
		Collector:    pipeline,
		Model:        stores.accumulator,
		Pipeline:     pipeline,
		Feed:         feed,
		HealthChecks: checks,
		Version:      version,
	})
	if err != nil {
		return nil, fmt.Errorf("create API handler: %w", err)
	}

	if cfg.Server.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	for _, origin := range cfg.Server.CORSOrigins {
		if origin == "*" {
			logging.Warn().Msg("CORS allows any origin (CORS_ORIGINS=*)")
			break
		}
	}

	router := api.NewRouter(handler, api.RouterConfigFromServer(&cfg.Server))
	return api.NewServer(&cfg.Server, router), nil
}
