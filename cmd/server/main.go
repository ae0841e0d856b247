// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/eventrec/internal/config"
	"github.com/tomtom215/eventrec/internal/eventprocessor"
	"github.com/tomtom215/eventrec/internal/logging"
	"github.com/tomtom215/eventrec/internal/state"
	"github.com/tomtom215/eventrec/internal/supervisor"
	"github.com/tomtom215/eventrec/internal/supervisor/services"
	"github.com/tomtom215/eventrec/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// closeTimeout bounds closing the bus after the supervisor tree stopped.
const closeTimeout = 10 * time.Second

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("version", version).
		Str("db_path", cfg.Database.Path).
		Bool("nats", cfg.NATS.Enabled).
		Bool("state", cfg.State.Enabled).
		Str("cache", cfg.Cache.Backend).
		Msg("Starting Eventrec with supervisor tree")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := initStores(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize stores")
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing stores")
		}
	}()

	engine, err := stores.newEngine(cfg)
	if err != nil {
		shutdownFatal(stores, nil, err, "Failed to initialize recommendation engine")
	}

	bus, err := initBus(ctx, cfg)
	if err != nil {
		shutdownFatal(stores, nil, err, "Failed to initialize event bus")
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), closeTimeout)
		defer closeCancel()
		bus.Close(closeCtx)
	}()

	feed := websocket.NewHub(cfg.Server.CORSOrigins)
	deps := stores.pipelineDeps()
	deps.Feed = feed

	pipeline, err := eventprocessor.NewPipeline(pipelineConfig(cfg.NATS), bus.transport, deps, logging.WithComponent("eventprocessor"))
	if err != nil {
		shutdownFatal(stores, bus, err, "Failed to create ingest pipeline")
	}

	bridge, err := initKafkaBridge(cfg, pipeline)
	if err != nil {
		shutdownFatal(stores, bus, err, "Failed to create Kafka bridge")
	}

	grpcServer, err := initGRPC(cfg, engine, pipeline)
	if err != nil {
		shutdownFatal(stores, bus, err, "Failed to create gRPC server")
	}

	httpServer, err := initHTTP(cfg, engine, pipeline, feed, stores, bus)
	if err != nil {
		shutdownFatal(stores, bus, err, "Failed to create HTTP server")
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(&cfg.Supervisor))
	if err != nil {
		shutdownFatal(stores, bus, err, "Failed to create supervisor tree")
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	// Data layer
	if stores.state != nil {
		tree.AddDataService(services.NewLifecycleService("state-compactor", state.NewCompactor(stores.state)))
		logging.Info().Msg("State compactor added to supervisor tree")
	}

	// Messaging layer
	tree.AddMessagingService(services.NewPipelineService(pipeline, cfg.Supervisor.ShutdownTimeout))
	logging.Info().Msg("Ingest pipeline added to supervisor tree")
	if bridge != nil {
		tree.AddMessagingService(services.NewRunService("kafka-bridge", bridge.Run))
		logging.Info().Msg("Kafka bridge added to supervisor tree")
	}
	tree.AddMessagingService(services.NewRunService("similarity-feed", feed.Run))

	// API layer
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", httpServer.Addr).Msg("HTTP server service added")
	if grpcServer != nil {
		tree.AddAPIService(services.NewRunService("grpc-server", grpcServer.Serve))
		logging.Info().Str("addr", grpcConfig(cfg.GRPC).Addr).Msg("gRPC server service added")
	}

	// === START SUPERVISOR TREE ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		treeErr = <-errCh
	case treeErr = <-errCh:
		cancel()
	}
	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		logging.Error().Err(treeErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// shutdownFatal releases what was opened before exiting, since Fatal skips
// deferred calls.
func shutdownFatal(stores *StoreComponents, bus *BusComponents, err error, msg string) {
	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	bus.Close(closeCtx)
	if closeErr := stores.Close(); closeErr != nil {
		logging.Error().Err(closeErr).Msg("Error closing stores")
	}
	logging.Fatal().Err(err).Msg(msg)
}
