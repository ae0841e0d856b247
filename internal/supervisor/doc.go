// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

/*
Package supervisor runs the long-lived Eventrec services under a suture v4
tree.

# Overview

Services are grouped into three layers so a failure in one restarts only its
own layer:

	RootSupervisor ("eventrec")
	├── DataSupervisor ("data-layer")
	│   └── state compactor (if state.enabled)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── ingest pipeline (Watermill router)
	│   └── kafka bridge (if kafka.enabled)
	└── APISupervisor ("api-layer")
	    ├── HTTP server
	    └── gRPC server (if grpc.enabled)

Crashed services restart with suture's backoff. FailureThreshold failures,
decaying at FailureDecay seconds each, put a supervisor into FailureBackoff.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(&cfg.Supervisor))
	if err != nil {
	    return err
	}
	tree.AddMessagingService(services.NewPipelineService(pipeline, cfg.Supervisor.ShutdownTimeout))
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout))

	errc := tree.ServeBackground(ctx)
	<-ctx.Done()
	<-errc

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
	    // log services that ignored shutdown
	}

# Logging

Supervisor events (service panics, terminations, backoff) are logged through
sutureslog onto the slog adapter of the logging package, so they share the
zerolog output of the rest of the process.

See package services for the suture.Service adapters.
*/
package supervisor
