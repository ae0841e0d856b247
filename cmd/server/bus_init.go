// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/eventrec/internal/config"
	"github.com/tomtom215/eventrec/internal/eventprocessor"
	"github.com/tomtom215/eventrec/internal/logging"
)

// inProcessBuffer is the per-subscription channel buffer of the in-process bus.
const inProcessBuffer = 1024

// errNATSDisconnected is reported by the health check while the client is
// reconnecting.
var errNATSDisconnected = errors.New("nats connection is not established")

// BusComponents holds the transport the pipeline runs on and, with NATS
// enabled, the broker connection and optional embedded server behind it.
type BusComponents struct {
	server    *eventprocessor.EmbeddedServer
	conn      *natsgo.Conn
	streams   *eventprocessor.StreamInitializer
	transport eventprocessor.Transport
}

// initBus returns an in-process transport when NATS is disabled, otherwise a
// JetStream transport with the stats stream provisioned.
func initBus(ctx context.Context, cfg *config.Config) (*BusComponents, error) {
	wmLogger := eventprocessor.NewWatermillLogger()

	if !cfg.NATS.Enabled {
		logging.Info().Msg("NATS disabled (NATS_ENABLED=false), using in-process event bus")
		return &BusComponents{
			transport: eventprocessor.NewInProcessTransport(inProcessBuffer, wmLogger),
		}, nil
	}

	logging.Info().Msg("Initializing NATS event bus...")
	c := &BusComponents{}

	natsURL := cfg.NATS.URL
	if cfg.NATS.EmbeddedServer {
		server, err := eventprocessor.NewEmbeddedServer(&eventprocessor.ServerConfig{
			Host:              cfg.NATS.Host,
			Port:              cfg.NATS.Port,
			StoreDir:          cfg.NATS.StoreDir,
			JetStreamMaxMem:   cfg.NATS.MaxMemory,
			JetStreamMaxStore: cfg.NATS.MaxStore,
		})
		if err != nil {
			return nil, err
		}
		c.server = server
		natsURL = server.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
	} else {
		logging.Info().Str("url", natsURL).Msg("Using external NATS server")
	}

	nc, err := natsgo.Connect(natsURL,
		natsgo.Name("eventrec"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	c.conn = nc

	js, err := jetstream.New(nc)
	if err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	streamCfg := streamConfig(cfg.NATS)
	streams, err := eventprocessor.NewStreamInitializer(js, &streamCfg)
	if err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("create stream initializer: %w", err)
	}
	c.streams = streams

	stream, err := streams.EnsureStream(ctx)
	if err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("ensure stream exists: %w", err)
	}
	info := stream.CachedInfo()
	logging.Info().
		Str("name", info.Config.Name).
		Strs("subjects", info.Config.Subjects).
		Dur("max_age", info.Config.MaxAge).
		Msg("JetStream stream ready")

	rawPub, err := eventprocessor.NewNATSPublisher(eventprocessor.DefaultPublisherConfig(natsURL), wmLogger)
	if err != nil {
		c.Close(ctx)
		return nil, err
	}
	breaker := eventprocessor.NewCircuitBreaker(eventprocessor.DefaultCircuitBreakerConfig("nats-publisher"))
	pub, err := eventprocessor.NewPublisher(rawPub, breaker)
	if err != nil {
		_ = rawPub.Close()
		c.Close(ctx)
		return nil, err
	}

	transport, err := eventprocessor.NewNATSTransport(pub, subscriberTemplate(natsURL, cfg.NATS, streamCfg.Name), wmLogger)
	if err != nil {
		_ = pub.Close()
		c.Close(ctx)
		return nil, err
	}
	c.transport = transport

	logging.Info().Msg("NATS event bus ready")
	return c, nil
}

// streamConfig binds the stream to exactly the configured topics.
func streamConfig(cfg config.NATSConfig) eventprocessor.StreamConfig {
	streamCfg := eventprocessor.DefaultStreamConfig()
	if cfg.StreamName != "" {
		streamCfg.Name = cfg.StreamName
	}
	if cfg.StreamRetention > 0 {
		streamCfg.MaxAge = cfg.StreamRetention
	}

	subjects := make([]string, 0, 3)
	seen := make(map[string]bool, 3)
	for _, topic := range []string{cfg.ActionsTopic, cfg.SimilarityTopic, cfg.PoisonTopic} {
		if topic == "" || seen[topic] {
			continue
		}
		seen[topic] = true
		subjects = append(subjects, topic)
	}
	if len(subjects) > 0 {
		streamCfg.Subjects = subjects
	}
	return streamCfg
}

// subscriberTemplate is copied for every durable the pipeline opens.
func subscriberTemplate(url string, cfg config.NATSConfig, stream string) eventprocessor.SubscriberConfig {
	sub := eventprocessor.DefaultSubscriberConfig(url, "")
	sub.StreamName = stream
	if cfg.AckWait > 0 {
		sub.AckWaitTimeout = cfg.AckWait
	}
	if cfg.MaxDeliver > 0 {
		sub.MaxDeliver = cfg.MaxDeliver
	}
	if cfg.MaxAckPending > 0 {
		sub.MaxAckPending = cfg.MaxAckPending
	}
	return sub
}

// pipelineConfig maps the NATS section onto the pipeline's topics and
// consumers. The same names are used by the in-process bus.
func pipelineConfig(cfg config.NATSConfig) eventprocessor.PipelineConfig {
	pc := eventprocessor.DefaultPipelineConfig()
	if cfg.ActionsTopic != "" {
		pc.ActionsTopic = cfg.ActionsTopic
	}
	if cfg.SimilarityTopic != "" {
		pc.SimilarityTopic = cfg.SimilarityTopic
	}
	if cfg.AggregatorDurable != "" {
		pc.AggregatorDurable = cfg.AggregatorDurable
	}
	if cfg.AnalyzerDurable != "" {
		pc.AnalyzerDurable = cfg.AnalyzerDurable
	}
	pc.Router.PoisonQueueTopic = cfg.PoisonTopic
	return pc
}

// Ping implements api.HealthChecker for the NATS connection and stream.
func (c *BusComponents) Ping(ctx context.Context) error {
	if c.conn == nil {
		return nil
	}
	if !c.conn.IsConnected() {
		return errNATSDisconnected
	}
	if c.streams != nil && !c.streams.IsHealthy(ctx) {
		return fmt.Errorf("stream %s unavailable", c.streams.Config().Name)
	}
	return nil
}

// Close closes the transport, then the connection, then the embedded server.
// It is safe on a partially initialized value.
func (c *BusComponents) Close(ctx context.Context) {
	if c == nil {
		return
	}
	if c.transport != nil {
		if err := c.transport.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event transport")
		}
	}
	if c.conn != nil {
		c.conn.Close()
	}
	if c.server != nil {
		if err := c.server.Shutdown(ctx); err != nil {
			logging.Error().Err(err).Msg("Error shutting down embedded NATS server")
		}
	}
}
