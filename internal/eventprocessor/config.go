// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package eventprocessor

import (
	"fmt"
	"time"
)

// Default topics.
const (
	DefaultActionsTopic    = "stats.user-actions.v1"
	DefaultSimilarityTopic = "stats.events-similarity.v1"
	DefaultPoisonTopic     = "stats.poison"
)

// ServerConfig holds embedded NATS server configuration.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DefaultServerConfig returns defaults for the embedded NATS server.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          "/data/nats/jetstream",
		JetStreamMaxMem:   1 << 30,  // 1GB
		JetStreamMaxStore: 10 << 30, // 10GB
	}
}

// PublisherConfig holds NATS publisher configuration.
type PublisherConfig struct {
	URL              string
	MaxReconnects    int
	ReconnectWait    time.Duration
	ReconnectBuffer  int
	EnableTrackMsgID bool //nolint:revive // ID is correct per Go conventions
}

// DefaultPublisherConfig returns defaults for a publisher connected to url.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:              url,
		MaxReconnects:    -1, // Unlimited
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024, // 8MB
		EnableTrackMsgID: true,
	}
}

// SubscriberConfig holds durable JetStream subscriber configuration. Each
// consumer of a topic gets its own DurableName and QueueGroup so consumers
// read the stream independently.
type SubscriberConfig struct {
	URL              string
	DurableName      string
	QueueGroup       string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	MaxDeliver       int
	MaxAckPending    int
	CloseTimeout     time.Duration
	MaxReconnects    int
	ReconnectWait    time.Duration

	// StreamName binds to an existing stream instead of auto-provisioning one.
	StreamName string
}

// DefaultSubscriberConfig returns defaults for the consumer durable.
func DefaultSubscriberConfig(url, durable string) SubscriberConfig {
	return SubscriberConfig{
		URL:         url,
		DurableName: durable,
		QueueGroup:  durable,
		// One subscriber keeps per-key order for the single-writer accumulator.
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		MaxDeliver:       5,
		MaxAckPending:    1000,
		CloseTimeout:     30 * time.Second,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
	}
}

// StreamConfig defines the stats stream.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
	Replicas        int
}

// DefaultStreamConfig returns the stream carrying actions, similarities and
// poisoned messages.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Name:            "STATS",
		Subjects:        []string{"stats.>"},
		MaxAge:          7 * 24 * time.Hour,
		MaxBytes:        10 * 1024 * 1024 * 1024, // 10GB
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// RouterConfig holds configuration for the Watermill Router.
type RouterConfig struct {
	// CloseTimeout is how long to wait for handlers to finish when closing.
	CloseTimeout time.Duration

	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	// ThrottlePerSecond limits handled messages per second. 0 disables it.
	ThrottlePerSecond int64

	// PoisonQueueTopic receives messages that failed permanently or ran out
	// of retries. Empty disables the poison queue.
	PoisonQueueTopic string
}

// DefaultRouterConfig returns production defaults for the Router.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      5,
		RetryInitialInterval: time.Second,
		RetryMaxInterval:     time.Minute,
		RetryMultiplier:      2.0,
		PoisonQueueTopic:     DefaultPoisonTopic,
	}
}

// PipelineConfig names the topics and consumers of the stats pipeline.
type PipelineConfig struct {
	ActionsTopic    string
	SimilarityTopic string

	// AggregatorDurable consumes actions into the accumulator.
	AggregatorDurable string

	// AnalyzerDurable consumes actions and similarities into the stores.
	AnalyzerDurable string

	Router RouterConfig
}

// DefaultPipelineConfig returns the default topics and consumer names.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ActionsTopic:      DefaultActionsTopic,
		SimilarityTopic:   DefaultSimilarityTopic,
		AggregatorDurable: "aggregator",
		AnalyzerDurable:   "analyzer",
		Router:            DefaultRouterConfig(),
	}
}

// Validate checks the pipeline configuration.
func (c *PipelineConfig) Validate() error {
	switch {
	case c.ActionsTopic == "":
		return fmt.Errorf("%w: actions topic is required", ErrInvalidConfig)
	case c.SimilarityTopic == "":
		return fmt.Errorf("%w: similarity topic is required", ErrInvalidConfig)
	case c.ActionsTopic == c.SimilarityTopic:
		return fmt.Errorf("%w: actions and similarity topics must differ", ErrInvalidConfig)
	case c.AggregatorDurable == "" || c.AnalyzerDurable == "":
		return fmt.Errorf("%w: consumer names are required", ErrInvalidConfig)
	case c.AggregatorDurable == c.AnalyzerDurable:
		return fmt.Errorf("%w: aggregator and analyzer consumers must differ", ErrInvalidConfig)
	}
	return nil
}

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32        // Allowed in half-open state
	Interval         time.Duration // Reset interval for counts
	Timeout          time.Duration // Time to stay open
	FailureThreshold uint32        // Failures before opening
}

// DefaultCircuitBreakerConfig returns production defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}
