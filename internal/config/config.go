// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

// Package config loads Eventrec configuration with koanf.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables. See Load for the search order.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	GRPC       GRPCConfig       `koanf:"grpc"`
	Logging    LoggingConfig    `koanf:"logging"`
	Database   DatabaseConfig   `koanf:"database"`
	State      StateConfig      `koanf:"state"`
	NATS       NATSConfig       `koanf:"nats"`
	Kafka      KafkaConfig      `koanf:"kafka"`
	Cache      CacheConfig      `koanf:"cache"`
	Recommend  RecommendConfig  `koanf:"recommend"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins is empty by default, which disables cross-origin access.
	CORSOrigins []string `koanf:"cors_origins"`

	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// GRPCConfig configures the recommendation RPC server.
type GRPCConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	MaxRecvMsgSize  int           `koanf:"max_recv_msg_size"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// DatabaseConfig configures the DuckDB action and similarity stores.
type DatabaseConfig struct {
	// Path is the DuckDB file. ":memory:" keeps everything in process.
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// StateConfig configures the Badger store that makes accumulator state
// survive restarts. Disabled means the accumulator starts empty.
type StateConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Path       string        `koanf:"path"`
	SyncWrites bool          `koanf:"sync_writes"`
	GCInterval time.Duration `koanf:"gc_interval"`
	GCRatio    float64       `koanf:"gc_ratio"`
}

// NATSConfig configures the event bus. When Enabled is false the pipeline
// runs on an in-process Watermill channel instead of JetStream.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`

	StreamName      string        `koanf:"stream_name"`
	StreamRetention time.Duration `koanf:"stream_retention"`

	ActionsTopic    string `koanf:"actions_topic"`
	SimilarityTopic string `koanf:"similarity_topic"`
	PoisonTopic     string `koanf:"poison_topic"`

	// Durable consumer names. The aggregator and the analyzer read the
	// action topic independently.
	AggregatorDurable string `koanf:"aggregator_durable"`
	AnalyzerDurable   string `koanf:"analyzer_durable"`

	AckWait       time.Duration `koanf:"ack_wait"`
	MaxDeliver    int           `koanf:"max_deliver"`
	MaxAckPending int           `koanf:"max_ack_pending"`
}

// KafkaConfig configures the optional bridge from a Kafka topic into the bus.
type KafkaConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Brokers        []string `koanf:"brokers"`
	Topic          string   `koanf:"topic"`
	GroupID        string   `koanf:"group_id"`
	ClientID       string   `koanf:"client_id"`
	MaxPollRecords int      `koanf:"max_poll_records"`

	// ForwardRate caps forwarded records per second. 0 disables the limit.
	ForwardRate float64 `koanf:"forward_rate"`
}

// CacheConfig configures the similarity lookup cache.
type CacheConfig struct {
	// Backend is none, memory or redis.
	Backend  string        `koanf:"backend"`
	Capacity int           `koanf:"capacity"`
	TTL      time.Duration `koanf:"ttl"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	KeyPrefix     string `koanf:"key_prefix"`
}

// RecommendConfig bounds recommendation queries.
type RecommendConfig struct {
	MaxResultsLimit int           `koanf:"max_results_limit"`
	MaxEventIDs     int           `koanf:"max_event_ids"`
	QueryTimeout    time.Duration `koanf:"query_timeout"`
}

// SupervisorConfig configures the suture tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}
