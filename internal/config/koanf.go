// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/eventrec/config.yaml",
	"/etc/eventrec/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Topic names shared by every deployment unless overridden.
const (
	DefaultActionsTopic    = "stats.user-actions.v1"
	DefaultSimilarityTopic = "stats.events-similarity.v1"
	DefaultPoisonTopic     = "stats.poison"
)

// DefaultConfig returns a Config with every default applied.
// Defaults are loaded first and then overridden by the config file and env vars.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{},
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		GRPC: GRPCConfig{
			Enabled:         true,
			Host:            "0.0.0.0",
			Port:            9090,
			MaxRecvMsgSize:  4 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Database: DatabaseConfig{
			Path:      "/data/eventrec.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		State: StateConfig{
			Enabled:    false,
			Path:       "/data/state",
			SyncWrites: false,
			GCInterval: 10 * time.Minute,
			GCRatio:    0.5,
		},
		NATS: NATSConfig{
			Enabled:           true,
			URL:               "nats://127.0.0.1:4222",
			EmbeddedServer:    true,
			Host:              "127.0.0.1",
			Port:              4222,
			StoreDir:          "/data/nats/jetstream",
			MaxMemory:         256 << 20, // 256MB
			MaxStore:          4 << 30,   // 4GB
			StreamName:        "STATS",
			StreamRetention:   7 * 24 * time.Hour,
			ActionsTopic:      DefaultActionsTopic,
			SimilarityTopic:   DefaultSimilarityTopic,
			PoisonTopic:       DefaultPoisonTopic,
			AggregatorDurable: "aggregator",
			AnalyzerDurable:   "analyzer",
			AckWait:           30 * time.Second,
			MaxDeliver:        5,
			MaxAckPending:     1000,
		},
		Kafka: KafkaConfig{
			Enabled:        false,
			Brokers:        []string{"localhost:9092"},
			Topic:          DefaultActionsTopic,
			GroupID:        "eventrec-bridge",
			ClientID:       "eventrec",
			MaxPollRecords: 500,
			ForwardRate:    0,
		},
		Cache: CacheConfig{
			Backend:   "memory",
			Capacity:  10000,
			TTL:       time.Minute,
			RedisAddr: "localhost:6379",
			RedisDB:   0,
			KeyPrefix: "eventrec:",
		},
		Recommend: RecommendConfig{
			MaxResultsLimit: 100,
			MaxEventIDs:     1000,
			QueryTimeout:    10 * time.Second,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Load loads configuration using koanf with layered sources:
//  1. Defaults: DefaultConfig
//  2. Config File: optional YAML file (CONFIG_PATH, then DefaultConfigPaths)
//  3. Environment Variables: override any mapped setting
//
// The returned config has passed Validate.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// HTTP_PORT -> server.port, KAFKA_BROKERS -> kafka.brokers
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "" if none exist.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed as comma-separated lists when they arrive from env vars.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"kafka.brokers",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
var envMappings = map[string]string{
	// HTTP server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_requests",
	"rate_limit_window":     "server.rate_limit_window",
	"disable_rate_limit":    "server.rate_limit_disabled",

	// gRPC
	"grpc_enabled":           "grpc.enabled",
	"grpc_host":              "grpc.host",
	"grpc_port":              "grpc.port",
	"grpc_max_recv_msg_size": "grpc.max_recv_msg_size",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// DuckDB
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	// Accumulator state
	"state_enabled":     "state.enabled",
	"state_path":        "state.path",
	"state_sync_writes": "state.sync_writes",

	// NATS
	"nats_enabled":            "nats.enabled",
	"nats_url":                "nats.url",
	"nats_embedded":           "nats.embedded_server",
	"nats_host":               "nats.host",
	"nats_port":               "nats.port",
	"nats_store_dir":          "nats.store_dir",
	"nats_max_memory":         "nats.max_memory",
	"nats_max_store":          "nats.max_store",
	"nats_stream_name":        "nats.stream_name",
	"nats_stream_retention":   "nats.stream_retention",
	"nats_actions_topic":      "nats.actions_topic",
	"nats_similarity_topic":   "nats.similarity_topic",
	"nats_poison_topic":       "nats.poison_topic",
	"nats_aggregator_durable": "nats.aggregator_durable",
	"nats_analyzer_durable":   "nats.analyzer_durable",
	"nats_ack_wait":           "nats.ack_wait",
	"nats_max_deliver":        "nats.max_deliver",

	// Kafka bridge
	"kafka_enabled":          "kafka.enabled",
	"kafka_brokers":          "kafka.brokers",
	"kafka_topic":            "kafka.topic",
	"kafka_group_id":         "kafka.group_id",
	"kafka_client_id":        "kafka.client_id",
	"kafka_max_poll_records": "kafka.max_poll_records",
	"kafka_forward_rate":     "kafka.forward_rate",

	// Cache
	"cache_backend":  "cache.backend",
	"cache_capacity": "cache.capacity",
	"cache_ttl":      "cache.ttl",
	"redis_addr":     "cache.redis_addr",
	"redis_password": "cache.redis_password",
	"redis_db":       "cache.redis_db",

	// Recommendation queries
	"recommend_max_results_limit": "recommend.max_results_limit",
	"recommend_max_event_ids":     "recommend.max_event_ids",
	"recommend_query_timeout":     "recommend.query_timeout",

	// Supervisor
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc maps an environment variable name to a koanf path.
// Unmapped variables return "" so koanf skips them and unrelated
// environment does not leak into the config.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
