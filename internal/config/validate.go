// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateGRPC,
		c.validateLogging,
		c.validateDatabase,
		c.validateState,
		c.validateNATS,
		c.validateKafka,
		c.validateCache,
		c.validateRecommend,
		c.validateSupervisor,
	}
	for _, validator := range validators {
		if err := validator(); err != nil {
			return err
		}
	}
	return nil
}

func validatePort(port int, name string) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}

func (c *Config) validateServer() error {
	if err := validatePort(c.Server.Port, "HTTP_PORT"); err != nil {
		return err
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP_SHUTDOWN_TIMEOUT must be positive")
	}
	if !c.Server.RateLimitDisabled {
		if c.Server.RateLimitRequests < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1 when rate limiting is enabled")
		}
		if c.Server.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive when rate limiting is enabled")
		}
	}
	return nil
}

func (c *Config) validateGRPC() error {
	if !c.GRPC.Enabled {
		return nil
	}
	if err := validatePort(c.GRPC.Port, "GRPC_PORT"); err != nil {
		return err
	}
	if c.GRPC.Port == c.Server.Port && c.GRPC.Host == c.Server.Host {
		return fmt.Errorf("GRPC_PORT must differ from HTTP_PORT")
	}
	if c.GRPC.MaxRecvMsgSize < 1024 {
		return fmt.Errorf("GRPC_MAX_RECV_MSG_SIZE must be at least 1024 bytes")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled", "off":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, panic, disabled (got %q)", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console (got %q)", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must not be negative")
	}
	return nil
}

func (c *Config) validateState() error {
	if !c.State.Enabled {
		return nil
	}
	if c.State.Path == "" {
		return fmt.Errorf("STATE_PATH is required when STATE_ENABLED=true")
	}
	if c.State.GCRatio <= 0 || c.State.GCRatio >= 1 {
		return fmt.Errorf("state.gc_ratio must be between 0 and 1 (exclusive)")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if c.NATS.ActionsTopic == "" || c.NATS.SimilarityTopic == "" {
		return fmt.Errorf("NATS_ACTIONS_TOPIC and NATS_SIMILARITY_TOPIC are required")
	}
	if c.NATS.ActionsTopic == c.NATS.SimilarityTopic {
		return fmt.Errorf("NATS_ACTIONS_TOPIC and NATS_SIMILARITY_TOPIC must differ")
	}
	if c.NATS.AggregatorDurable == "" || c.NATS.AnalyzerDurable == "" {
		return fmt.Errorf("NATS_AGGREGATOR_DURABLE and NATS_ANALYZER_DURABLE are required")
	}
	if c.NATS.AggregatorDurable == c.NATS.AnalyzerDurable {
		return fmt.Errorf("the aggregator and analyzer must use different durable consumers")
	}
	if !c.NATS.Enabled {
		return nil
	}
	if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	if c.NATS.StreamName == "" {
		return fmt.Errorf("NATS_STREAM_NAME is required")
	}
	if c.NATS.EmbeddedServer {
		if err := validatePort(c.NATS.Port, "NATS_PORT"); err != nil {
			return err
		}
		if c.NATS.StoreDir == "" {
			return fmt.Errorf("NATS_STORE_DIR is required for the embedded server")
		}
	}
	if c.NATS.MaxDeliver < 1 {
		return fmt.Errorf("NATS_MAX_DELIVER must be at least 1")
	}
	return nil
}

func validateNATSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "nats", "tls", "ws", "wss":
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

func (c *Config) validateKafka() error {
	if !c.Kafka.Enabled {
		return nil
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	if c.Kafka.Topic == "" || c.Kafka.GroupID == "" {
		return fmt.Errorf("KAFKA_TOPIC and KAFKA_GROUP_ID are required when KAFKA_ENABLED=true")
	}
	if c.Kafka.MaxPollRecords < 1 {
		return fmt.Errorf("KAFKA_MAX_POLL_RECORDS must be at least 1")
	}
	if c.Kafka.ForwardRate < 0 {
		return fmt.Errorf("KAFKA_FORWARD_RATE must not be negative")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case "none":
		return nil
	case "memory":
		if c.Cache.Capacity < 1 {
			return fmt.Errorf("CACHE_CAPACITY must be at least 1 for the memory backend")
		}
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be none, memory or redis (got %q)", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	return nil
}

func (c *Config) validateRecommend() error {
	if c.Recommend.MaxResultsLimit < 1 {
		return fmt.Errorf("RECOMMEND_MAX_RESULTS_LIMIT must be at least 1")
	}
	if c.Recommend.MaxEventIDs < 1 {
		return fmt.Errorf("RECOMMEND_MAX_EVENT_IDS must be at least 1")
	}
	if c.Recommend.QueryTimeout <= 0 {
		return fmt.Errorf("RECOMMEND_QUERY_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateSupervisor() error {
	if c.Supervisor.FailureThreshold <= 0 {
		return fmt.Errorf("SUPERVISOR_FAILURE_THRESHOLD must be positive")
	}
	if c.Supervisor.FailureDecay <= 0 {
		return fmt.Errorf("SUPERVISOR_FAILURE_DECAY must be positive")
	}
	if c.Supervisor.ShutdownTimeout <= 0 {
		return fmt.Errorf("SUPERVISOR_SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}
