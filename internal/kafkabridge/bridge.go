// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

// Package kafkabridge forwards user actions from a Kafka topic into the
// statistics bus.
//
// The bridge joins a consumer group starting at the earliest offset, polls a
// bounded batch, publishes every decodable record and commits the batch only
// after all of it was forwarded. A publish failure ends Run without
// committing, so the restarted bridge reads the batch again. Each forwarded
// action gets an id derived from its topic, partition and offset, which makes
// re-forwarding idempotent downstream.
package kafkabridge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/time/rate"

	"github.com/tomtom215/eventrec/internal/metrics"
	"github.com/tomtom215/eventrec/internal/models"
)

// ActionPublisher publishes a user action onto the bus.
type ActionPublisher interface {
	PublishAction(ctx context.Context, action models.UserAction) (models.UserAction, error)
}

// recordSource is the part of *kgo.Client the bridge uses.
type recordSource interface {
	PollRecords(ctx context.Context, maxPollRecords int) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
	Close()
}

// Config configures the bridge.
type Config struct {
	Brokers        []string
	Topic          string
	GroupID        string
	ClientID       string
	MaxPollRecords int

	// ForwardRate caps forwarded records per second. 0 disables the limit.
	ForwardRate float64
}

// DefaultConfig returns the defaults: earliest offset, 500 records per poll.
func DefaultConfig() Config {
	return Config{
		Brokers:        []string{"localhost:9092"},
		Topic:          "stats.user-actions.v1",
		GroupID:        "eventrec-bridge",
		ClientID:       "eventrec",
		MaxPollRecords: 500,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch {
	case len(c.Brokers) == 0:
		return errors.New("kafka: at least one broker is required")
	case c.Topic == "":
		return errors.New("kafka: topic is required")
	case c.GroupID == "":
		return errors.New("kafka: group id is required")
	case c.MaxPollRecords <= 0:
		return errors.New("kafka: max poll records must be positive")
	case c.ForwardRate < 0:
		return errors.New("kafka: forward rate must not be negative")
	}
	return nil
}

// Stats reports bridge progress.
type Stats struct {
	Forwarded  int64     `json:"forwarded"`
	Dropped    int64     `json:"dropped"`
	Commits    int64     `json:"commits"`
	LastCommit time.Time `json:"last_commit"`
}

// Bridge consumes a Kafka topic and republishes its records.
type Bridge struct {
	cfg       Config
	publisher ActionPublisher
	newSource func() (recordSource, error)
	limiter   *rate.Limiter
	logger    zerolog.Logger

	running    atomic.Bool
	forwarded  atomic.Int64
	dropped    atomic.Int64
	commits    atomic.Int64
	lastCommit atomic.Int64
}

// New creates a bridge. The Kafka client is created on each Run.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(cfg Config, publisher ActionPublisher, logger zerolog.Logger) (*Bridge, error) {
	b, err := newBridge(cfg, publisher, logger)
	if err != nil {
		return nil, err
	}
	b.newSource = func() (recordSource, error) {
		return kgo.NewClient(
			kgo.SeedBrokers(cfg.Brokers...),
			kgo.ClientID(cfg.ClientID),
			kgo.ConsumerGroup(cfg.GroupID),
			kgo.ConsumeTopics(cfg.Topic),
			kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
			kgo.DisableAutoCommit(),
		)
	}
	return b, nil
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func newBridge(cfg Config, publisher ActionPublisher, logger zerolog.Logger) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if publisher == nil {
		return nil, errors.New("kafka: publisher is required")
	}

	var limiter *rate.Limiter
	if cfg.ForwardRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ForwardRate), max(1, int(cfg.ForwardRate)))
	}

	return &Bridge{
		cfg:       cfg,
		publisher: publisher,
		limiter:   limiter,
		logger: logger.With().
			Str("component", "kafka-bridge").
			Str("topic", cfg.Topic).
			Str("group", cfg.GroupID).
			Logger(),
	}, nil
}

// Run consumes until ctx is canceled. It returns nil on cancellation and an
// error when a batch could not be forwarded or committed.
func (b *Bridge) Run(ctx context.Context) error {
	src, err := b.newSource()
	if err != nil {
		return fmt.Errorf("create kafka client: %w", err)
	}
	defer src.Close()

	b.running.Store(true)
	defer b.running.Store(false)
	b.logger.Info().Strs("brokers", b.cfg.Brokers).Msg("kafka bridge started")

	for {
		fetches := src.PollRecords(ctx, b.cfg.MaxPollRecords)
		if ctx.Err() != nil || fetches.IsClientClosed() {
			b.logger.Info().Msg("kafka bridge stopped")
			return nil
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			b.logger.Warn().Err(err).
				Str("fetch_topic", topic).
				Int32("partition", partition).
				Msg("kafka fetch error")
		})

		records := fetches.Records()
		if len(records) == 0 {
			continue
		}

		n, err := b.forward(ctx, records)
		metrics.RecordKafkaForward(n, err)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := src.CommitRecords(ctx, records...); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit kafka offsets: %w", err)
		}
		b.commits.Add(1)
		b.lastCommit.Store(time.Now().UnixNano())
	}
}

// forward publishes records in order and returns how many were published.
// Undecodable records are logged and skipped.
func (b *Bridge) forward(ctx context.Context, records []*kgo.Record) (int, error) {
	n := 0
	for _, r := range records {
		action, err := decodeRecord(r)
		if err != nil {
			b.dropped.Add(1)
			b.logger.Warn().Err(err).
				Int32("partition", r.Partition).
				Int64("offset", r.Offset).
				Msg("dropping undecodable kafka record")
			continue
		}

		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return n, err
			}
		}

		if _, err := b.publisher.PublishAction(ctx, action); err != nil {
			return n, fmt.Errorf("forward record %s/%d@%d: %w", r.Topic, r.Partition, r.Offset, err)
		}
		n++
		b.forwarded.Add(1)
	}
	return n, nil
}

// kafkaAction is the JSON value of a user action record. action_id is
// optional.
type kafkaAction struct {
	ActionID   string    `json:"action_id"`
	UserID     int64     `json:"user_id"`
	EventID    int64     `json:"event_id"`
	ActionType string    `json:"action_type"`
	Timestamp  time.Time `json:"timestamp"`
}

// decodeRecord converts a record value into a user action. A record without
// a timestamp field takes the Kafka record timestamp.
func decodeRecord(r *kgo.Record) (models.UserAction, error) {
	var ka kafkaAction
	if err := json.Unmarshal(r.Value, &ka); err != nil {
		return models.UserAction{}, fmt.Errorf("decode record: %w", err)
	}
	if ka.UserID <= 0 || ka.EventID <= 0 {
		return models.UserAction{}, fmt.Errorf("decode record: user_id and event_id must be positive")
	}

	id := ka.ActionID
	if _, err := uuid.Parse(id); err != nil {
		id = recordID(r).String()
	}

	ts := ka.Timestamp
	if ts.IsZero() {
		ts = r.Timestamp
	}

	return models.UserAction{
		ID:        id,
		UserID:    ka.UserID,
		EventID:   ka.EventID,
		Kind:      models.ParseActionKind(ka.ActionType),
		Timestamp: ts.UTC(),
	}, nil
}

// recordID is stable for a given record position.
func recordID(r *kgo.Record) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("kafka://%s/%d/%d", r.Topic, r.Partition, r.Offset)))
}

// IsRunning reports whether Run is consuming.
func (b *Bridge) IsRunning() bool {
	return b.running.Load()
}

// Stats returns bridge counters.
func (b *Bridge) Stats() Stats {
	s := Stats{
		Forwarded: b.forwarded.Load(),
		Dropped:   b.dropped.Load(),
		Commits:   b.commits.Load(),
	}
	if ns := b.lastCommit.Load(); ns != 0 {
		s.LastCommit = time.Unix(0, ns)
	}
	return s
}
