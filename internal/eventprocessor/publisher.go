// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package eventprocessor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/eventrec/internal/metrics"
	"github.com/tomtom215/eventrec/internal/models"
)

// NewNATSPublisher creates a Watermill JetStream publisher. The stream is
// expected to exist already (see StreamInitializer).
func NewNATSPublisher(cfg PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS publisher disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS publisher reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			TrackMsgId:    cfg.EnableTrackMsgID,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return pub, nil
}

// Publisher wraps a Watermill publisher with circuit breaker protection and
// publish metrics. It implements message.Publisher so the router can use it
// for handler output.
type Publisher struct {
	publisher      message.Publisher
	circuitBreaker *gobreaker.CircuitBreaker[any]
	serializer     *Serializer
	mu             sync.RWMutex
	closed         bool
}

// NewPublisher wraps pub. cb may be nil.
func NewPublisher(pub message.Publisher, cb *gobreaker.CircuitBreaker[any]) (*Publisher, error) {
	if pub == nil {
		return nil, fmt.Errorf("%w: publisher is required", ErrInvalidConfig)
	}
	return &Publisher{
		publisher:      pub,
		circuitBreaker: cb,
		serializer:     NewSerializer(),
	}, nil
}

// Publish sends messages to topic. The message UUID becomes the Nats-Msg-Id
// when none is set.
func (p *Publisher) Publish(topic string, msgs ...*message.Message) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrPublisherClosed
	}

	for _, msg := range msgs {
		if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
			msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
		}
	}

	var err error
	if p.circuitBreaker != nil {
		_, err = p.circuitBreaker.Execute(func() (any, error) {
			return nil, p.publisher.Publish(topic, msgs...)
		})
	} else {
		err = p.publisher.Publish(topic, msgs...)
	}

	metrics.RecordPublish(topic, err)
	return err
}

// PublishAction publishes a user action to topic and returns the action
// with its assigned id.
func (p *Publisher) PublishAction(ctx context.Context, topic string, action models.UserAction) (models.UserAction, error) {
	event := NewUserActionEvent(action)
	msg, err := p.serializer.ActionMessage(event)
	if err != nil {
		return action, err
	}
	msg.SetContext(ctx)

	if err := p.Publish(topic, msg); err != nil {
		return action, fmt.Errorf("publish action %s: %w", event.ActionID, err)
	}
	action.ID = event.ActionID
	return action, nil
}

// Close shuts down the underlying publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}

// Unwrap returns the underlying Watermill publisher, for components such as
// the poison queue that must bypass the breaker.
func (p *Publisher) Unwrap() message.Publisher {
	return p.publisher
}
