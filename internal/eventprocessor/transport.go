// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package eventprocessor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/eventrec/internal/logging"
)

// Transport supplies the message bus for the pipeline. Every durable name
// returned by Subscriber reads the topic independently of the others.
type Transport interface {
	Publisher() message.Publisher
	Subscriber(durable string) (message.Subscriber, error)
	Close() error
}

// NewWatermillLogger returns a Watermill logger backed by the global zerolog logger.
func NewWatermillLogger() watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logging.NewSlogLogger())
}

// InProcessTransport is a Go channel bus. Each subscription receives every
// message published to its topic. Messages are not persisted.
type InProcessTransport struct {
	pubsub *gochannel.GoChannel
}

// NewInProcessTransport creates an in-memory transport.
func NewInProcessTransport(buffer int64, logger watermill.LoggerAdapter) *InProcessTransport {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &InProcessTransport{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: buffer}, logger),
	}
}

// Publisher implements Transport.
func (t *InProcessTransport) Publisher() message.Publisher {
	return t.pubsub
}

// Subscriber implements Transport. The router closes its subscribers on
// shutdown, and the shared channel must outlive a router restart.
func (t *InProcessTransport) Subscriber(string) (message.Subscriber, error) {
	return nopCloseSubscriber{t.pubsub}, nil
}

// Close implements Transport.
func (t *InProcessTransport) Close() error {
	return t.pubsub.Close()
}

// NATSTransport publishes to JetStream and opens one durable consumer per
// subscriber name.
type NATSTransport struct {
	publisher *Publisher
	subCfg    SubscriberConfig
	logger    watermill.LoggerAdapter

	mu          sync.Mutex
	subscribers []message.Subscriber
}

// NewNATSTransport wraps an existing publisher. subCfg is the template for
// every durable consumer; its DurableName and QueueGroup are replaced.
func NewNATSTransport(pub *Publisher, subCfg SubscriberConfig, logger watermill.LoggerAdapter) (*NATSTransport, error) {
	if pub == nil {
		return nil, fmt.Errorf("%w: publisher is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &NATSTransport{publisher: pub, subCfg: subCfg, logger: logger}, nil
}

// Publisher implements Transport.
func (t *NATSTransport) Publisher() message.Publisher {
	return t.publisher
}

// Subscriber implements Transport.
func (t *NATSTransport) Subscriber(durable string) (message.Subscriber, error) {
	cfg := t.subCfg
	cfg.DurableName = durable
	cfg.QueueGroup = durable

	sub, err := NewNATSSubscriber(&cfg, t.logger)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.subscribers = append(t.subscribers, sub)
	t.mu.Unlock()
	return sub, nil
}

// Close closes every subscriber, then the publisher.
func (t *NATSTransport) Close() error {
	t.mu.Lock()
	subs := t.subscribers
	t.subscribers = nil
	t.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := t.publisher.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

type nopCloseSubscriber struct {
	message.Subscriber
}

func (nopCloseSubscriber) Close() error { return nil }

type nopClosePublisher struct {
	message.Publisher
}

func (nopClosePublisher) Close() error { return nil }
