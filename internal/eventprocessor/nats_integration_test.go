// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

//go:build integration

package eventprocessor

import (
	"context"
	"testing"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/tomtom215/eventrec/internal/aggregator"
	"github.com/tomtom215/eventrec/internal/models"
)

func TestNATSPipelineIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	srvCfg := DefaultServerConfig()
	srvCfg.Port = -1
	srvCfg.StoreDir = t.TempDir()
	srv, err := NewEmbeddedServer(&srvCfg)
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error = %v", err)
	}
	defer srv.Shutdown(context.Background())

	if !srv.JetStreamEnabled() {
		t.Fatal("JetStreamEnabled() = false")
	}

	nc, err := natsgo.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("jetstream.New() error = %v", err)
	}
	streamCfg := DefaultStreamConfig()
	si, err := NewStreamInitializer(js, &streamCfg)
	if err != nil {
		t.Fatalf("NewStreamInitializer() error = %v", err)
	}
	if _, err := si.EnsureStream(ctx); err != nil {
		t.Fatalf("EnsureStream() error = %v", err)
	}

	rawPub, err := NewNATSPublisher(DefaultPublisherConfig(srv.ClientURL()), nil)
	if err != nil {
		t.Fatalf("NewNATSPublisher() error = %v", err)
	}
	pub, err := NewPublisher(rawPub, NewCircuitBreaker(DefaultCircuitBreakerConfig("integration")))
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}

	subCfg := DefaultSubscriberConfig(srv.ClientURL(), "")
	subCfg.StreamName = streamCfg.Name
	transport, err := NewNATSTransport(pub, subCfg, nil)
	if err != nil {
		t.Fatalf("NewNATSTransport() error = %v", err)
	}
	defer transport.Close()

	acc := aggregator.NewAccumulator(zerolog.Nop())
	actions := newFakeActionStore()
	sims := newFakeSimilarityStore()

	p, err := NewPipeline(DefaultPipelineConfig(), transport, PipelineDeps{
		Accumulator:  acc,
		Actions:      actions,
		Similarities: sims,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Shutdown(context.Background())

	first, err := p.PublishAction(ctx, testAction(1, 1, models.ActionLike, 1))
	if err != nil {
		t.Fatalf("PublishAction() error = %v", err)
	}
	// A duplicate publish of the same action id is dropped by the stream.
	if _, err := p.PublishAction(ctx, first); err != nil {
		t.Fatalf("PublishAction(duplicate) error = %v", err)
	}
	if _, err := p.PublishAction(ctx, testAction(1, 2, models.ActionRegister, 2)); err != nil {
		t.Fatalf("PublishAction() error = %v", err)
	}

	waitFor(t, "actions stored", func() bool { return actions.count() == 2 })
	waitFor(t, "similarity stored", func() bool { return sims.count() == 1 })

	if s, _ := sims.get(1, 2); s.Score != 0.8 {
		t.Errorf("similarity(1, 2) = %v, want 0.8", s.Score)
	}
}
