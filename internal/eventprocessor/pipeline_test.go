// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package eventprocessor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/tomtom215/eventrec/internal/aggregator"
	"github.com/tomtom215/eventrec/internal/models"
)

type testPipeline struct {
	*Pipeline
	acc       *aggregator.Accumulator
	actions   *fakeActionStore
	sims      *fakeSimilarityStore
	transport *InProcessTransport
}

func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()

	transport := NewInProcessTransport(64, watermill.NopLogger{})
	t.Cleanup(func() { _ = transport.Close() })

	tp := &testPipeline{
		acc:       aggregator.NewAccumulator(zerolog.Nop()),
		actions:   newFakeActionStore(),
		sims:      newFakeSimilarityStore(),
		transport: transport,
	}

	cfg := DefaultPipelineConfig()
	cfg.Router.RetryInitialInterval = time.Millisecond
	cfg.Router.RetryMaxInterval = 5 * time.Millisecond
	cfg.Router.RetryMaxRetries = 200

	p, err := NewPipeline(cfg, transport, PipelineDeps{
		Accumulator:  tp.acc,
		Actions:      tp.actions,
		Similarities: tp.sims,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	tp.Pipeline = p
	return tp
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPipelineEndToEnd(t *testing.T) {
	t.Parallel()

	tp := newTestPipeline(t)
	ctx := context.Background()

	if err := tp.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer tp.Shutdown(ctx)

	if !tp.IsRunning() {
		t.Fatal("IsRunning() = false after Start")
	}

	for _, a := range []models.UserAction{
		testAction(1, 1, models.ActionLike, 1),
		testAction(1, 2, models.ActionLike, 2),
		testAction(1, 3, models.ActionView, 3),
	} {
		got, err := tp.PublishAction(ctx, a)
		if err != nil {
			t.Fatalf("PublishAction() error = %v", err)
		}
		if got.ID == "" {
			t.Error("PublishAction() returned action without id")
		}
	}

	waitFor(t, "actions stored", func() bool { return tp.actions.count() == 3 })
	waitFor(t, "similarities stored", func() bool { return tp.sims.count() == 3 })

	tests := []struct {
		a, b int64
		want float64
	}{
		{1, 2, 1.0},
		{1, 3, 0.4},
		{2, 3, 0.4},
	}
	for _, tt := range tests {
		s, ok := tp.sims.get(tt.a, tt.b)
		if !ok || s.Score != tt.want {
			t.Errorf("stored similarity(%d, %d) = %v, %v; want %v", tt.a, tt.b, s.Score, ok, tt.want)
		}
		if got := tp.acc.Similarity(tt.a, tt.b); got != tt.want {
			t.Errorf("accumulator Similarity(%d, %d) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}

	stats := tp.Stats()
	if got := stats[HandlerAggregator].Processed; got != 3 {
		t.Errorf("aggregator processed = %d, want 3", got)
	}
	if got := stats[HandlerAnalyzerSimilarities].Processed; got != 3 {
		t.Errorf("similarity handler processed = %d, want 3", got)
	}
}

func TestPipelineRetriesStoreFailure(t *testing.T) {
	t.Parallel()

	tp := newTestPipeline(t)
	tp.actions.mu.Lock()
	tp.actions.err = errors.New("database is locked")
	tp.actions.mu.Unlock()

	ctx := context.Background()
	if err := tp.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer tp.Shutdown(ctx)

	if _, err := tp.PublishAction(ctx, testAction(1, 1, models.ActionLike, 1)); err != nil {
		t.Fatalf("PublishAction() error = %v", err)
	}

	waitFor(t, "first failure", func() bool { return tp.Stats()[HandlerAnalyzerActions].Failed >= 1 })

	tp.actions.mu.Lock()
	tp.actions.err = nil
	tp.actions.mu.Unlock()

	waitFor(t, "action stored after retry", func() bool { return tp.actions.count() == 1 })
}

func TestPipelineRestart(t *testing.T) {
	t.Parallel()

	tp := newTestPipeline(t)
	ctx := context.Background()

	if err := tp.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	tp.Shutdown(ctx)
	if tp.IsRunning() {
		t.Fatal("IsRunning() = true after Shutdown")
	}

	if err := tp.Start(ctx); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	defer tp.Shutdown(ctx)

	if _, err := tp.PublishAction(ctx, testAction(4, 9, models.ActionRegister, 1)); err != nil {
		t.Fatalf("PublishAction() error = %v", err)
	}
	waitFor(t, "action stored after restart", func() bool { return tp.actions.count() == 1 })
}

func TestNewPipelineValidation(t *testing.T) {
	t.Parallel()

	transport := NewInProcessTransport(1, nil)
	defer transport.Close()

	deps := PipelineDeps{
		Accumulator:  aggregator.NewAccumulator(zerolog.Nop()),
		Actions:      newFakeActionStore(),
		Similarities: newFakeSimilarityStore(),
	}

	bad := DefaultPipelineConfig()
	bad.ActionsTopic = ""
	if _, err := NewPipeline(bad, transport, deps, zerolog.Nop()); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewPipeline(bad config) error = %v, want ErrInvalidConfig", err)
	}
	if _, err := NewPipeline(DefaultPipelineConfig(), nil, deps, zerolog.Nop()); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewPipeline(nil transport) error = %v, want ErrInvalidConfig", err)
	}

	noStore := deps
	noStore.Actions = nil
	if _, err := NewPipeline(DefaultPipelineConfig(), transport, noStore, zerolog.Nop()); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewPipeline(no action store) error = %v, want ErrInvalidConfig", err)
	}
}
