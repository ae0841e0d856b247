// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package eventprocessor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/eventrec/internal/models"
)

// Handler names as registered on the router.
const (
	HandlerAggregator           = "aggregator"
	HandlerAnalyzerActions      = "analyzer-actions"
	HandlerAnalyzerSimilarities = "analyzer-similarities"
)

// PipelineDeps are the stores and model the pipeline writes to.
type PipelineDeps struct {
	Accumulator  Ingester
	State        StateWriter // optional
	Actions      ActionAppender
	Similarities SimilarityWriter
	Feed         SimilarityObserver // optional
}

// Pipeline wires the aggregator and analyzer consumers onto a transport:
//
//	actions topic ──► aggregator ──► similarity topic ──► analyzer ──► similarity store
//	      └────────────────────────────────────────────► analyzer ──► action store
//
// Start may be called again after Shutdown; each run builds a fresh router.
type Pipeline struct {
	cfg       PipelineConfig
	transport Transport
	producer  *Publisher
	logger    zerolog.Logger
	wmLogger  watermill.LoggerAdapter

	aggregator   *AggregatorHandler
	actions      *ActionHandler
	similarities *SimilarityHandler

	mu      sync.Mutex
	router  *Router
	cancel  context.CancelFunc
	running atomic.Bool
	current atomic.Pointer[Router]
}

// NewPipeline validates cfg and builds the handlers.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewPipeline(cfg PipelineConfig, transport Transport, deps PipelineDeps, logger zerolog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, fmt.Errorf("%w: transport is required", ErrInvalidConfig)
	}

	logger = logger.With().Str("component", "pipeline").Logger()

	agg, err := NewAggregatorHandler(deps.Accumulator, deps.State, logger)
	if err != nil {
		return nil, err
	}
	acts, err := NewActionHandler(deps.Actions, logger)
	if err != nil {
		return nil, err
	}
	sims, err := NewSimilarityHandler(deps.Similarities, logger)
	if err != nil {
		return nil, err
	}
	sims.observer = deps.Feed

	producer, ok := transport.Publisher().(*Publisher)
	if !ok {
		producer, err = NewPublisher(transport.Publisher(), nil)
		if err != nil {
			return nil, err
		}
	}

	return &Pipeline{
		cfg:          cfg,
		transport:    transport,
		producer:     producer,
		logger:       logger,
		wmLogger:     NewWatermillLogger(),
		aggregator:   agg,
		actions:      acts,
		similarities: sims,
	}, nil
}

// similarityDurable is the analyzer consumer of the similarity topic.
func (p *Pipeline) similarityDurable() string {
	return p.cfg.AnalyzerDurable + "-similarities"
}

func (p *Pipeline) buildRouter() (*Router, error) {
	// The transport owns its publisher; the router must not close it.
	pub := p.transport.Publisher()
	var poisonPub message.Publisher = nopClosePublisher{pub}
	if wrapped, ok := pub.(*Publisher); ok {
		poisonPub = nopClosePublisher{wrapped.Unwrap()}
	}
	pub = nopClosePublisher{pub}

	router, err := NewRouter(&p.cfg.Router, poisonPub, p.wmLogger)
	if err != nil {
		return nil, err
	}

	aggSub, err := p.transport.Subscriber(p.cfg.AggregatorDurable)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", p.cfg.AggregatorDurable, err)
	}
	actSub, err := p.transport.Subscriber(p.cfg.AnalyzerDurable)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", p.cfg.AnalyzerDurable, err)
	}
	simSub, err := p.transport.Subscriber(p.similarityDurable())
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", p.similarityDurable(), err)
	}

	router.AddHandler(HandlerAggregator, p.cfg.ActionsTopic, aggSub, p.cfg.SimilarityTopic, pub, p.aggregator.Handle)
	router.AddConsumerHandler(HandlerAnalyzerActions, p.cfg.ActionsTopic, actSub, p.actions.Handle)
	router.AddConsumerHandler(HandlerAnalyzerSimilarities, p.cfg.SimilarityTopic, simSub, p.similarities.Handle)
	return router, nil
}

// Start builds the router and returns once it is consuming.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running.Load() {
		return nil
	}

	router, err := p.buildRouter()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	started := router.RunAsync(runCtx, errc)

	select {
	case <-started:
	case err := <-errc:
		cancel()
		return fmt.Errorf("start router: %w", err)
	case <-ctx.Done():
		cancel()
		_ = router.Close()
		return ctx.Err()
	}

	p.router = router
	p.cancel = cancel
	p.running.Store(true)
	p.current.Store(router)

	p.logger.Info().
		Str("actions_topic", p.cfg.ActionsTopic).
		Str("similarity_topic", p.cfg.SimilarityTopic).
		Strs("handlers", router.Handlers()).
		Msg("pipeline started")
	return nil
}

// Shutdown stops the router. The transport stays open for its owner to close.
func (p *Pipeline) Shutdown(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running.Load() {
		return
	}

	done := make(chan error, 1)
	go func() { done <- p.router.Close() }()

	select {
	case err := <-done:
		if err != nil {
			p.logger.Error().Err(err).Msg("pipeline router close failed")
		}
	case <-ctx.Done():
		p.logger.Warn().Msg("pipeline shutdown timed out")
	}

	p.cancel()
	p.router = nil
	p.current.Store(nil)
	p.running.Store(false)
	p.logger.Info().Msg("pipeline stopped")
}

// IsRunning reports whether the router is consuming. It turns false when
// the router stops on its own, before Shutdown is called.
func (p *Pipeline) IsRunning() bool {
	r := p.current.Load()
	return r != nil && r.IsRunning()
}

// PublishAction publishes a user action to the actions topic and returns it
// with its assigned id.
func (p *Pipeline) PublishAction(ctx context.Context, action models.UserAction) (models.UserAction, error) {
	return p.producer.PublishAction(ctx, p.cfg.ActionsTopic, action)
}

// Publisher returns the raw publisher used for handler output and producers.
func (p *Pipeline) Publisher() message.Publisher {
	return p.transport.Publisher()
}

// Stats returns per-handler counters keyed by handler name.
func (p *Pipeline) Stats() map[string]HandlerStats {
	return map[string]HandlerStats{
		HandlerAggregator:           p.aggregator.Stats(),
		HandlerAnalyzerActions:      p.actions.Stats(),
		HandlerAnalyzerSimilarities: p.similarities.Stats(),
	}
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() PipelineConfig {
	return p.cfg
}
