// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package services

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// PipelineRunner is the lifecycle of eventprocessor.Pipeline.
type PipelineRunner interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context)
	IsRunning() bool
}

// PipelineService runs the ingest pipeline under supervision. A pipeline
// whose router stops on its own is reported as a failure so the supervisor
// starts it again.
type PipelineService struct {
	pipeline        PipelineRunner
	shutdownTimeout time.Duration
	checkInterval   time.Duration
	name            string
}

// NewPipelineService wraps pipeline. A non-positive shutdownTimeout uses 10s.
func NewPipelineService(pipeline PipelineRunner, shutdownTimeout time.Duration) *PipelineService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return &PipelineService{
		pipeline:        pipeline,
		shutdownTimeout: shutdownTimeout,
		checkInterval:   time.Second,
		name:            "ingest-pipeline",
	}
}

// ErrPipelineStopped is returned when the pipeline stops without being asked.
var ErrPipelineStopped = errors.New("pipeline stopped unexpectedly")

// Serve implements suture.Service.
func (s *PipelineService) Serve(ctx context.Context) error {
	if err := s.pipeline.Start(ctx); err != nil {
		return fmt.Errorf("pipeline start failed: %w", err)
	}

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			s.pipeline.Shutdown(shutdownCtx)
			return ctx.Err()

		case <-ticker.C:
			if !s.pipeline.IsRunning() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
				s.pipeline.Shutdown(shutdownCtx)
				cancel()
				return ErrPipelineStopped
			}
		}
	}
}

// String implements fmt.Stringer.
func (s *PipelineService) String() string {
	return s.name
}
