// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package services

import (
	"context"
	"fmt"
)

// StartStopper is a component with a background loop, such as
// state.Compactor.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// LifecycleService runs a StartStopper until its context is canceled.
// Stop must wait for the component's goroutines to exit.
type LifecycleService struct {
	component StartStopper
	name      string
}

// NewLifecycleService wraps component under name.
func NewLifecycleService(name string, component StartStopper) *LifecycleService {
	return &LifecycleService{component: component, name: name}
}

// Serve implements suture.Service.
func (s *LifecycleService) Serve(ctx context.Context) error {
	if err := s.component.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}

	<-ctx.Done()
	s.component.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer.
func (s *LifecycleService) String() string {
	return s.name
}

// RunFunc blocks until ctx is canceled or the work fails.
type RunFunc func(ctx context.Context) error

// RunService adapts a blocking Run(ctx), such as kafkabridge.Bridge.Run or
// grpcapi.Server.Serve.
type RunService struct {
	run  RunFunc
	name string
}

// NewRunService wraps run under name.
func NewRunService(name string, run RunFunc) *RunService {
	return &RunService{run: run, name: name}
}

// Serve implements suture.Service. A nil return before cancellation is
// reported as an error so the supervisor restarts the work.
func (s *RunService) Serve(ctx context.Context) error {
	err := s.run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	return fmt.Errorf("%s returned before shutdown", s.name)
}

// String implements fmt.Stringer.
func (s *RunService) String() string {
	return s.name
}
