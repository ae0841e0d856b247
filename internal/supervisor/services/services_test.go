// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var (
	_ suture.Service = (*HTTPServerService)(nil)
	_ suture.Service = (*PipelineService)(nil)
	_ suture.Service = (*LifecycleService)(nil)
	_ suture.Service = (*RunService)(nil)
)

type fakeHTTPServer struct {
	listenErr   error
	shutdownErr error
	listening   chan struct{}
	stop        chan struct{}
	shutdowns   atomic.Int32
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{listening: make(chan struct{}, 1), stop: make(chan struct{})}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	f.listening <- struct{}{}
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	close(f.stop)
	return f.shutdownErr
}

func serveAsync(ctx context.Context, svc suture.Service) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- svc.Serve(ctx) }()
	return errc
}

func waitErr(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return")
		return nil
	}
}

func TestHTTPServerService(t *testing.T) {
	t.Parallel()

	t.Run("graceful shutdown", func(t *testing.T) {
		t.Parallel()
		srv := newFakeHTTPServer()
		svc := NewHTTPServerService(srv, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		errc := serveAsync(ctx, svc)
		<-srv.listening
		cancel()

		if err := waitErr(t, errc); !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
		if got := srv.shutdowns.Load(); got != 1 {
			t.Errorf("Shutdown calls = %d, want 1", got)
		}
	})

	t.Run("listen failure", func(t *testing.T) {
		t.Parallel()
		bindErr := errors.New("bind: address already in use")
		srv := newFakeHTTPServer()
		srv.listenErr = bindErr

		err := NewHTTPServerService(srv, time.Second).Serve(context.Background())
		if !errors.Is(err, bindErr) {
			t.Errorf("Serve() = %v, want %v", err, bindErr)
		}
	})

	t.Run("shutdown failure", func(t *testing.T) {
		t.Parallel()
		shutdownErr := errors.New("drain timeout")
		srv := newFakeHTTPServer()
		srv.shutdownErr = shutdownErr
		svc := NewHTTPServerService(srv, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		errc := serveAsync(ctx, svc)
		<-srv.listening
		cancel()

		if err := waitErr(t, errc); !errors.Is(err, shutdownErr) {
			t.Errorf("Serve() = %v, want %v", err, shutdownErr)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		svc := NewHTTPServerService(newFakeHTTPServer(), 0)
		if svc.shutdownTimeout != defaultShutdownTimeout {
			t.Errorf("shutdownTimeout = %v, want %v", svc.shutdownTimeout, defaultShutdownTimeout)
		}
		if svc.String() != "http-server" {
			t.Errorf("String() = %q, want http-server", svc.String())
		}
	})
}

type fakePipeline struct {
	startErr  error
	running   atomic.Bool
	starts    atomic.Int32
	shutdowns atomic.Int32
}

func (f *fakePipeline) Start(context.Context) error {
	f.starts.Add(1)
	if f.startErr != nil {
		return f.startErr
	}
	f.running.Store(true)
	return nil
}

func (f *fakePipeline) Shutdown(context.Context) {
	f.shutdowns.Add(1)
	f.running.Store(false)
}

func (f *fakePipeline) IsRunning() bool { return f.running.Load() }

func TestPipelineService(t *testing.T) {
	t.Parallel()

	t.Run("shutdown on cancel", func(t *testing.T) {
		t.Parallel()
		p := &fakePipeline{}
		svc := NewPipelineService(p, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		errc := serveAsync(ctx, svc)
		deadline := time.Now().Add(2 * time.Second)
		for !p.IsRunning() && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		cancel()

		if err := waitErr(t, errc); !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
		if p.shutdowns.Load() != 1 {
			t.Errorf("Shutdown calls = %d, want 1", p.shutdowns.Load())
		}
	})

	t.Run("start failure", func(t *testing.T) {
		t.Parallel()
		startErr := errors.New("stream missing")
		svc := NewPipelineService(&fakePipeline{startErr: startErr}, time.Second)

		if err := svc.Serve(context.Background()); !errors.Is(err, startErr) {
			t.Errorf("Serve() = %v, want %v", err, startErr)
		}
	})

	t.Run("router stopped on its own", func(t *testing.T) {
		t.Parallel()
		p := &fakePipeline{}
		svc := NewPipelineService(p, time.Second)
		svc.checkInterval = 5 * time.Millisecond

		errc := serveAsync(context.Background(), svc)
		deadline := time.Now().Add(2 * time.Second)
		for !p.IsRunning() && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		p.running.Store(false)

		if err := waitErr(t, errc); !errors.Is(err, ErrPipelineStopped) {
			t.Errorf("Serve() = %v, want ErrPipelineStopped", err)
		}
	})
}

type fakeLoop struct {
	startErr error
	running  atomic.Bool
	stops    atomic.Int32
}

func (f *fakeLoop) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.running.Store(true)
	return nil
}

func (f *fakeLoop) Stop() {
	f.stops.Add(1)
	f.running.Store(false)
}

func (f *fakeLoop) IsRunning() bool { return f.running.Load() }

func TestLifecycleService(t *testing.T) {
	t.Parallel()

	loop := &fakeLoop{}
	svc := NewLifecycleService("state-compactor", loop)
	if svc.String() != "state-compactor" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := serveAsync(ctx, svc)
	deadline := time.Now().Add(2 * time.Second)
	for !loop.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	if err := waitErr(t, errc); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
	if loop.stops.Load() != 1 || loop.IsRunning() {
		t.Errorf("stops = %d running = %v, want 1 false", loop.stops.Load(), loop.IsRunning())
	}

	startErr := errors.New("closed store")
	if err := NewLifecycleService("x", &fakeLoop{startErr: startErr}).Serve(context.Background()); !errors.Is(err, startErr) {
		t.Errorf("Serve() with start failure = %v, want %v", err, startErr)
	}
}

func TestRunService(t *testing.T) {
	t.Parallel()

	runErr := errors.New("broker unreachable")

	tests := []struct {
		name    string
		run     RunFunc
		cancel  bool
		want    error
		wantErr bool
	}{
		{
			name:   "canceled",
			run:    func(ctx context.Context) error { <-ctx.Done(); return nil },
			cancel: true,
			want:   context.Canceled,
		},
		{
			name: "failure",
			run:  func(context.Context) error { return runErr },
			want: runErr,
		},
		{
			name:    "early nil return",
			run:     func(context.Context) error { return nil },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancel {
				cancel()
			}

			err := NewRunService("kafka-bridge", tt.run).Serve(ctx)
			switch {
			case tt.want != nil && !errors.Is(err, tt.want):
				t.Errorf("Serve() = %v, want %v", err, tt.want)
			case tt.wantErr && err == nil:
				t.Error("Serve() = nil, want error")
			}
		})
	}
}

func TestServicesUnderSupervisor(t *testing.T) {
	t.Parallel()

	srv := newFakeHTTPServer()
	attempts := atomic.Int32{}
	sup := suture.New("test", suture.Spec{FailureThreshold: 10, FailureBackoff: 10 * time.Millisecond, Timeout: time.Second})
	sup.Add(NewHTTPServerService(srv, time.Second))
	sup.Add(NewRunService("flaky", func(ctx context.Context) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		<-ctx.Done()
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	errc := sup.ServeBackground(ctx)
	<-srv.listening

	deadline := time.Now().Add(2 * time.Second)
	for attempts.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if attempts.Load() < 3 {
		t.Errorf("flaky attempts = %d, want >= 3", attempts.Load())
	}

	cancel()
	<-errc
	if srv.shutdowns.Load() != 1 {
		t.Errorf("Shutdown calls = %d, want 1", srv.shutdowns.Load())
	}
}
