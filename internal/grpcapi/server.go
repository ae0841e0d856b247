// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/tomtom215/eventrec/internal/logging"
)

// RequestIDHeader is the metadata key carrying the caller's request id.
const RequestIDHeader = "x-request-id"

// Config configures the gRPC server.
type Config struct {
	Addr            string
	MaxRecvMsgSize  int
	ShutdownTimeout time.Duration
}

// Server hosts the recommendations service.
type Server struct {
	cfg     Config
	grpc    *grpc.Server
	logger  zerolog.Logger
	addr    atomic.Value // string
	running atomic.Bool
}

// NewServer creates a server for svc.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewServer(cfg Config, svc *Service, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "grpc").Logger()

	opts := []grpc.ServerOption{
		grpc.ForceServerCodec(Codec()),
		grpc.ChainUnaryInterceptor(unaryRecover(logger), unaryLogging(logger)),
		grpc.ChainStreamInterceptor(streamRecover(logger), streamLogging(logger)),
	}
	if cfg.MaxRecvMsgSize > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(cfg.MaxRecvMsgSize))
	}

	gs := grpc.NewServer(opts...)
	svc.Register(gs)

	return &Server{cfg: cfg, grpc: gs, logger: logger}
}

// Serve listens on the configured address and serves until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.ServeListener(ctx, lis)
}

// ServeListener serves on lis until ctx is canceled, then stops gracefully,
// forcing the stop after ShutdownTimeout.
func (s *Server) ServeListener(ctx context.Context, lis net.Listener) error {
	s.addr.Store(lis.Addr().String())
	s.running.Store(true)
	defer s.running.Store(false)

	errc := make(chan error, 1)
	go func() { errc <- s.grpc.Serve(lis) }()
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC server listening")

	select {
	case err := <-errc:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		s.logger.Warn().Dur("timeout", timeout).Msg("gRPC graceful stop timed out, forcing")
		s.grpc.Stop()
	}
	s.logger.Info().Msg("gRPC server stopped")
	return nil
}

// Addr returns the bound address once serving.
func (s *Server) Addr() string {
	if v, ok := s.addr.Load().(string); ok {
		return v
	}
	return ""
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	return s.running.Load()
}

// requestContext attaches the caller's request id, or a new one, to ctx.
func requestContext(ctx context.Context) context.Context {
	id := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(RequestIDHeader); len(vals) > 0 {
			id = vals[0]
		}
	}
	if id == "" {
		id = logging.GenerateRequestID()
	}
	return logging.ContextWithRequestID(ctx, id)
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func unaryLogging(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = requestContext(ctx)
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(logger, ctx, info.FullMethod, start, err)
		return resp, err
	}
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func streamLogging(logger zerolog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := requestContext(ss.Context())
		start := time.Now()
		err := handler(srv, &contextStream{ServerStream: ss, ctx: ctx})
		logCall(logger, ctx, info.FullMethod, start, err)
		return err
	}
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func logCall(logger zerolog.Logger, ctx context.Context, method string, start time.Time, err error) {
	code := status.Code(err)
	ev := logger.Debug()
	switch code {
	case codes.OK:
	case codes.InvalidArgument, codes.Unimplemented:
		ev = logger.Warn()
	default:
		ev = logger.Error()
	}
	ev.Str("method", method).
		Str("request_id", logging.RequestIDFromContext(ctx)).
		Str("code", code.String()).
		Dur("duration", time.Since(start)).
		Msg("gRPC call")
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func unaryRecover(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Str("method", info.FullMethod).Msg("gRPC handler panic")
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func streamRecover(logger zerolog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Str("method", info.FullMethod).Msg("gRPC handler panic")
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(srv, ss)
	}
}

// contextStream overrides the stream context.
type contextStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *contextStream) Context() context.Context {
	return s.ctx
}
