// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tomtom215/eventrec/internal/metrics"
	"github.com/tomtom215/eventrec/internal/models"
	"github.com/tomtom215/eventrec/internal/recommend"
	"github.com/tomtom215/eventrec/internal/validation"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "eventrec.stats.v1.RecommendationsController"

const transportLabel = "grpc"

// Recommender answers recommendation queries.
type Recommender interface {
	GetSimilarEvents(ctx context.Context, eventID, userID int64, maxResults int) ([]models.RecommendedEvent, error)
	GetInteractionsCount(ctx context.Context, eventIDs []int64) ([]models.RecommendedEvent, error)
	GetRecommendationsForUser(ctx context.Context, userID int64, maxResults int) ([]models.RecommendedEvent, error)
}

// ActionCollector publishes collected actions.
type ActionCollector interface {
	PublishAction(ctx context.Context, action models.UserAction) (models.UserAction, error)
}

// RecommendationStream is the server side of a streaming query.
type RecommendationStream interface {
	Send(*RecommendedEvent) error
	Context() context.Context
}

// recommendationsServer is the handler type checked by grpc.RegisterService.
type recommendationsServer interface {
	GetSimilarEvents(*SimilarEventsRequest, RecommendationStream) error
	GetInteractionsCount(*InteractionsCountRequest, RecommendationStream) error
	GetRecommendationsForUser(*UserPredictionsRequest, RecommendationStream) error
	CollectUserAction(context.Context, *CollectUserActionRequest) (*CollectUserActionResponse, error)
}

// ErrCollectorDisabled is returned by CollectUserAction when no collector is wired.
var ErrCollectorDisabled = errors.New("action collection is disabled")

// Service implements the recommendations controller.
type Service struct {
	recommender Recommender
	collector   ActionCollector
	now         func() time.Time
}

// NewService creates the service. collector may be nil, which disables
// CollectUserAction.
func NewService(recommender Recommender, collector ActionCollector) (*Service, error) {
	if recommender == nil {
		return nil, errors.New("grpcapi: recommender is required")
	}
	return &Service{recommender: recommender, collector: collector, now: time.Now}, nil
}

// Register adds the service to s.
func (svc *Service) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&serviceDesc, svc)
}

// GetSimilarEvents streams events similar to the requested one.
func (svc *Service) GetSimilarEvents(req *SimilarEventsRequest, stream RecommendationStream) error {
	start := time.Now()
	recs, err := svc.recommender.GetSimilarEvents(stream.Context(), req.EventID, req.UserID, req.MaxResults)
	return sendAll(stream, "GetSimilarEvents", start, recs, err)
}

// GetInteractionsCount streams the interaction weight of each requested event.
func (svc *Service) GetInteractionsCount(req *InteractionsCountRequest, stream RecommendationStream) error {
	start := time.Now()
	recs, err := svc.recommender.GetInteractionsCount(stream.Context(), req.EventIDs)
	return sendAll(stream, "GetInteractionsCount", start, recs, err)
}

// GetRecommendationsForUser streams personalized recommendations.
func (svc *Service) GetRecommendationsForUser(req *UserPredictionsRequest, stream RecommendationStream) error {
	start := time.Now()
	recs, err := svc.recommender.GetRecommendationsForUser(stream.Context(), req.UserID, req.MaxResults)
	return sendAll(stream, "GetRecommendationsForUser", start, recs, err)
}

// CollectUserAction validates and publishes one action.
func (svc *Service) CollectUserAction(ctx context.Context, req *CollectUserActionRequest) (*CollectUserActionResponse, error) {
	if svc.collector == nil {
		return nil, status.Error(codes.Unimplemented, ErrCollectorDisabled.Error())
	}
	if err := validation.ValidateStruct(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = svc.now()
	}
	action, err := svc.collector.PublishAction(ctx, models.UserAction{
		UserID:    req.UserID,
		EventID:   req.EventID,
		Kind:      models.ParseActionKind(req.ActionType),
		Timestamp: ts.UTC(),
	})
	if err != nil {
		return nil, status.Error(codes.Unavailable, fmt.Sprintf("publish action: %v", err))
	}
	return &CollectUserActionResponse{ActionID: action.ID}, nil
}

func sendAll(stream RecommendationStream, op string, start time.Time, recs []models.RecommendedEvent, err error) error {
	metrics.RecordQuery(op, transportLabel, len(recs), time.Since(start), recommend.ErrorClass(err))
	if err != nil {
		return toStatus(err)
	}
	for i := range recs {
		if err := stream.Send(&recs[i]); err != nil {
			return err
		}
	}
	return nil
}

// toStatus maps request-shape failures to InvalidArgument and everything
// else to Internal.
func toStatus(err error) error {
	if recommend.ErrorClass(err) == recommend.ClassInvalidArgument {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

type recommendationStream struct {
	grpc.ServerStream
}

func (s *recommendationStream) Send(rec *RecommendedEvent) error {
	return s.ServerStream.SendMsg(rec)
}

func streamHandler[Req any](call func(recommendationsServer, *Req, RecommendationStream) error) grpc.StreamHandler {
	return func(srv any, stream grpc.ServerStream) error {
		req := new(Req)
		if err := stream.RecvMsg(req); err != nil {
			return err
		}
		return call(srv.(recommendationsServer), req, &recommendationStream{stream})
	}
}

func collectUserActionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CollectUserActionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(recommendationsServer).CollectUserAction(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/CollectUserAction",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(recommendationsServer).CollectUserAction(ctx, req.(*CollectUserActionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*recommendationsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CollectUserAction", Handler: collectUserActionHandler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "GetSimilarEvents",
			ServerStreams: true,
			Handler: streamHandler(func(s recommendationsServer, r *SimilarEventsRequest, st RecommendationStream) error {
				return s.GetSimilarEvents(r, st)
			}),
		},
		{
			StreamName:    "GetInteractionsCount",
			ServerStreams: true,
			Handler: streamHandler(func(s recommendationsServer, r *InteractionsCountRequest, st RecommendationStream) error {
				return s.GetInteractionsCount(r, st)
			}),
		},
		{
			StreamName:    "GetRecommendationsForUser",
			ServerStreams: true,
			Handler: streamHandler(func(s recommendationsServer, r *UserPredictionsRequest, st RecommendationStream) error {
				return s.GetRecommendationsForUser(r, st)
			}),
		},
	},
	Metadata: "eventrec/stats/v1/recommendations.json",
}
