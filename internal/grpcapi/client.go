// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls the recommendations service.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient connects to target over plaintext. Extra options are appended.
func NewClient(target string, opts ...grpc.DialOption) (*Client, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec())),
	}
	conn, err := grpc.NewClient(target, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("grpc client %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// GetSimilarEvents calls the GetSimilarEvents stream and collects the results.
func (c *Client) GetSimilarEvents(ctx context.Context, req *SimilarEventsRequest) ([]RecommendedEvent, error) {
	return c.collect(ctx, 0, req)
}

// GetInteractionsCount calls the GetInteractionsCount stream.
func (c *Client) GetInteractionsCount(ctx context.Context, req *InteractionsCountRequest) ([]RecommendedEvent, error) {
	return c.collect(ctx, 1, req)
}

// GetRecommendationsForUser calls the GetRecommendationsForUser stream.
func (c *Client) GetRecommendationsForUser(ctx context.Context, req *UserPredictionsRequest) ([]RecommendedEvent, error) {
	return c.collect(ctx, 2, req)
}

// CollectUserAction submits an action.
func (c *Client) CollectUserAction(ctx context.Context, req *CollectUserActionRequest) (*CollectUserActionResponse, error) {
	out := new(CollectUserActionResponse)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/CollectUserAction", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) collect(ctx context.Context, idx int, req any) ([]RecommendedEvent, error) {
	desc := &serviceDesc.Streams[idx]
	stream, err := c.conn.NewStream(ctx, desc, "/"+ServiceName+"/"+desc.StreamName)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}

	recs := []RecommendedEvent{}
	for {
		var rec RecommendedEvent
		err := stream.RecvMsg(&rec)
		if errors.Is(err, io.EOF) {
			return recs, nil
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
}
