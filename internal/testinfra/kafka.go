// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultRedpandaImage is a single-node Kafka-compatible broker.
	DefaultRedpandaImage = "docker.redpanda.com/redpandadata/redpanda:v24.2.4"

	kafkaPort = "9092/tcp"
)

// KafkaContainer is a running single-node broker speaking the Kafka protocol.
type KafkaContainer struct {
	testcontainers.Container

	// Broker is host:port for Kafka clients.
	Broker string
}

// NewKafkaContainer starts a Redpanda broker advertising its mapped port.
//
// The advertised listener must match the host port, so the container is
// started with a fixed host binding chosen by the caller's port argument.
func NewKafkaContainer(ctx context.Context, hostPort int) (*KafkaContainer, error) {
	advertised := fmt.Sprintf("127.0.0.1:%d", hostPort)
	req := testcontainers.ContainerRequest{
		Image:        DefaultRedpandaImage,
		ExposedPorts: []string{fmt.Sprintf("%d:9092/tcp", hostPort)},
		Cmd: []string{
			"redpanda", "start",
			"--mode", "dev-container",
			"--smp", "1",
			"--kafka-addr", "0.0.0.0:9092",
			"--advertise-kafka-addr", advertised,
		},
		WaitingFor: wait.ForLog("Successfully started Redpanda!").WithStartupTimeout(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka container: %w", err)
	}

	return &KafkaContainer{Container: container, Broker: advertised}, nil
}
