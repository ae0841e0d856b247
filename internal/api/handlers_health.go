// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package api

import (
	"context"
	"net/http"
	"sort"
	"time"
)

const healthCheckTimeout = 3 * time.Second

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	Status          string            `json:"status"`
	Version         string            `json:"version"`
	Uptime          float64           `json:"uptime_seconds"`
	PipelineRunning bool              `json:"pipeline_running"`
	Components      map[string]string `json:"components,omitempty"`
}

// Health handles GET /api/v1/health. It answers 503 when any component
// check fails or the pipeline is wired but not running.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	health := HealthStatus{
		Status:     "healthy",
		Version:    h.version,
		Uptime:     time.Since(h.startTime).Seconds(),
		Components: make(map[string]string, len(h.healthChecks)),
	}

	names := make([]string, 0, len(h.healthChecks))
	for name := range h.healthChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.healthChecks[name].Ping(ctx); err != nil {
			health.Components[name] = "unavailable"
			health.Status = "degraded"
			continue
		}
		health.Components[name] = "ok"
	}

	if h.pipeline != nil {
		health.PipelineRunning = h.pipeline.IsRunning()
		if !health.PipelineRunning {
			health.Status = "degraded"
		}
	}

	status := http.StatusOK
	if health.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	respondData(w, status, health, start)
}
