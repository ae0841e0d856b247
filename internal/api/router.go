// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package api

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/eventrec/internal/config"
	"github.com/tomtom215/eventrec/internal/middleware"
)

// RouterConfig configures cross-cutting HTTP behaviour.
type RouterConfig struct {
	CORSAllowedOrigins []string
	CORSMaxAge         int

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool

	// CollectRateLimit caps POST /api/v1/actions per client IP.
	CollectRateLimit int

	// CompressLevel enables gzip for JSON responses. 0 disables.
	CompressLevel int
}

// DefaultRouterConfig returns the defaults. CORS origins are empty, which
// disables cross-origin access until configured.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CORSAllowedOrigins: []string{},
		CORSMaxAge:         86400,
		RateLimitRequests:  1000,
		RateLimitWindow:    time.Minute,
		CollectRateLimit:   600,
		CompressLevel:      5,
	}
}

// RouterConfigFromServer maps the server section onto a RouterConfig.
func RouterConfigFromServer(cfg *config.ServerConfig) RouterConfig {
	rc := DefaultRouterConfig()
	if cfg == nil {
		return rc
	}
	if cfg.CORSOrigins != nil {
		rc.CORSAllowedOrigins = cfg.CORSOrigins
	}
	if cfg.RateLimitRequests > 0 {
		rc.RateLimitRequests = cfg.RateLimitRequests
	}
	if cfg.RateLimitWindow > 0 {
		rc.RateLimitWindow = cfg.RateLimitWindow
	}
	rc.RateLimitDisabled = cfg.RateLimitDisabled
	return rc
}

// NewRouter builds the chi router for h.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           cfg.CORSMaxAge,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, CodeNotFound, "no such endpoint", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed", nil)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SecurityHeaders)
		if cfg.CompressLevel > 0 {
			r.Use(chimiddleware.Compress(cfg.CompressLevel, "application/json"))
		}

		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			r.Use(rateLimit(cfg, cfg.RateLimitRequests))

			r.Get("/events/interactions", h.InteractionsCount)
			r.Get("/events/{eventID}/similar", h.SimilarEvents)
			r.Get("/users/{userID}/recommendations", h.UserRecommendations)
			r.Get("/similarity/{eventA}/{eventB}", h.Similarity)
			r.Get("/model/stats", h.ModelStats)
			r.Get("/similarities/stream", h.SimilarityStream)
		})

		r.Group(func(r chi.Router) {
			r.Use(rateLimit(cfg, cfg.CollectRateLimit))
			r.Post("/actions", h.CollectAction)
		})
	})

	return r
}

func rateLimit(cfg RouterConfig, requests int) func(http.Handler) http.Handler {
	if cfg.RateLimitDisabled || requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requests,
		cfg.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, r, http.StatusTooManyRequests, CodeRateLimited, "too many requests", nil)
		}),
	)
}

// NewServer creates the HTTP server for the server section.
func NewServer(cfg *config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}
