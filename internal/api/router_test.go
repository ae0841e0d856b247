// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/eventrec/internal/aggregator"
	"github.com/tomtom215/eventrec/internal/config"
	"github.com/tomtom215/eventrec/internal/eventprocessor"
	"github.com/tomtom215/eventrec/internal/middleware"
	"github.com/tomtom215/eventrec/internal/models"
	"github.com/tomtom215/eventrec/internal/recommend"
)

type call struct {
	op         string
	eventID    int64
	userID     int64
	maxResults int
	eventIDs   []int64
}

type fakeRecommender struct {
	mu    sync.Mutex
	calls []call
	recs  []models.RecommendedEvent
	err   error
}

func (f *fakeRecommender) record(c call) ([]models.RecommendedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.recs, f.err
}

func (f *fakeRecommender) last() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return call{}
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeRecommender) GetSimilarEvents(_ context.Context, eventID, userID int64, maxResults int) ([]models.RecommendedEvent, error) {
	return f.record(call{op: "similar", eventID: eventID, userID: userID, maxResults: maxResults})
}

func (f *fakeRecommender) GetInteractionsCount(_ context.Context, eventIDs []int64) ([]models.RecommendedEvent, error) {
	return f.record(call{op: "interactions", eventIDs: eventIDs})
}

func (f *fakeRecommender) GetRecommendationsForUser(_ context.Context, userID int64, maxResults int) ([]models.RecommendedEvent, error) {
	return f.record(call{op: "user", userID: userID, maxResults: maxResults})
}

type fakeCollector struct {
	mu      sync.Mutex
	actions []models.UserAction
	err     error
}

func (f *fakeCollector) PublishAction(_ context.Context, a models.UserAction) (models.UserAction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.UserAction{}, f.err
	}
	a.ID = fmt.Sprintf("action-%d", len(f.actions)+1)
	f.actions = append(f.actions, a)
	return a, nil
}

type fakeModel struct{}

func (fakeModel) Similarity(a, b int64) float64 {
	if models.CanonicalPair(a, b) == (models.Pair{A: 1, B: 2}) {
		return 0.8
	}
	return 0
}

func (fakeModel) Stats() aggregator.Stats { return aggregator.Stats{Events: 3, Users: 2, Pairs: 1} }

type fakePipeline struct{ running bool }

func (f fakePipeline) IsRunning() bool { return f.running }

func (fakePipeline) Stats() map[string]eventprocessor.HandlerStats {
	return map[string]eventprocessor.HandlerStats{
		eventprocessor.HandlerAggregator: {Received: 4, Processed: 4},
	}
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type envelope struct {
	Status   string          `json:"status"`
	Data     json.RawMessage `json:"data"`
	Metadata Metadata        `json:"metadata"`
	Error    *APIError       `json:"error"`
}

var fixedNow = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

func newTestRouter(t *testing.T, deps Deps, cfg RouterConfig) http.Handler {
	t.Helper()
	if deps.Recommender == nil {
		deps.Recommender = &fakeRecommender{}
	}
	h, err := NewHandler(deps)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	h.now = func() time.Time { return fixedNow }
	return NewRouter(h, cfg)
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if ct := rec.Header().Get("Content-Type"); ct == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v (body %q)", method, target, err, rec.Body.String())
		}
	}
	return rec, env
}

func decodeRecs(t *testing.T, env envelope) []models.RecommendedEvent {
	t.Helper()
	var recs []models.RecommendedEvent
	if err := json.Unmarshal(env.Data, &recs); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return recs
}

func TestSimilarEvents(t *testing.T) {
	t.Parallel()

	want := []models.RecommendedEvent{{EventID: 7, Score: 1.0}, {EventID: 3, Score: 0.4}}
	rec := &fakeRecommender{recs: want}
	h := newTestRouter(t, Deps{Recommender: rec}, DefaultRouterConfig())

	resp, env := do(t, h, http.MethodGet, "/api/v1/events/5/similar?user_id=9&max_results=2", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", resp.Code, resp.Body.String())
	}
	if env.Status != "success" {
		t.Errorf("status field = %q, want success", env.Status)
	}
	if got := decodeRecs(t, env); !reflect.DeepEqual(got, want) {
		t.Errorf("data = %+v, want %+v", got, want)
	}
	if env.Metadata.Count == nil || *env.Metadata.Count != 2 {
		t.Errorf("metadata.count = %v, want 2", env.Metadata.Count)
	}
	if got := rec.last(); got.eventID != 5 || got.userID != 9 || got.maxResults != 2 {
		t.Errorf("recommender called with %+v, want event 5 user 9 max 2", got)
	}
}

func TestSimilarEventsDefaultMaxResults(t *testing.T) {
	t.Parallel()

	rec := &fakeRecommender{}
	h := newTestRouter(t, Deps{Recommender: rec}, DefaultRouterConfig())

	resp, env := do(t, h, http.MethodGet, "/api/v1/events/5/similar?user_id=9", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	if got := rec.last().maxResults; got != defaultMaxResults {
		t.Errorf("maxResults = %d, want %d", got, defaultMaxResults)
	}
	if string(env.Data) != "[]" {
		t.Errorf("data = %s, want []", env.Data)
	}
}

func TestBadParameters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
	}{
		{"non-integer event", "/api/v1/events/abc/similar?user_id=1"},
		{"missing user_id", "/api/v1/events/1/similar"},
		{"non-integer user_id", "/api/v1/events/1/similar?user_id=x"},
		{"non-integer max_results", "/api/v1/events/1/similar?user_id=1&max_results=ten"},
		{"non-integer user path", "/api/v1/users/me/recommendations"},
		{"missing event_ids", "/api/v1/events/interactions"},
		{"empty event_ids", "/api/v1/events/interactions?event_ids=,"},
		{"bad event id in list", "/api/v1/events/interactions?event_ids=1,two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := &fakeRecommender{}
			h := newTestRouter(t, Deps{Recommender: rec}, DefaultRouterConfig())

			resp, env := do(t, h, http.MethodGet, tt.target, nil)
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.Code)
			}
			if env.Error == nil || env.Error.Code != CodeInvalidParameter {
				t.Errorf("error = %+v, want %s", env.Error, CodeInvalidParameter)
			}
			if len(rec.calls) != 0 {
				t.Errorf("recommender called %d times, want 0", len(rec.calls))
			}
		})
	}
}

func TestQueryErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid argument", fmt.Errorf("%w: max_results must be positive", recommend.ErrInvalidArgument), http.StatusBadRequest, CodeInvalidArgument},
		{"internal", errors.New("duckdb: connection reset"), http.StatusInternalServerError, CodeInternal},
	}

	targets := []string{
		"/api/v1/events/1/similar?user_id=2&max_results=0",
		"/api/v1/events/interactions?event_ids=1",
		"/api/v1/users/2/recommendations?max_results=0",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newTestRouter(t, Deps{Recommender: &fakeRecommender{err: tt.err}}, DefaultRouterConfig())

			for _, target := range targets {
				resp, env := do(t, h, http.MethodGet, target, nil)
				if resp.Code != tt.wantStatus {
					t.Errorf("%s: status = %d, want %d", target, resp.Code, tt.wantStatus)
				}
				if env.Error == nil || env.Error.Code != tt.wantCode {
					t.Errorf("%s: error = %+v, want %s", target, env.Error, tt.wantCode)
				}
			}
		})
	}
}

func TestInternalErrorHidesCause(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, Deps{Recommender: &fakeRecommender{err: errors.New("secret dsn")}}, DefaultRouterConfig())

	_, env := do(t, h, http.MethodGet, "/api/v1/users/2/recommendations", nil)
	if env.Error == nil || env.Error.Message != "query failed" {
		t.Errorf("error = %+v, want generic message", env.Error)
	}
}

func TestInteractionsCountKeepsOrderAndDuplicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		target string
		want   []int64
	}{
		{"/api/v1/events/interactions?event_ids=3,1,3", []int64{3, 1, 3}},
		{"/api/v1/events/interactions?event_ids=4&event_ids=2", []int64{4, 2}},
		{"/api/v1/events/interactions?event_ids=%201%20,2", []int64{1, 2}},
	}

	for _, tt := range tests {
		rec := &fakeRecommender{}
		h := newTestRouter(t, Deps{Recommender: rec}, DefaultRouterConfig())

		resp, _ := do(t, h, http.MethodGet, tt.target, nil)
		if resp.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", tt.target, resp.Code)
			continue
		}
		if got := rec.last().eventIDs; !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: eventIDs = %v, want %v", tt.target, got, tt.want)
		}
	}
}

func TestUserRecommendations(t *testing.T) {
	t.Parallel()

	rec := &fakeRecommender{recs: []models.RecommendedEvent{{EventID: 11, Score: 0.64}}}
	h := newTestRouter(t, Deps{Recommender: rec}, DefaultRouterConfig())

	resp, env := do(t, h, http.MethodGet, "/api/v1/users/42/recommendations?max_results=5", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	if got := rec.last(); got.op != "user" || got.userID != 42 || got.maxResults != 5 {
		t.Errorf("recommender called with %+v", got)
	}
	if got := decodeRecs(t, env); len(got) != 1 || got[0].EventID != 11 {
		t.Errorf("data = %+v, want event 11", got)
	}
}

func TestCollectAction(t *testing.T) {
	t.Parallel()

	col := &fakeCollector{}
	h := newTestRouter(t, Deps{Collector: col}, DefaultRouterConfig())

	resp, env := do(t, h, http.MethodPost, "/api/v1/actions", []byte(`{"user_id":3,"event_id":8,"action_type":"like"}`))
	if resp.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", resp.Code, resp.Body.String())
	}

	var got models.UserAction
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if got.ID != "action-1" || got.Kind != models.ActionLike {
		t.Errorf("data = %+v, want action-1 LIKE", got)
	}

	if len(col.actions) != 1 {
		t.Fatalf("published %d actions, want 1", len(col.actions))
	}
	a := col.actions[0]
	if a.UserID != 3 || a.EventID != 8 || !a.Timestamp.Equal(fixedNow) {
		t.Errorf("published %+v, want user 3 event 8 at receive time", a)
	}
}

func TestCollectActionKeepsTimestamp(t *testing.T) {
	t.Parallel()

	col := &fakeCollector{}
	h := newTestRouter(t, Deps{Collector: col}, DefaultRouterConfig())

	body := []byte(`{"user_id":3,"event_id":8,"action_type":"VIEW","timestamp":"2026-01-02T03:04:05Z"}`)
	if resp, _ := do(t, h, http.MethodPost, "/api/v1/actions", body); resp.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.Code)
	}
	want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := col.actions[0].Timestamp; !got.Equal(want) {
		t.Errorf("timestamp = %v, want %v", got, want)
	}
}

func TestCollectActionRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{"user_id":`, CodeInvalidJSON},
		{"unknown field", `{"user_id":1,"event_id":2,"action_type":"LIKE","extra":true}`, CodeInvalidJSON},
		{"unknown kind", `{"user_id":1,"event_id":2,"action_type":"SHARE"}`, CodeValidation},
		{"missing kind", `{"user_id":1,"event_id":2}`, CodeValidation},
		{"zero user", `{"user_id":0,"event_id":2,"action_type":"LIKE"}`, CodeValidation},
		{"negative event", `{"user_id":1,"event_id":-2,"action_type":"LIKE"}`, CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			col := &fakeCollector{}
			h := newTestRouter(t, Deps{Collector: col}, DefaultRouterConfig())

			resp, env := do(t, h, http.MethodPost, "/api/v1/actions", []byte(tt.body))
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.Code)
			}
			if env.Error == nil || env.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want %s", env.Error, tt.wantCode)
			}
			if len(col.actions) != 0 {
				t.Errorf("published %d actions, want 0", len(col.actions))
			}
		})
	}
}

func TestCollectActionUnavailable(t *testing.T) {
	t.Parallel()

	body := []byte(`{"user_id":1,"event_id":2,"action_type":"LIKE"}`)

	h := newTestRouter(t, Deps{}, DefaultRouterConfig())
	if resp, _ := do(t, h, http.MethodPost, "/api/v1/actions", body); resp.Code != http.StatusNotImplemented {
		t.Errorf("no collector: status = %d, want 501", resp.Code)
	}

	h = newTestRouter(t, Deps{Collector: &fakeCollector{err: errors.New("circuit breaker is open")}}, DefaultRouterConfig())
	resp, env := do(t, h, http.MethodPost, "/api/v1/actions", body)
	if resp.Code != http.StatusServiceUnavailable {
		t.Errorf("publish failure: status = %d, want 503", resp.Code)
	}
	if env.Error == nil || env.Error.Code != CodeUnavailable {
		t.Errorf("publish failure: error = %+v, want %s", env.Error, CodeUnavailable)
	}
}

func TestSimilarityEndpoint(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, Deps{Model: fakeModel{}}, DefaultRouterConfig())

	tests := []struct {
		target string
		want   PairSimilarity
	}{
		{"/api/v1/similarity/2/1", PairSimilarity{EventA: 1, EventB: 2, Score: 0.8}},
		{"/api/v1/similarity/1/2", PairSimilarity{EventA: 1, EventB: 2, Score: 0.8}},
		{"/api/v1/similarity/5/9", PairSimilarity{EventA: 5, EventB: 9, Score: 0}},
	}

	for _, tt := range tests {
		resp, env := do(t, h, http.MethodGet, tt.target, nil)
		if resp.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", tt.target, resp.Code)
			continue
		}
		var got PairSimilarity
		if err := json.Unmarshal(env.Data, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got != tt.want {
			t.Errorf("%s: data = %+v, want %+v", tt.target, got, tt.want)
		}
	}

	if resp, _ := do(t, h, http.MethodGet, "/api/v1/similarity/1/x", nil); resp.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want 400", resp.Code)
	}

	noModel := newTestRouter(t, Deps{}, DefaultRouterConfig())
	if resp, _ := do(t, noModel, http.MethodGet, "/api/v1/similarity/1/2", nil); resp.Code != http.StatusNotImplemented {
		t.Errorf("no model: status = %d, want 501", resp.Code)
	}
}

func TestModelStats(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, Deps{Model: fakeModel{}, Pipeline: fakePipeline{running: true}}, DefaultRouterConfig())

	resp, env := do(t, h, http.MethodGet, "/api/v1/model/stats", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	var got ModelStats
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Accumulator != (aggregator.Stats{Events: 3, Users: 2, Pairs: 1}) {
		t.Errorf("accumulator = %+v", got.Accumulator)
	}
	if !got.PipelineRunning {
		t.Error("pipeline_running = false, want true")
	}
	if got.Handlers[eventprocessor.HandlerAggregator].Processed != 4 {
		t.Errorf("handlers = %+v, want aggregator processed 4", got.Handlers)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("down") })

	tests := []struct {
		name       string
		deps       Deps
		wantStatus int
		wantHealth string
	}{
		{"healthy", Deps{HealthChecks: map[string]HealthChecker{"database": ok}, Pipeline: fakePipeline{running: true}}, http.StatusOK, "healthy"},
		{"no checks", Deps{}, http.StatusOK, "healthy"},
		{"store down", Deps{HealthChecks: map[string]HealthChecker{"database": ok, "cache": down}}, http.StatusServiceUnavailable, "degraded"},
		{"pipeline stopped", Deps{Pipeline: fakePipeline{running: false}}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newTestRouter(t, tt.deps, DefaultRouterConfig())

			resp, env := do(t, h, http.MethodGet, "/api/v1/health", nil)
			if resp.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.Code, tt.wantStatus)
			}
			var got HealthStatus
			if err := json.Unmarshal(env.Data, &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Status != tt.wantHealth {
				t.Errorf("health = %q, want %q", got.Status, tt.wantHealth)
			}
			if got.Version != "dev" {
				t.Errorf("version = %q, want dev", got.Version)
			}
		})
	}
}

func TestRouterPlumbing(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, Deps{}, DefaultRouterConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(middleware.RequestIDHeader); got != "req-abc" {
		t.Errorf("X-Request-ID = %q, want req-abc", got)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}

	resp, env := do(t, h, http.MethodGet, "/api/v1/nope", nil)
	if resp.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != CodeNotFound {
		t.Errorf("unknown route = %d %+v, want 404 %s", resp.Code, env.Error, CodeNotFound)
	}

	resp, _ = do(t, h, http.MethodDelete, "/api/v1/actions", nil)
	if resp.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE /actions = %d, want 405", resp.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/metrics = %d, want 200", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	cfg := DefaultRouterConfig()
	cfg.RateLimitRequests = 2
	h := newTestRouter(t, Deps{}, cfg)

	const target = "/api/v1/users/1/recommendations"
	for i := 0; i < 2; i++ {
		if resp, _ := do(t, h, http.MethodGet, target, nil); resp.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, resp.Code)
		}
	}
	resp, env := do(t, h, http.MethodGet, target, nil)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status = %d, want 429", resp.Code)
	}
	if env.Error == nil || env.Error.Code != CodeRateLimited {
		t.Errorf("error = %+v, want %s", env.Error, CodeRateLimited)
	}

	// Health sits outside the limited group.
	if resp, _ := do(t, h, http.MethodGet, "/api/v1/health", nil); resp.Code != http.StatusOK {
		t.Errorf("health after limit: status = %d, want 200", resp.Code)
	}

	cfg.RateLimitDisabled = true
	h = newTestRouter(t, Deps{}, cfg)
	for i := 0; i < 5; i++ {
		if resp, _ := do(t, h, http.MethodGet, target, nil); resp.Code != http.StatusOK {
			t.Fatalf("disabled limiter request %d: status = %d, want 200", i+1, resp.Code)
		}
	}
}

func TestRouterConfigFromServer(t *testing.T) {
	t.Parallel()

	got := RouterConfigFromServer(&config.ServerConfig{
		CORSOrigins:       []string{"https://example.com"},
		RateLimitRequests: 50,
		RateLimitWindow:   30 * time.Second,
		RateLimitDisabled: true,
	})
	if !reflect.DeepEqual(got.CORSAllowedOrigins, []string{"https://example.com"}) {
		t.Errorf("CORSAllowedOrigins = %v", got.CORSAllowedOrigins)
	}
	if got.RateLimitRequests != 50 || got.RateLimitWindow != 30*time.Second || !got.RateLimitDisabled {
		t.Errorf("rate limit = %d/%v disabled=%v", got.RateLimitRequests, got.RateLimitWindow, got.RateLimitDisabled)
	}

	if def := RouterConfigFromServer(nil); def.RateLimitRequests != DefaultRouterConfig().RateLimitRequests {
		t.Errorf("nil config RateLimitRequests = %d", def.RateLimitRequests)
	}
}

func TestNewHandlerRequiresRecommender(t *testing.T) {
	t.Parallel()

	if _, err := NewHandler(Deps{}); !errors.Is(err, ErrRecommenderRequired) {
		t.Errorf("NewHandler() error = %v, want ErrRecommenderRequired", err)
	}
}

type fakeFeed struct {
	mu       sync.Mutex
	eventIDs []int64
	served   int
}

func (f *fakeFeed) Serve(w http.ResponseWriter, _ *http.Request, eventIDs []int64) error {
	f.mu.Lock()
	f.eventIDs = eventIDs
	f.served++
	f.mu.Unlock()
	w.WriteHeader(http.StatusSwitchingProtocols)
	return nil
}

func TestSimilarityStream(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, Deps{}, DefaultRouterConfig())
	if resp, _ := do(t, h, http.MethodGet, "/api/v1/similarities/stream", nil); resp.Code != http.StatusNotImplemented {
		t.Errorf("no feed: status = %d, want 501", resp.Code)
	}

	tests := []struct {
		name   string
		target string
		want   []int64
	}{
		{"all events", "/api/v1/similarities/stream", nil},
		{"filtered", "/api/v1/similarities/stream?event_ids=3,1", []int64{3, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			feed := &fakeFeed{}
			h := newTestRouter(t, Deps{Feed: feed}, DefaultRouterConfig())
			do(t, h, http.MethodGet, tt.target, nil)

			feed.mu.Lock()
			defer feed.mu.Unlock()
			if feed.served != 1 {
				t.Fatalf("served = %d, want 1", feed.served)
			}
			if !reflect.DeepEqual(feed.eventIDs, tt.want) {
				t.Errorf("eventIDs = %v, want %v", feed.eventIDs, tt.want)
			}
		})
	}

	t.Run("bad filter", func(t *testing.T) {
		t.Parallel()
		feed := &fakeFeed{}
		h := newTestRouter(t, Deps{Feed: feed}, DefaultRouterConfig())
		resp, env := do(t, h, http.MethodGet, "/api/v1/similarities/stream?event_ids=x", nil)
		if resp.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.Code)
		}
		if env.Error == nil || env.Error.Code != CodeInvalidParameter {
			t.Errorf("error = %+v, want %s", env.Error, CodeInvalidParameter)
		}
		if feed.served != 0 {
			t.Errorf("served = %d, want 0", feed.served)
		}
	})
}
