// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/eventrec/internal/logging"
	"github.com/tomtom215/eventrec/internal/models"
)

// ActionStore reads recorded user actions. Implemented by database.DB.
type ActionStore interface {
	UserActionsByUser(ctx context.Context, userID int64) ([]models.UserAction, error)
	UserActionsByEvent(ctx context.Context, eventID int64) ([]models.UserAction, error)
}

// SimilarityStore reads persisted pair similarities. Implemented by
// database.DB and cache.SimilarityCache.
type SimilarityStore interface {
	SimilaritiesByEvent(ctx context.Context, eventID int64) ([]models.EventSimilarity, error)
}

// Engine answers recommendation queries. It is safe for concurrent use.
type Engine struct {
	config       *Config
	actions      ActionStore
	similarities SimilarityStore
	logger       zerolog.Logger
}

// NewEngine creates an engine over the given stores.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, actions ActionStore, similarities SimilarityStore, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if actions == nil || similarities == nil {
		return nil, errors.New("action and similarity stores are required")
	}

	return &Engine{
		config:       cfg,
		actions:      actions,
		similarities: similarities,
		logger:       logger.With().Str("component", "recommend").Logger(),
	}, nil
}

// Config returns the engine's limits.
func (e *Engine) Config() Config {
	return *e.config
}

// GetSimilarEvents returns up to maxResults events similar to eventID, most
// similar first. Pairs whose both endpoints the user has acted on are
// skipped. Equal scores keep store order.
func (e *Engine) GetSimilarEvents(ctx context.Context, eventID, userID int64, maxResults int) (recs []models.RecommendedEvent, err error) {
	log := e.queryLogger(ctx, "similar_events")
	log.Info().Int64("event_id", eventID).Int64("user_id", userID).Int("max_results", maxResults).Msg("similar events requested")
	defer func() { e.finish(log, len(recs), err) }()

	if err := e.checkID("event_id", eventID); err != nil {
		return nil, err
	}
	if err := e.checkID("user_id", userID); err != nil {
		return nil, err
	}
	if err := e.checkMaxResults(maxResults); err != nil {
		return nil, err
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var (
		userEvents map[int64]struct{}
		sims       []models.EventSimilarity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		actions, err := e.actions.UserActionsByUser(gctx, userID)
		if err != nil {
			return fmt.Errorf("load user actions: %w", err)
		}
		userEvents = eventSet(actions)
		return nil
	})
	g.Go(func() error {
		var err error
		sims, err = e.similarities.SimilaritiesByEvent(gctx, eventID)
		if err != nil {
			return fmt.Errorf("load similarities for event %d: %w", eventID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sims = excludeConsumed(sims, userEvents)
	sortByScore(sims)
	if len(sims) > maxResults {
		sims = sims[:maxResults]
	}

	recs = make([]models.RecommendedEvent, 0, len(sims))
	for _, s := range sims {
		recs = append(recs, models.RecommendedEvent{EventID: s.Pair().Other(eventID), Score: s.Score})
	}
	return recs, nil
}

// GetInteractionsCount returns, for each event in input order, the summed
// weight of every action recorded on it. Repeated actions by the same user
// all count.
func (e *Engine) GetInteractionsCount(ctx context.Context, eventIDs []int64) (recs []models.RecommendedEvent, err error) {
	log := e.queryLogger(ctx, "interactions_count")
	log.Info().Int("events", len(eventIDs)).Msg("interactions count requested")
	defer func() { e.finish(log, len(recs), err) }()

	if len(eventIDs) == 0 {
		return nil, invalidArgument("event_ids must not be empty")
	}
	if len(eventIDs) > e.config.MaxEventIDs {
		return nil, invalidArgument("event_ids has %d entries, limit is %d", len(eventIDs), e.config.MaxEventIDs)
	}
	for _, id := range eventIDs {
		if err := e.checkID("event_id", id); err != nil {
			return nil, err
		}
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	totals := make([]float64, len(eventIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Concurrency)
	for i, id := range eventIDs {
		g.Go(func() error {
			actions, err := e.actions.UserActionsByEvent(gctx, id)
			if err != nil {
				return fmt.Errorf("load actions for event %d: %w", id, err)
			}
			sum := 0.0
			for _, a := range actions {
				sum += a.Weight()
			}
			totals[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	recs = make([]models.RecommendedEvent, len(eventIDs))
	for i, id := range eventIDs {
		recs[i] = models.RecommendedEvent{EventID: id, Score: totals[i]}
	}
	return recs, nil
}

// GetRecommendationsForUser returns up to maxResults events for userID.
//
// Candidates are the events similar to the user's maxResults most recent
// actions, ranked by their best raw similarity. Each candidate is then scored
// as the similarity-weighted average of the user's action weights over its
// neighbours among the user's events. Results keep the candidate ranking and
// are not re-sorted by final score. A user without history gets an empty
// result.
func (e *Engine) GetRecommendationsForUser(ctx context.Context, userID int64, maxResults int) (recs []models.RecommendedEvent, err error) {
	log := e.queryLogger(ctx, "user_recommendations")
	log.Info().Int64("user_id", userID).Int("max_results", maxResults).Msg("user recommendations requested")
	defer func() { e.finish(log, len(recs), err) }()

	if err := e.checkID("user_id", userID); err != nil {
		return nil, err
	}
	if err := e.checkMaxResults(maxResults); err != nil {
		return nil, err
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	history, err := e.actions.UserActionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user actions: %w", err)
	}
	if len(history) == 0 {
		return []models.RecommendedEvent{}, nil
	}

	actionWeights := latestWeights(history)
	userEvents := eventSet(history)
	recent := recentEvents(history, maxResults)

	pairs, err := e.similaritiesFor(ctx, recent)
	if err != nil {
		return nil, err
	}
	candidates := collectCandidates(recent, pairs, userEvents)
	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}

	candidateIDs := make([]int64, len(candidates))
	for i, c := range candidates {
		candidateIDs[i] = c.EventID
	}
	neighbours, err := e.similaritiesFor(ctx, candidateIDs)
	if err != nil {
		return nil, err
	}

	recs = make([]models.RecommendedEvent, len(candidates))
	for i, c := range candidates {
		recs[i] = models.RecommendedEvent{
			EventID: c.EventID,
			Score:   weightedScore(c.EventID, neighbours[c.EventID], userEvents, actionWeights, maxResults),
		}
	}
	return recs, nil
}

// similaritiesFor loads the stored pairs of each event concurrently.
func (e *Engine) similaritiesFor(ctx context.Context, eventIDs []int64) (map[int64][]models.EventSimilarity, error) {
	results := make([][]models.EventSimilarity, len(eventIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Concurrency)
	for i, id := range eventIDs {
		g.Go(func() error {
			sims, err := e.similarities.SimilaritiesByEvent(gctx, id)
			if err != nil {
				return fmt.Errorf("load similarities for event %d: %w", id, err)
			}
			results[i] = sims
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[int64][]models.EventSimilarity, len(eventIDs))
	for i, id := range eventIDs {
		out[id] = results[i]
	}
	return out, nil
}

// collectCandidates unions the non-excluded pairs of each recent event,
// deduplicated by the recommended event. A candidate keeps its highest raw
// score. The result is ordered by score, first-seen order on ties.
func collectCandidates(recent []int64, pairs map[int64][]models.EventSimilarity, userEvents map[int64]struct{}) []models.RecommendedEvent {
	index := make(map[int64]int)
	var out []models.RecommendedEvent
	for _, eventID := range recent {
		for _, s := range excludeConsumed(pairs[eventID], userEvents) {
			other := s.Pair().Other(eventID)
			if i, ok := index[other]; ok {
				out[i].Score = max(out[i].Score, s.Score)
				continue
			}
			index[other] = len(out)
			out = append(out, models.RecommendedEvent{EventID: other, Score: s.Score})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// weightedScore computes Σ(score × weight[neighbour]) / Σ(score) over the
// candidate's strongest maxResults neighbours among the user's events. A zero
// denominator scores 0.
func weightedScore(candidate int64, sims []models.EventSimilarity, userEvents map[int64]struct{}, weights map[int64]float64, maxResults int) float64 {
	neighbours := make([]models.EventSimilarity, 0, len(sims))
	for _, s := range sims {
		if _, ok := userEvents[s.Pair().Other(candidate)]; ok {
			neighbours = append(neighbours, s)
		}
	}
	sortByScore(neighbours)
	if len(neighbours) > maxResults {
		neighbours = neighbours[:maxResults]
	}

	var weighted, total float64
	for _, n := range neighbours {
		weighted += n.Score * weights[n.Pair().Other(candidate)]
		total += n.Score
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// excludeConsumed drops pairs whose both endpoints are in userEvents.
func excludeConsumed(sims []models.EventSimilarity, userEvents map[int64]struct{}) []models.EventSimilarity {
	out := make([]models.EventSimilarity, 0, len(sims))
	for _, s := range sims {
		_, hasA := userEvents[s.EventA]
		_, hasB := userEvents[s.EventB]
		if hasA && hasB {
			continue
		}
		out = append(out, s)
	}
	return out
}

func sortByScore(sims []models.EventSimilarity) {
	sort.SliceStable(sims, func(i, j int) bool { return sims[i].Score > sims[j].Score })
}

func eventSet(actions []models.UserAction) map[int64]struct{} {
	set := make(map[int64]struct{}, len(actions))
	for _, a := range actions {
		set[a.EventID] = struct{}{}
	}
	return set
}

// latestWeights maps each event to the weight of the user's latest action on
// it. Equal timestamps resolve to the later entry.
func latestWeights(actions []models.UserAction) map[int64]float64 {
	latest := make(map[int64]models.UserAction, len(actions))
	for _, a := range actions {
		if prev, ok := latest[a.EventID]; ok && a.Timestamp.Before(prev.Timestamp) {
			continue
		}
		latest[a.EventID] = a
	}

	weights := make(map[int64]float64, len(latest))
	for id, a := range latest {
		weights[id] = a.Weight()
	}
	return weights
}

// recentEvents returns the events of the n most recent actions, newest
// first, without duplicates.
func recentEvents(actions []models.UserAction, n int) []int64 {
	sorted := make([]models.UserAction, len(actions))
	copy(sorted, actions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.After(sorted[j].Timestamp) })
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	seen := make(map[int64]struct{}, len(sorted))
	out := make([]int64, 0, len(sorted))
	for _, a := range sorted {
		if _, ok := seen[a.EventID]; ok {
			continue
		}
		seen[a.EventID] = struct{}{}
		out = append(out, a.EventID)
	}
	return out
}

func (e *Engine) checkID(name string, id int64) error {
	if id <= 0 {
		return invalidArgument("%s must be positive, got %d", name, id)
	}
	return nil
}

func (e *Engine) checkMaxResults(n int) error {
	if n <= 0 || n > e.config.MaxResultsLimit {
		return invalidArgument("max_results must be in [1, %d], got %d", e.config.MaxResultsLimit, n)
	}
	return nil
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.config.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.config.QueryTimeout)
}

func (e *Engine) queryLogger(ctx context.Context, op string) zerolog.Logger {
	lc := e.logger.With().Str("operation", op)
	if id := logging.RequestIDFromContext(ctx); id != "" {
		lc = lc.Str("request_id", id)
	}
	return lc.Logger()
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func (e *Engine) finish(log zerolog.Logger, results int, err error) {
	switch ErrorClass(err) {
	case "":
		log.Debug().Int("results", results).Msg("query completed")
	case ClassInvalidArgument:
		log.Warn().Err(err).Msg("invalid query")
	default:
		log.Error().Err(err).Msg("query failed")
	}
}
