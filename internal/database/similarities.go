// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/eventrec/internal/metrics"
	"github.com/tomtom215/eventrec/internal/models"
)

const tableEventSimilarities = "event_similarities"

// ErrNonCanonicalPair is returned when a similarity has EventA >= EventB.
var ErrNonCanonicalPair = errors.New("similarity pair must satisfy event_a < event_b")

// UpsertSimilarity stores s as the latest score for its pair. Writes are
// last-write-wins in arrival order: the timestamp is the action's and says
// nothing about which computation is newer. It reports whether the row was
// written.
func (db *DB) UpsertSimilarity(ctx context.Context, s models.EventSimilarity) (written bool, err error) {
	if !s.Canonical() {
		return false, fmt.Errorf("%w: (%d, %d)", ErrNonCanonicalPair, s.EventA, s.EventB)
	}

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordStoreQuery("upsert", tableEventSimilarities, time.Since(start), err) }()

	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO event_similarities (event_a, event_b, score, event_time)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (event_a, event_b) DO UPDATE
		SET score = EXCLUDED.score, event_time = EXCLUDED.event_time`,
		s.EventA, s.EventB, s.Score, s.Timestamp.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to upsert similarity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// SimilaritiesByEvent returns every stored pair involving eventID, ordered
// by (event_a, event_b).
func (db *DB) SimilaritiesByEvent(ctx context.Context, eventID int64) (sims []models.EventSimilarity, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordStoreQuery("list_by_event", tableEventSimilarities, time.Since(start), err) }()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT event_a, event_b, score, event_time
		FROM event_similarities
		WHERE event_a = ? OR event_b = ?
		ORDER BY event_a ASC, event_b ASC`, eventID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query similarities: %w", err)
	}
	defer closeQuietly(rows)

	for rows.Next() {
		var s models.EventSimilarity
		if err := rows.Scan(&s.EventA, &s.EventB, &s.Score, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan similarity: %w", err)
		}
		s.Timestamp = s.Timestamp.UTC()
		sims = append(sims, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate similarities: %w", err)
	}
	return sims, nil
}

// GetSimilarity returns the stored record for (a, b) in either order.
// The boolean is false when no record exists.
func (db *DB) GetSimilarity(ctx context.Context, a, b int64) (models.EventSimilarity, bool, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	p := models.CanonicalPair(a, b)
	s := models.EventSimilarity{EventA: p.A, EventB: p.B}
	err := db.conn.QueryRowContext(ctx, `
		SELECT score, event_time FROM event_similarities
		WHERE event_a = ? AND event_b = ?`, p.A, p.B).Scan(&s.Score, &s.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return models.EventSimilarity{}, false, nil
	}
	if err != nil {
		return models.EventSimilarity{}, false, fmt.Errorf("failed to get similarity: %w", err)
	}
	s.Timestamp = s.Timestamp.UTC()
	return s, true, nil
}
